// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memtracker

import (
	"errors"
	"fmt"

	"github.com/docker/go-units"
)

var (
	ErrProcessMemExceeded   = errors.New("memtracker: process memory limit exceeded")
	ErrTrackerLimitExceeded = errors.New("memtracker: tracker memory limit exceeded")
	ErrReclaimInsufficient  = errors.New("memtracker: reclaim did not free enough memory")
	ErrNoParent             = errors.New("memtracker: missing parent tracker")
	ErrClosed               = errors.New("memtracker: tracker closed")
	ErrInvalidLimit         = errors.New("memtracker: invalid limit")
	ErrProcessExists        = errors.New("memtracker: process tracker already set up")
)

// ProcessMemoryExceededError is returned when the resident memory of the
// process plus a requested allocation would exceed the physical ceiling.
type ProcessMemoryExceededError struct {
	Resident  int64
	Ceiling   int64
	Requested int64
}

func (e *ProcessMemoryExceededError) Error() string {
	return fmt.Sprintf("%v: process memory used %s (%d B) exceeds limit %s (%d B), failed_alloc_size=%d B",
		ErrProcessMemExceeded, prettySize(e.Resident), e.Resident,
		prettySize(e.Ceiling), e.Ceiling, e.Requested)
}

func (e *ProcessMemoryExceededError) Unwrap() error {
	return ErrProcessMemExceeded
}

// TrackerLimitExceededError is returned when the limit of a tracker can't
// be satisfied even after running all of its GC functions.
type TrackerLimitExceededError struct {
	// Label of the tracker whose limit was exceeded.
	Label string
	// Limit of the tracker.
	Limit int64
	// Consumption of the tracker at the time of failure.
	Consumption int64
	// Requested allocation size.
	Requested int64
	// Cause is the error of the failed GC attempt, if any.
	Cause error
}

func (e *TrackerLimitExceededError) Error() string {
	return fmt.Sprintf("%v: tracker %q limit %s (%d B), consumption %s (%d B), failed_alloc_size=%d B",
		ErrTrackerLimitExceeded, e.Label, prettySize(e.Limit), e.Limit,
		prettySize(e.Consumption), e.Consumption, e.Requested)
}

func (e *TrackerLimitExceededError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTrackerLimitExceeded}
	}
	return []error{ErrTrackerLimitExceeded, e.Cause}
}

func prettySize(bytes int64) string {
	if bytes < 0 {
		return "-" + units.BytesSize(float64(-bytes))
	}
	return units.BytesSize(float64(bytes))
}
