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
	"sync/atomic"
)

var process atomic.Pointer[Limiter]

// SetupProcess creates the process limiter. It is meant to be called once
// at process startup and fails if the process limiter already exists.
func SetupProcess(options ...Option) (*Limiter, error) {
	l, err := NewProcessLimiter(options...)
	if err != nil {
		return nil, err
	}

	if !process.CompareAndSwap(nil, l) {
		return nil, ErrProcessExists
	}

	log.Info("process memory tracker set up")

	return l, nil
}

// Process returns the process limiter, or nil if it has not been set up.
func Process() *Limiter {
	return process.Load()
}

// TeardownProcess closes and forgets the process limiter.
func TeardownProcess() {
	if l := process.Swap(nil); l != nil {
		l.Close()
	}
}
