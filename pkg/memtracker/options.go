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
	"fmt"
	"time"

	"github.com/containers/nri-memtracker/pkg/sysmem"
)

const (
	// DefaultFlushThreshold is the default size of batched local revisions
	// which are accumulated before being propagated to ancestors.
	DefaultFlushThreshold = 1 << 20
	// DefaultGCExtraBytes is the default amount of memory GC functions are
	// asked to free on top of what is strictly necessary, to avoid running
	// GC again right away.
	DefaultGCExtraBytes = 4 << 20
	// DefaultUsageLogDepth is the default depth of usage dumps logged on
	// limit failures.
	DefaultUsageLogDepth = 2
	// DefaultUsageLogInterval is the default minimum interval between usage
	// dumps logged by a single tracker.
	DefaultUsageLogInterval = time.Minute
	// ProcessLabel is the default label of the process tracker.
	ProcessLabel = "Process"
	// NoLimit is the limit of trackers without a limit.
	NoLimit = -1
)

// Option is an opaque option for a Limiter.
type Option func(*Limiter) error

// WithSysMemGuard sets the guard used to check resident process memory
// before any tracker is updated by TryConsume or CheckLimit. Children
// inherit the guard of their parent.
func WithSysMemGuard(g sysmem.Guard) Option {
	return func(l *Limiter) error {
		l.guard = g
		return nil
	}
}

// WithFlushThreshold sets the size of batched local revisions accumulated
// before they are propagated to the ancestors.
func WithFlushThreshold(bytes int64) Option {
	return func(l *Limiter) error {
		if bytes < 0 {
			return fmt.Errorf("invalid flush threshold %d", bytes)
		}
		l.flushThreshold = bytes
		return nil
	}
}

// WithGCExtraBytes sets the amount of extra memory GC functions are asked
// to free.
func WithGCExtraBytes(bytes int64) Option {
	return func(l *Limiter) error {
		if bytes < 0 {
			return fmt.Errorf("invalid GC extra bytes %d", bytes)
		}
		l.gcExtraBytes = bytes
		return nil
	}
}

// WithUsageLogging sets the minimum interval between usage dumps logged on
// limit failures and the depth of these dumps. A zero interval turns usage
// dumps off.
func WithUsageLogging(interval time.Duration, depth int) Option {
	return func(l *Limiter) error {
		if interval < 0 {
			return fmt.Errorf("invalid usage log interval %s", interval)
		}
		l.usageLogInterval = interval
		l.usageLogDepth = depth
		return nil
	}
}

// WithLabel overrides the label of the process tracker.
func WithLabel(label string) Option {
	return func(l *Limiter) error {
		if !l.isProcess {
			return fmt.Errorf("label of non-process tracker %q is immutable", l.label)
		}
		l.label = label
		return nil
	}
}
