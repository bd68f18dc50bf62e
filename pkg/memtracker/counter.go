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

// Counter is an atomic byte counter which also records its high water mark.
type Counter struct {
	value atomic.Int64
	peak  atomic.Int64
}

// Add unconditionally adds delta to the counter.
func (c *Counter) Add(delta int64) {
	c.updatePeak(c.value.Add(delta))
}

// TryAdd adds delta to the counter only if the result stays below ceiling.
// Non-positive deltas are always added. It returns false, leaving the
// counter untouched, if the addition would reach or cross ceiling.
func (c *Counter) TryAdd(delta, ceiling int64) bool {
	if delta <= 0 {
		c.Add(delta)
		return true
	}

	for {
		cur := c.value.Load()
		next := cur + delta
		if next >= ceiling {
			return false
		}
		if c.value.CompareAndSwap(cur, next) {
			c.updatePeak(next)
			return true
		}
	}
}

// Value returns the current value of the counter.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// Peak returns the highest value the counter has ever had.
func (c *Counter) Peak() int64 {
	return c.peak.Load()
}

func (c *Counter) updatePeak(v int64) {
	for {
		peak := c.peak.Load()
		if v <= peak || c.peak.CompareAndSwap(peak, v) {
			return
		}
	}
}
