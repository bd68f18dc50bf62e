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
)

// Reclaimer is something which can try to free memory when a limit is
// about to be exceeded, for instance a cache or a buffer pool. Reclaim
// is called with the GC lock of the limiter held, so it must not block
// and must not call into trackers, except to release the memory it frees.
type Reclaimer interface {
	Reclaim(bytesToFree int64)
}

// ReclaimFunc adapts an ordinary function to a Reclaimer.
type ReclaimFunc func(bytesToFree int64)

// Reclaim calls f(bytesToFree).
func (f ReclaimFunc) Reclaim(bytesToFree int64) {
	f(bytesToFree)
}

// AddGCFunction adds r to the reclaimers called when the limit of the
// limiter is reached. Reclaimers are called in the order they are added,
// so cheap ones should be added first.
func (l *Limiter) AddGCFunction(r Reclaimer) {
	l.gcLock.Lock()
	defer l.gcLock.Unlock()
	l.gcFunctions = append(l.gcFunctions, r)
}

// GCMemory tries to bring consumption below maxConsumption by calling the
// reclaimers of the limiter. It returns true if consumption is still not
// below maxConsumption afterwards. Concurrent calls are serialized and a
// call finding consumption already below maxConsumption does nothing, so
// a burst of callers hitting the limit results in a single GC pass.
func (l *Limiter) GCMemory(maxConsumption int64) bool {
	if maxConsumption < 0 {
		return true
	}

	l.gcLock.Lock()
	defer l.gcLock.Unlock()

	pre := l.Consumption()
	if pre < maxConsumption {
		return false
	}

	l.gcCount.Add(1)

	cur := pre
	for _, r := range l.gcFunctions {
		r.Reclaim(cur - maxConsumption + l.gcExtraBytes)
		if cur = l.Consumption(); cur < maxConsumption {
			break
		}
	}

	if cur >= maxConsumption {
		l.gcFailCount.Add(1)
		log.Debug("GC of %q freed %s, consumption %s still above %s", l.label,
			prettySize(pre-cur), prettySize(cur), prettySize(maxConsumption))
		return true
	}

	log.Debug("GC of %q freed %s, consumption now %s", l.label,
		prettySize(pre-cur), prettySize(cur))

	return false
}

// TryGCMemory runs GC to make room for consuming bytes without reaching the
// limit of the limiter. It returns an error wrapping ErrReclaimInsufficient
// if not enough memory could be freed.
func (l *Limiter) TryGCMemory(bytes int64) error {
	limit := l.Limit()
	if limit < 0 {
		return nil
	}

	if l.GCMemory(limit - bytes) {
		return fmt.Errorf("%w: tracker %q, limit %d, consumption %d, requested %d",
			ErrReclaimInsufficient, l.label, limit, l.Consumption(), bytes)
	}

	return nil
}

// GCCount returns the number of GC passes run by the limiter.
func (l *Limiter) GCCount() int64 {
	return l.gcCount.Load()
}

// GCFailCount returns the number of GC passes which failed to free enough memory.
func (l *Limiter) GCFailCount() int64 {
	return l.gcFailCount.Load()
}

// ExceededCount returns the number of failed consume attempts and limit
// checks caused by the limit of the limiter.
func (l *Limiter) ExceededCount() int64 {
	return l.exceededCount.Load()
}
