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

// Consume increases the consumption of the limiter and all its ancestors
// by bytes. It never fails.
func (l *Limiter) Consume(bytes int64) {
	if bytes == 0 {
		return
	}
	for _, t := range l.allAncestors {
		t.counter.Add(bytes)
	}
}

// Release decreases the consumption of the limiter and all its ancestors
// by bytes.
func (l *Limiter) Release(bytes int64) {
	l.Consume(-bytes)
}

// TryConsume increases the consumption of the limiter and all its ancestors
// by bytes, only if none of the limited ones would reach its limit. The
// ancestors are updated top-down. A limited ancestor which can't take the
// consumption gets its GC functions run, after which the update is retried.
// If GC can't free enough memory, the ancestors updated so far are rolled
// back and an error naming the failing ancestor is returned. Non-positive
// bytes are released.
func (l *Limiter) TryConsume(bytes int64) error {
	if bytes <= 0 {
		l.Release(-bytes)
		return nil
	}

	if err := l.checkSysMem(bytes); err != nil {
		return err
	}

	for i := len(l.allAncestors) - 1; i >= 0; i-- {
		t := l.allAncestors[i]

		// The process limiter is replaced by the system memory check.
		if t.isProcess || !t.HasLimit() {
			t.counter.Add(bytes)
			continue
		}

		// Concurrent consumers may eat up whatever GC frees before we
		// get to retry, hence the loop.
		for !t.counter.TryAdd(bytes, t.Limit()) {
			if err := t.TryGCMemory(bytes); err != nil {
				for j := len(l.allAncestors) - 1; j > i; j-- {
					l.allAncestors[j].counter.Add(-bytes)
				}
				return t.limitExceeded(bytes, err)
			}
		}
	}

	return nil
}

// CheckLimit checks if bytes could be consumed by the limiter without any
// of its limited ancestors reaching its limit, running the GC functions of
// the ancestors as necessary. It does not update consumption.
func (l *Limiter) CheckLimit(bytes int64) error {
	if bytes <= 0 {
		return nil
	}

	if err := l.checkSysMem(bytes); err != nil {
		return err
	}

	for i := len(l.limitedAncestors) - 1; i >= 0; i-- {
		t := l.limitedAncestors[i]
		for t.Consumption()+bytes >= t.Limit() {
			if err := t.TryGCMemory(bytes); err != nil {
				return t.limitExceeded(bytes, err)
			}
		}
	}

	return nil
}

// CacheConsumeLocal revises the consumption of the limiter and its
// ancestors, except the process limiter, by bytes. Revisions are batched
// and only propagated once their accumulated size reaches the flush
// threshold, so consumption may be off by up to the threshold until
// then. This is meant for correcting attribution when memory is allocated
// in one place but should be charged to another. The process limiter only
// tracks real allocations, so it is never revised.
func (l *Limiter) CacheConsumeLocal(bytes int64) {
	if bytes == 0 || l.isProcess {
		return
	}
	if drained := l.addUntracked(bytes); drained != 0 {
		l.consumeLocal(drained)
	}
}

// TransferTo moves the attribution of bytes from the limiter to dst. The
// process limiter is not affected.
func (l *Limiter) TransferTo(bytes int64, dst *Limiter) {
	l.CacheConsumeLocal(-bytes)
	dst.CacheConsumeLocal(bytes)
}

// FlushLocal propagates any batched local revisions to the ancestors.
func (l *Limiter) FlushLocal() {
	if drained := l.untracked.Swap(0); drained != 0 {
		l.consumeLocal(drained)
	}
}

// Untracked returns the amount of batched, not yet propagated revisions.
func (l *Limiter) Untracked() int64 {
	return l.untracked.Load()
}

func (l *Limiter) addUntracked(bytes int64) int64 {
	v := l.untracked.Add(bytes)
	if v >= l.flushThreshold || -v >= l.flushThreshold {
		return l.untracked.Swap(0)
	}
	return 0
}

func (l *Limiter) consumeLocal(bytes int64) {
	for _, t := range l.allAncestors {
		if t.isProcess {
			return
		}
		t.counter.Add(bytes)
	}
}

func (l *Limiter) checkSysMem(bytes int64) error {
	if l.guard == nil {
		return nil
	}

	ceiling := l.guard.PhysicalCeiling()
	if ceiling <= 0 {
		return nil
	}

	resident := l.guard.CurrentResidentBytes()
	if resident+bytes > ceiling {
		err := &ProcessMemoryExceededError{
			Resident:  resident,
			Ceiling:   ceiling,
			Requested: bytes,
		}
		l.root().PrintLogUsage(err.Error())
		return err
	}

	return nil
}

func (l *Limiter) limitExceeded(bytes int64, cause error) error {
	l.exceededCount.Add(1)
	err := &TrackerLimitExceededError{
		Label:       l.label,
		Limit:       l.Limit(),
		Consumption: l.Consumption(),
		Requested:   bytes,
		Cause:       cause,
	}
	l.PrintLogUsage(err.Error())
	return err
}
