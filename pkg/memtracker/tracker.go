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
	"container/list"
)

// Tracker is a plain, unlimited tracker, typically used for a single
// execution operator. Consuming memory on a Tracker only updates the
// tracker itself. A tracker can be attached to a Limiter, in which case
// it is listed in the snapshots and usage reports of the limiter.
type Tracker struct {
	label   string
	counter Counter
	parent  *Limiter
	self    *list.Element
}

// NewTracker creates a new tracker with the given label, attached to
// parent for reporting, unless parent is nil or closed.
func NewTracker(label string, parent *Limiter) *Tracker {
	t := &Tracker{label: label}

	if parent != nil {
		parent.childLock.Lock()
		if !parent.closed {
			t.parent = parent
			t.self = parent.trackers.PushBack(t)
		}
		parent.childLock.Unlock()
	}

	return t
}

// Close detaches the tracker from its parent.
func (t *Tracker) Close() {
	p := t.parent
	if p == nil {
		return
	}

	p.childLock.Lock()
	if t.self != nil {
		p.trackers.Remove(t.self)
		t.self = nil
	}
	p.childLock.Unlock()

	if c := t.Consumption(); c != 0 {
		log.Warn("tracker %q (parent %q) closed with consumption %s (%d B)",
			t.label, p.label, prettySize(c), c)
	}
}

// Label returns the label of the tracker.
func (t *Tracker) Label() string {
	return t.label
}

// Parent returns the limiter the tracker is attached to, or nil.
func (t *Tracker) Parent() *Limiter {
	return t.parent
}

// Consume increases the consumption of the tracker by bytes.
func (t *Tracker) Consume(bytes int64) {
	if bytes == 0 {
		return
	}
	t.counter.Add(bytes)
}

// Release decreases the consumption of the tracker by bytes.
func (t *Tracker) Release(bytes int64) {
	t.Consume(-bytes)
}

// Consumption returns the bytes currently attributed to the tracker.
func (t *Tracker) Consumption() int64 {
	return t.counter.Value()
}

// Peak returns the highest consumption of the tracker.
func (t *Tracker) Peak() int64 {
	return t.counter.Peak()
}
