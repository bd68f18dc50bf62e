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
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	logger "github.com/containers/nri-memtracker/pkg/log"
	"github.com/containers/nri-memtracker/pkg/sysmem"
)

var (
	log = logger.Get("memtracker")
)

// Limiter is a tracker with an optional limit, arranged into a tree of
// limiters. Consumption is tracked by the limiter and all its ancestors,
// each of which keeps its own counter. The parent of a limiter and thus
// its chain of ancestors is fixed at creation.
type Limiter struct {
	label     string
	limit     atomic.Int64
	counter   Counter
	parent    *Limiter
	isProcess bool

	// this limiter and all its ancestors, root last
	allAncestors []*Limiter
	// allAncestors with a limit, except the process limiter
	limitedAncestors []*Limiter

	// batched local revisions not yet propagated to ancestors
	untracked      atomic.Int64
	flushThreshold int64

	guard sysmem.Guard

	// children are only used for reporting, never for accounting
	childLock     sync.Mutex
	children      *list.List
	trackers      *list.List
	self          *list.Element
	hadChildCount atomic.Int64
	closed        bool

	gcLock        sync.Mutex
	gcFunctions   []Reclaimer
	gcExtraBytes  int64
	gcCount       atomic.Int64
	gcFailCount   atomic.Int64
	exceededCount atomic.Int64

	usageLog         *rate.Limiter
	usageLogInterval time.Duration
	usageLogDepth    int
}

// NewProcessLimiter creates an unlimited root limiter for the process.
func NewProcessLimiter(options ...Option) (*Limiter, error) {
	return newLimiter(nil, ProcessLabel, NoLimit, options...)
}

// NewLimiter creates a new limiter with the given label and limit under
// parent. A negative limit of NoLimit means unlimited. The new limiter
// inherits the configuration of its parent, which can be overridden with
// options.
func NewLimiter(parent *Limiter, label string, limit int64, options ...Option) (*Limiter, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w for %q", ErrNoParent, label)
	}
	return newLimiter(parent, label, limit, options...)
}

func newLimiter(parent *Limiter, label string, limit int64, options ...Option) (*Limiter, error) {
	if limit < NoLimit {
		return nil, fmt.Errorf("%w %d for %q", ErrInvalidLimit, limit, label)
	}

	l := &Limiter{
		label:            label,
		parent:           parent,
		isProcess:        parent == nil,
		children:         list.New(),
		trackers:         list.New(),
		flushThreshold:   DefaultFlushThreshold,
		gcExtraBytes:     DefaultGCExtraBytes,
		usageLogInterval: DefaultUsageLogInterval,
		usageLogDepth:    DefaultUsageLogDepth,
	}
	l.limit.Store(limit)

	if parent != nil {
		l.flushThreshold = parent.flushThreshold
		l.gcExtraBytes = parent.gcExtraBytes
		l.guard = parent.guard
		l.usageLogInterval = parent.usageLogInterval
		l.usageLogDepth = parent.usageLogDepth
	}

	for _, o := range options {
		if err := o(l); err != nil {
			return nil, fmt.Errorf("failed to create tracker %q: %w", label, err)
		}
	}

	if l.usageLogInterval > 0 {
		l.usageLog = rate.NewLimiter(rate.Every(l.usageLogInterval), 1)
	}

	for t := l; t != nil; t = t.parent {
		l.allAncestors = append(l.allAncestors, t)
		if t.HasLimit() && !t.isProcess {
			l.limitedAncestors = append(l.limitedAncestors, t)
		}
	}

	if parent != nil {
		parent.childLock.Lock()
		if parent.closed {
			parent.childLock.Unlock()
			return nil, fmt.Errorf("%w: can't create %q under %q", ErrClosed, label, parent.label)
		}
		l.self = parent.children.PushBack(l)
		parent.childLock.Unlock()
		parent.hadChildCount.Add(1)
	}

	log.Debug("created tracker %s", l.DebugString())

	return l, nil
}

// Close unlinks the limiter from its parent. Any batched local revisions
// are propagated first. Consumption is not released: a non-zero value at
// this point is attributed to the ancestors for good and gets reported.
func (l *Limiter) Close() {
	l.childLock.Lock()
	if l.closed {
		l.childLock.Unlock()
		return
	}
	l.closed = true
	remaining := l.children.Len()
	l.childLock.Unlock()

	l.FlushLocal()

	if remaining > 0 {
		log.Warn("tracker %q closed with %d live child trackers", l.label, remaining)
	}

	if p := l.parent; p != nil {
		p.childLock.Lock()
		p.children.Remove(l.self)
		p.childLock.Unlock()
	}

	if c := l.Consumption(); c != 0 {
		log.Warn("tracker %q closed with consumption %s (%d B), same memory was probably "+
			"consumed and released on different trackers", l.label, prettySize(c), c)
	}
}

// Label returns the label of the limiter.
func (l *Limiter) Label() string {
	return l.label
}

// Parent returns the parent of the limiter, nil for the process limiter.
func (l *Limiter) Parent() *Limiter {
	return l.parent
}

// IsProcess returns true for the process (root) limiter.
func (l *Limiter) IsProcess() bool {
	return l.isProcess
}

// Limit returns the limit of the limiter, NoLimit if it has none.
func (l *Limiter) Limit() int64 {
	return l.limit.Load()
}

// HasLimit returns true if the limiter has a limit.
func (l *Limiter) HasLimit() bool {
	return l.Limit() >= 0
}

// UpdateLimit changes the limit of a limiter which already has one.
func (l *Limiter) UpdateLimit(limit int64) error {
	if !l.HasLimit() || limit < 0 {
		return fmt.Errorf("%w: can't change limit of %q from %d to %d",
			ErrInvalidLimit, l.label, l.Limit(), limit)
	}
	l.limit.Store(limit)
	return nil
}

// Consumption returns the bytes currently attributed to the limiter.
func (l *Limiter) Consumption() int64 {
	return l.counter.Value()
}

// Peak returns the highest consumption of the limiter.
func (l *Limiter) Peak() int64 {
	return l.counter.Peak()
}

// Depth returns the length of the ancestor chain of the limiter.
func (l *Limiter) Depth() int {
	return len(l.allAncestors)
}

// LimitExceeded returns true if the limiter has a limit and its consumption
// is above it.
func (l *Limiter) LimitExceeded() bool {
	limit := l.Limit()
	return limit >= 0 && l.Consumption() > limit
}

// AnyLimitExceeded returns true if the limit of the limiter or any of its
// limited ancestors is exceeded.
func (l *Limiter) AnyLimitExceeded() bool {
	for _, t := range l.limitedAncestors {
		if t.LimitExceeded() {
			return true
		}
	}
	return false
}

// SpareCapacity returns the amount of memory which can be consumed without
// exceeding the limit of the limiter or any of its ancestors. It returns
// math.MaxInt64 if there are no limits and a negative value if a limit is
// already exceeded.
func (l *Limiter) SpareCapacity() int64 {
	spare := int64(math.MaxInt64)
	for _, t := range l.limitedAncestors {
		if s := t.Limit() - t.Consumption(); s < spare {
			spare = s
		}
	}
	return spare
}

// GetLowestLimit returns the lowest limit of the limiter and its ancestors,
// or NoLimit if none of them has a limit.
func (l *Limiter) GetLowestLimit() int64 {
	lowest := int64(NoLimit)
	for _, t := range l.limitedAncestors {
		if limit := t.Limit(); lowest < 0 || limit < lowest {
			lowest = limit
		}
	}
	return lowest
}

// RemainChildCount returns the number of live child limiters.
func (l *Limiter) RemainChildCount() int {
	l.childLock.Lock()
	defer l.childLock.Unlock()
	return l.children.Len()
}

// HadChildCount returns the number of child limiters ever created.
func (l *Limiter) HadChildCount() int64 {
	return l.hadChildCount.Load()
}

// Children returns the live child limiters.
func (l *Limiter) Children() []*Limiter {
	l.childLock.Lock()
	defer l.childLock.Unlock()

	children := make([]*Limiter, 0, l.children.Len())
	for e := l.children.Front(); e != nil; e = e.Next() {
		children = append(children, e.Value.(*Limiter))
	}
	return children
}

// Trackers returns the plain trackers attached to the limiter.
func (l *Limiter) Trackers() []*Tracker {
	l.childLock.Lock()
	defer l.childLock.Unlock()

	trackers := make([]*Tracker, 0, l.trackers.Len())
	for e := l.trackers.Front(); e != nil; e = e.Next() {
		trackers = append(trackers, e.Value.(*Tracker))
	}
	return trackers
}

func (l *Limiter) root() *Limiter {
	return l.allAncestors[len(l.allAncestors)-1]
}

// DebugString returns a short description of the limiter.
func (l *Limiter) DebugString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "limit: %d; ", l.Limit())
	fmt.Fprintf(&b, "consumption: %d; ", l.Consumption())
	fmt.Fprintf(&b, "label: %s; ", l.label)
	fmt.Fprintf(&b, "all ancestor size: %d; ", len(l.allAncestors)-1)
	fmt.Fprintf(&b, "limited ancestor size: %d", len(l.limitedAncestors))
	return b.String()
}
