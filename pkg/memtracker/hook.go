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
	"context"
)

// Hook connects an allocation hook to the tracker tree. A Hook belongs to
// a single worker goroutine and is not safe for concurrent use. Reported
// allocations and frees are attributed to the attached limiter, or to the
// process limiter if none is attached. Small updates are accumulated in
// the hook and only pushed to the limiter once they add up to the flush
// threshold.
type Hook struct {
	process    *Limiter
	current    *Limiter
	untracked  int64
	threshold  int64
	checkLimit bool
}

// HookOption is an opaque option for a Hook.
type HookOption func(*Hook)

// WithHookThreshold sets the amount of bytes accumulated in the hook before
// they are pushed to the attached limiter.
func WithHookThreshold(bytes int64) HookOption {
	return func(h *Hook) {
		h.threshold = bytes
	}
}

// WithLimitCheck makes the hook push updates using TryConsume, letting
// allocations fail if they would exceed a limit.
func WithLimitCheck(check bool) HookOption {
	return func(h *Hook) {
		h.checkLimit = check
	}
}

// NewHook creates a hook for the given process limiter.
func NewHook(process *Limiter, options ...HookOption) *Hook {
	h := &Hook{
		process:   process,
		threshold: process.flushThreshold,
	}
	for _, o := range options {
		o(h)
	}
	return h
}

// Current returns the limiter updates are currently attributed to.
func (h *Hook) Current() *Limiter {
	if h.current != nil {
		return h.current
	}
	return h.process
}

// Attach attributes subsequent updates to l. Pending updates are pushed to
// the previously attached limiter first. The returned function restores the
// previous attachment.
func (h *Hook) Attach(l *Limiter) (detach func()) {
	h.Flush()
	prev := h.current
	h.current = l
	return func() {
		h.Flush()
		h.current = prev
	}
}

// Consume reports an allocation of bytes. With limit checking enabled an
// error is returned if attributing bytes would exceed a limit. The caller is
// then expected to fail the allocation. Updates accumulated by earlier calls
// are attributed in either case.
func (h *Hook) Consume(bytes int64) error {
	if bytes == 0 {
		return nil
	}

	if !h.checkLimit || bytes < 0 {
		h.untracked += bytes
		if h.pending() {
			return nil
		}
		h.Flush()
		return nil
	}

	if h.untracked+bytes < h.threshold {
		h.untracked += bytes
		return nil
	}

	h.Flush()
	return h.Current().TryConsume(bytes)
}

// Release reports a free of bytes.
func (h *Hook) Release(bytes int64) {
	h.untracked -= bytes
	if h.pending() {
		return
	}
	h.Flush()
}

// Flush pushes all accumulated updates to the attached limiter. These are
// allocations which already happened, so they are never limit checked.
func (h *Hook) Flush() {
	bytes := h.untracked
	if bytes == 0 {
		return
	}
	h.untracked = 0
	h.Current().Consume(bytes)
}

// Untracked returns the amount of accumulated updates not pushed yet.
func (h *Hook) Untracked() int64 {
	return h.untracked
}

func (h *Hook) pending() bool {
	return h.untracked < h.threshold && -h.untracked < h.threshold
}

type hookKey struct{}

// WithHook returns a copy of ctx carrying h.
func WithHook(ctx context.Context, h *Hook) context.Context {
	return context.WithValue(ctx, hookKey{}, h)
}

// HookFromContext returns the hook carried by ctx, if any.
func HookFromContext(ctx context.Context) (*Hook, bool) {
	h, ok := ctx.Value(hookKey{}).(*Hook)
	return h, ok && h != nil
}
