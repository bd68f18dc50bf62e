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

package memtracker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/containers/nri-memtracker/pkg/memtracker"
)

func TestHookBatching(t *testing.T) {
	var (
		p = newProcess(t)
		q = newLimiter(t, p, "query", NoLimit)
		h = NewHook(p, WithHookThreshold(100))
	)

	require.Equal(t, p, h.Current())

	detach := h.Attach(q)
	require.Equal(t, q, h.Current())

	require.NoError(t, h.Consume(60))
	require.Equal(t, int64(60), h.Untracked())
	require.Equal(t, int64(0), q.Consumption())

	require.NoError(t, h.Consume(40))
	require.Equal(t, int64(0), h.Untracked())
	require.Equal(t, int64(100), q.Consumption())
	require.Equal(t, int64(100), p.Consumption())

	h.Release(30)
	require.Equal(t, int64(-30), h.Untracked())
	require.Equal(t, int64(100), q.Consumption())

	// pending updates go to the limiter they were made under
	detach()
	require.Equal(t, p, h.Current())
	require.Equal(t, int64(0), h.Untracked())
	require.Equal(t, int64(70), q.Consumption())

	require.NoError(t, h.Consume(10))
	h.Flush()
	require.Equal(t, int64(70), q.Consumption())
	require.Equal(t, int64(80), p.Consumption())
}

func TestHookNestedAttach(t *testing.T) {
	var (
		p  = newProcess(t)
		q1 = newLimiter(t, p, "q1", NoLimit)
		q2 = newLimiter(t, p, "q2", NoLimit)
		h  = NewHook(p, WithHookThreshold(1<<20))
	)

	d1 := h.Attach(q1)
	require.NoError(t, h.Consume(5))
	d2 := h.Attach(q2)
	require.NoError(t, h.Consume(7))
	d2()
	require.Equal(t, q1, h.Current())
	d1()

	require.Equal(t, int64(5), q1.Consumption())
	require.Equal(t, int64(7), q2.Consumption())
	require.Equal(t, int64(12), p.Consumption())
}

func TestHookLimitCheck(t *testing.T) {
	var (
		p = newProcess(t)
		q = newLimiter(t, p, "query", 100)
	)

	for _, check := range []bool{false, true} {
		h := NewHook(p, WithHookThreshold(0), WithLimitCheck(check))
		detach := h.Attach(q)

		err := h.Consume(150)
		if check {
			require.ErrorIs(t, err, ErrTrackerLimitExceeded)
			require.Equal(t, int64(0), q.Consumption())
		} else {
			require.NoError(t, err)
			require.Equal(t, int64(150), q.Consumption())
			h.Release(150)
			require.Equal(t, int64(0), q.Consumption())
		}
		require.Equal(t, int64(0), h.Untracked())

		detach()
	}
}

func TestHookLimitCheckKeepsPending(t *testing.T) {
	var (
		p = newProcess(t)
		q = newLimiter(t, p, "query", 1000)
		h = NewHook(p, WithHookThreshold(500), WithLimitCheck(true))
	)

	detach := h.Attach(q)

	require.NoError(t, h.Consume(400))
	require.Equal(t, int64(400), h.Untracked())
	require.Equal(t, int64(0), q.Consumption())

	// the earlier allocation stays attributed, only the new one fails
	err := h.Consume(700)
	require.ErrorIs(t, err, ErrTrackerLimitExceeded)
	require.ErrorContains(t, err, "failed_alloc_size=700")
	require.NotContains(t, err.Error(), "failed_alloc_size=1100")
	require.Equal(t, int64(0), h.Untracked())
	require.Equal(t, int64(400), q.Consumption())
	require.Equal(t, int64(400), p.Consumption())

	require.NoError(t, h.Consume(500))
	require.Equal(t, int64(900), q.Consumption())

	h.Release(500)
	h.Release(400)
	detach()

	require.Equal(t, int64(0), h.Untracked())
	require.Equal(t, int64(0), q.Consumption())
	require.Equal(t, int64(0), p.Consumption())
}

func TestHookContext(t *testing.T) {
	p := newProcess(t)

	_, ok := HookFromContext(context.Background())
	require.False(t, ok)

	h := NewHook(p)
	ctx := WithHook(context.Background(), h)
	got, ok := HookFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, h, got)

	_, ok = HookFromContext(WithHook(context.Background(), nil))
	require.False(t, ok)
}
