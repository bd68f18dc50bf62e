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

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/containers/nri-memtracker/pkg/memtracker"
)

func TestCacheReclaim(t *testing.T) {
	process, err := memtracker.NewProcessLimiter(memtracker.WithGCExtraBytes(0))
	require.NoError(t, err)

	q, err := memtracker.NewLimiter(process, "query", 1000)
	require.NoError(t, err)
	i1, err := memtracker.NewLimiter(q, "i1", memtracker.NoLimit)
	require.NoError(t, err)

	c := newCache("query")
	q.AddGCFunction(c)

	require.NoError(t, c.put(i1, 400))
	require.NoError(t, c.put(i1, 400))
	require.Equal(t, int64(800), q.Consumption())

	// evicts the oldest buffer to make room
	require.NoError(t, c.put(i1, 400))
	require.Equal(t, int64(800), q.Consumption())
	require.Equal(t, int64(800), c.Size())
	require.Equal(t, int64(1), q.GCCount())

	// a single buffer can't fit even with the cache emptied
	require.ErrorIs(t, c.put(i1, 1000), memtracker.ErrTrackerLimitExceeded)
	require.Equal(t, int64(0), c.Size())
	require.Equal(t, int64(0), q.Consumption())
	require.Equal(t, int64(0), process.Consumption())
}

func TestCacheTransfer(t *testing.T) {
	process, err := memtracker.NewProcessLimiter(memtracker.WithFlushThreshold(1))
	require.NoError(t, err)

	q, err := memtracker.NewLimiter(process, "query", memtracker.NoLimit)
	require.NoError(t, err)
	i1, err := memtracker.NewLimiter(q, "i1", memtracker.NoLimit)
	require.NoError(t, err)
	i2, err := memtracker.NewLimiter(q, "i2", memtracker.NoLimit)
	require.NoError(t, err)

	c := newCache("query")
	require.NoError(t, c.put(i1, 100))
	require.Equal(t, int64(100), c.transfer(i1, i2))
	require.Equal(t, int64(0), c.transfer(i1, i2))

	require.Equal(t, int64(0), i1.Consumption())
	require.Equal(t, int64(100), i2.Consumption())
	require.Equal(t, int64(100), q.Consumption())
	require.Equal(t, int64(100), process.Consumption())

	require.Equal(t, int64(100), c.drop())
	require.Equal(t, int64(0), i2.Consumption())
	require.Equal(t, int64(0), process.Consumption())
}

func TestWorkload(t *testing.T) {
	process, err := memtracker.NewProcessLimiter(memtracker.WithUsageLogging(0, 0))
	require.NoError(t, err)

	w, err := newWorkload(process, workloadConfig{
		queries:    2,
		instances:  3,
		queryLimit: 64 << 10,
		allocSize:  4 << 10,
		checkLimit: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, w.run(ctx))

	require.NotZero(t, w.allocs.Load())
	for _, q := range w.queries {
		require.NotZero(t, q.limiter.Peak())
	}

	w.close()
	require.Equal(t, 0, process.RemainChildCount())
	require.Equal(t, int64(0), process.Consumption())
}
