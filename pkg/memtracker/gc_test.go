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
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/containers/nri-memtracker/pkg/memtracker"
)

func TestGCMemory(t *testing.T) {
	var (
		p         = newProcess(t, WithGCExtraBytes(50))
		q         = newLimiter(t, p, "query", 1000)
		requested []int64
		calls     []string
	)

	q.AddGCFunction(ReclaimFunc(func(bytes int64) {
		calls = append(calls, "first")
		requested = append(requested, bytes)
		q.Release(min(100, q.Consumption()))
	}))
	q.AddGCFunction(ReclaimFunc(func(bytes int64) {
		calls = append(calls, "second")
		requested = append(requested, bytes)
		q.Release(min(500, q.Consumption()))
	}))

	q.Consume(900)

	// already below the requested maximum, nothing to do
	require.False(t, q.GCMemory(950))
	require.Empty(t, calls)
	require.Equal(t, int64(0), q.GCCount())

	// the first reclaimer frees enough
	require.False(t, q.GCMemory(850))
	require.Equal(t, []string{"first"}, calls)
	require.Equal(t, []int64{900 - 850 + 50}, requested)
	require.Equal(t, int64(800), q.Consumption())

	// the second one is needed too, asked for what is still missing
	calls, requested = nil, nil
	require.False(t, q.GCMemory(500))
	require.Equal(t, []string{"first", "second"}, calls)
	require.Equal(t, []int64{800 - 500 + 50, 700 - 500 + 50}, requested)
	require.Equal(t, int64(200), q.Consumption())

	// not enough to free
	calls = nil
	require.True(t, q.GCMemory(0))
	require.Equal(t, []string{"first", "second"}, calls)

	require.True(t, q.GCMemory(-1))
	require.Equal(t, int64(3), q.GCCount())
	require.Equal(t, int64(1), q.GCFailCount())
}

func TestTryGCMemory(t *testing.T) {
	var (
		p = newProcess(t)
		u = newLimiter(t, p, "unlimited", NoLimit)
		q = newLimiter(t, p, "query", 1000)
	)

	u.Consume(1 << 30)
	require.NoError(t, u.TryGCMemory(1<<30))

	q.Consume(500)
	require.NoError(t, q.TryGCMemory(100))
	require.ErrorIs(t, q.TryGCMemory(500), ErrReclaimInsufficient)
}

func TestGCSingleReclaimForBurst(t *testing.T) {
	const workers = 8

	var (
		p     = newProcess(t)
		q     = newLimiter(t, p, "query", 1000)
		i     = newLimiter(t, q, "instance", NoLimit)
		calls atomic.Int64
		ready sync.WaitGroup
		start = make(chan struct{})
		wg    sync.WaitGroup
		errs  = make(chan error, workers)
	)

	i.Consume(950)
	q.AddGCFunction(ReclaimFunc(func(int64) {
		calls.Add(1)
		i.Release(950)
	}))

	for w := 0; w < workers; w++ {
		ready.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ready.Done()
			<-start
			errs <- i.TryConsume(100)
		}()
	}
	ready.Wait()
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), calls.Load())
	require.Equal(t, int64(1), q.GCCount())
	require.Equal(t, int64(workers*100), q.Consumption())
}
