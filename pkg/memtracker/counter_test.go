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
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/containers/nri-memtracker/pkg/memtracker"
)

func TestCounterTryAdd(t *testing.T) {
	type testCase struct {
		name    string
		initial int64
		delta   int64
		ceiling int64
		ok      bool
		result  int64
	}

	for _, tc := range []*testCase{
		{name: "fits", initial: 10, delta: 20, ceiling: 100, ok: true, result: 30},
		{name: "reaching ceiling fails", initial: 10, delta: 90, ceiling: 100, ok: false, result: 10},
		{name: "crossing ceiling fails", initial: 10, delta: 200, ceiling: 100, ok: false, result: 10},
		{name: "just below ceiling", initial: 10, delta: 89, ceiling: 100, ok: true, result: 99},
		{name: "negative always added", initial: 500, delta: -10, ceiling: 100, ok: true, result: 490},
		{name: "zero always added", initial: 500, delta: 0, ceiling: 100, ok: true, result: 500},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := &Counter{}
			c.Add(tc.initial)
			require.Equal(t, tc.ok, c.TryAdd(tc.delta, tc.ceiling))
			require.Equal(t, tc.result, c.Value())
		})
	}
}

func TestCounterPeak(t *testing.T) {
	c := &Counter{}
	c.Add(100)
	c.Add(-60)
	require.True(t, c.TryAdd(30, 1000))
	require.False(t, c.TryAdd(1000, 1000))
	require.Equal(t, int64(70), c.Value())
	require.Equal(t, int64(100), c.Peak())
}

func TestCounterConcurrentTryAdd(t *testing.T) {
	const (
		workers = 16
		rounds  = 1000
		ceiling = 1000
	)

	c := &Counter{}
	wg := sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if c.TryAdd(7, ceiling) {
					c.Add(-7)
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(0), c.Value())
	require.Less(t, c.Peak(), int64(ceiling))
}
