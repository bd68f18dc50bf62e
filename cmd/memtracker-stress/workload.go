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
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/containers/nri-memtracker/pkg/memtracker"
)

type workloadConfig struct {
	queries    int
	instances  int
	queryLimit int64
	allocSize  int64
	checkLimit bool
}

// query is a limited tracker subtree: a query limiter with a cache and a
// number of unlimited instance limiters, each with an operator tracker.
type query struct {
	limiter   *memtracker.Limiter
	cache     *cache
	instances []*instance
}

type instance struct {
	limiter  *memtracker.Limiter
	operator *memtracker.Tracker
}

type workload struct {
	cfg      workloadConfig
	process  *memtracker.Limiter
	queries  []*query
	allocs   atomic.Int64
	rejected atomic.Int64
	moved    atomic.Int64
}

func newWorkload(process *memtracker.Limiter, cfg workloadConfig) (*workload, error) {
	w := &workload{
		cfg:     cfg,
		process: process,
	}

	for i := 0; i < cfg.queries; i++ {
		ql, err := memtracker.NewLimiter(process, fmt.Sprintf("query-%d", i), cfg.queryLimit)
		if err != nil {
			w.close()
			return nil, err
		}
		q := &query{
			limiter: ql,
			cache:   newCache(ql.Label()),
		}
		ql.AddGCFunction(q.cache)
		w.queries = append(w.queries, q)

		for j := 0; j < cfg.instances; j++ {
			il, err := memtracker.NewLimiter(ql, fmt.Sprintf("instance-%d", j), memtracker.NoLimit)
			if err != nil {
				w.close()
				return nil, err
			}
			q.instances = append(q.instances, &instance{
				limiter:  il,
				operator: memtracker.NewTracker("operator", il),
			})
		}
	}

	return w, nil
}

// run runs one worker per instance until ctx is done.
func (w *workload) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, q := range w.queries {
		q := q
		for idx := range q.instances {
			idx := idx
			g.Go(func() error {
				return w.worker(ctx, q, idx)
			})
		}
	}
	return g.Wait()
}

func (w *workload) worker(ctx context.Context, q *query, idx int) error {
	var (
		inst = q.instances[idx]
		rnd  = rand.New(rand.NewSource(int64(idx) + 1))
		hook = memtracker.NewHook(w.process, memtracker.WithLimitCheck(w.cfg.checkLimit))
	)

	ctx = memtracker.WithHook(ctx, hook)
	detach := hook.Attach(inst.limiter)
	defer detach()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		size := 1 + rnd.Int63n(w.cfg.allocSize)
		if err := w.scratch(ctx, inst, size); err != nil {
			return err
		}

		w.allocs.Add(1)
		if err := q.cache.put(inst.limiter, size); err != nil {
			if !errors.Is(err, memtracker.ErrTrackerLimitExceeded) &&
				!errors.Is(err, memtracker.ErrProcessMemExceeded) {
				return err
			}
			w.rejected.Add(1)
			log.Debug("%s: allocation of %d bytes rejected: %v", inst.limiter.Label(), size, err)
			continue
		}

		if len(q.instances) > 1 && rnd.Intn(8) == 0 {
			dst := q.instances[(idx+1)%len(q.instances)]
			w.moved.Add(q.cache.transfer(inst.limiter, dst.limiter))
		}
	}
}

// scratch simulates a short-lived operator allocation reported through the
// allocation hook of the worker.
func (w *workload) scratch(ctx context.Context, inst *instance, size int64) error {
	hook, ok := memtracker.HookFromContext(ctx)
	if !ok {
		return fmt.Errorf("no allocation hook for %s", inst.limiter.Label())
	}

	// a rejected allocation never happened, so there is nothing to release
	if err := hook.Consume(size); err != nil {
		w.rejected.Add(1)
		return nil
	}
	inst.operator.Consume(size)

	inst.operator.Release(size)
	hook.Release(size)

	return nil
}

// close drops all cached buffers and closes the tracker tree.
func (w *workload) close() {
	for _, q := range w.queries {
		q.cache.drop()
		for _, inst := range q.instances {
			inst.operator.Close()
			inst.limiter.Close()
		}
		q.limiter.Close()
	}
}
