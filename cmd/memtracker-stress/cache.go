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
	"container/list"
	"sync"

	"github.com/containers/nri-memtracker/pkg/memtracker"
)

// cache holds buffers allocated by the workers of a query. Each buffer is
// charged to the limiter it is currently attributed to. The cache acts as
// the reclaimer of the query limiter, evicting the oldest buffers first.
type cache struct {
	sync.Mutex
	label   string
	entries *list.List
	size    int64
}

type cacheEntry struct {
	owner *memtracker.Limiter
	data  []byte
}

func newCache(label string) *cache {
	return &cache{
		label:   label,
		entries: list.New(),
	}
}

// put charges a buffer of size bytes to owner and caches it.
func (c *cache) put(owner *memtracker.Limiter, size int64) error {
	if err := owner.TryConsume(size); err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()
	c.entries.PushBack(&cacheEntry{
		owner: owner,
		data:  make([]byte, size),
	})
	c.size += size

	return nil
}

// transfer moves the attribution of the newest buffer of src to dst.
func (c *cache) transfer(src, dst *memtracker.Limiter) int64 {
	c.Lock()
	defer c.Unlock()

	for e := c.entries.Back(); e != nil; e = e.Prev() {
		entry := e.Value.(*cacheEntry)
		if entry.owner == src {
			size := int64(len(entry.data))
			src.TransferTo(size, dst)
			entry.owner = dst
			return size
		}
	}

	return 0
}

// Reclaim implements memtracker.Reclaimer.
func (c *cache) Reclaim(bytesToFree int64) {
	c.Lock()
	defer c.Unlock()

	freed := c.evict(bytesToFree)
	log.Debug("%s: cache reclaimed %d of %d requested bytes", c.label, freed, bytesToFree)
}

// drop evicts all buffers.
func (c *cache) drop() int64 {
	c.Lock()
	defer c.Unlock()
	return c.evict(c.size)
}

func (c *cache) evict(bytesToFree int64) int64 {
	freed := int64(0)
	for freed < bytesToFree {
		e := c.entries.Front()
		if e == nil {
			break
		}
		entry := c.entries.Remove(e).(*cacheEntry)
		size := int64(len(entry.data))
		entry.owner.Release(size)
		c.size -= size
		freed += size
	}
	return freed
}

func (c *cache) Size() int64 {
	c.Lock()
	defer c.Unlock()
	return c.size
}
