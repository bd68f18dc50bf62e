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

// Package memtracker implements hierarchical memory accounting and limit
// enforcement for a process running many concurrent workloads, such as
// queries, their fragments and execution operators.
//
// # Limiters, Trackers
//
// Memory is accounted in a tree of Limiters. The root of the tree is the
// process limiter, usually set up once with SetupProcess. Below it, each
// workload gets its own Limiter, optionally with a limit. Every Limiter
// caches its chain of ancestors at creation and every update walks this
// chain, updating the atomic counter of each ancestor independently. The
// consumption of a parent is therefore never derived from its children;
// the child registry of a Limiter is only used for reporting.
//
// Plain Trackers are unlimited leaf-level counters, typically one per
// execution operator. They can be attached to a Limiter for reporting.
//
// # Consuming Memory
//
// Consume and Release update the whole ancestor chain unconditionally.
// TryConsume is the gating variant: it walks the chain from the root
// down, adding to unlimited ancestors unconditionally and to limited ones
// only if their limit is not reached. If a limit would be reached, the GC
// functions of that ancestor are run and the update is retried. If GC can
// not free enough memory, the ancestors already updated are rolled back
// and an error identifying the failing ancestor is returned. No locks are
// taken on this path, only atomic operations on the individual counters.
//
// Before touching any counter, TryConsume and CheckLimit consult the
// system memory guard of the tree, which compares the resident memory of
// the process against a physical ceiling.
//
// # Batched Revisions
//
// CacheConsumeLocal and TransferTo move attribution of memory between
// limiters without a corresponding allocation. These revisions are batched
// per limiter and never reach the process limiter, whose consumption must
// only reflect real allocator activity.
//
// # GC Functions
//
// Reclaimers registered with AddGCFunction are called in registration
// order when a limit is reached. GC passes on a Limiter are serialized, and
// a caller finding that a concurrent pass already freed enough memory does
// not start another one.
//
// # Allocation Hooks
//
// A Hook connects an allocator hook of a single worker to the tree,
// attributing updates to the currently attached Limiter and batching
// small updates.
package memtracker
