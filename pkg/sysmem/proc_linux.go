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

//go:build linux

package sysmem

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	logger "github.com/containers/nri-memtracker/pkg/log"
)

var (
	log = logger.Get("sysmem")
)

const (
	// DefaultRefreshInterval is the default interval for refreshing the
	// cached resident memory of the process.
	DefaultRefreshInterval = 100 * time.Millisecond
)

// ProcGuard is a Guard reporting the resident memory of the current
// process from procfs. Resident memory is cached and refreshed either
// explicitly or periodically, to keep the cost of checking it low.
type ProcGuard struct {
	proc     procfs.Proc
	physical int64
	ceiling  int64
	resident atomic.Int64
}

var _ Guard = &ProcGuard{}

// PhysicalMemory returns the total amount of physical memory in the system.
func PhysicalMemory() (int64, error) {
	info := unix.Sysinfo_t{}
	if err := unix.Sysinfo(&info); err != nil {
		return 0, errors.Wrap(err, "failed to query physical memory")
	}
	return int64(uint64(info.Totalram) * uint64(info.Unit)), nil
}

// NewProcGuard creates a guard for the current process with the given
// limit, as accepted by ParseLimit.
func NewProcGuard(limit string) (*ProcGuard, error) {
	proc, err := procfs.Self()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open procfs entry of process")
	}

	physical, err := PhysicalMemory()
	if err != nil {
		return nil, err
	}

	ceiling, err := ParseLimit(limit, physical)
	if err != nil {
		return nil, err
	}

	g := &ProcGuard{
		proc:     proc,
		physical: physical,
		ceiling:  ceiling,
	}

	if err := g.Refresh(); err != nil {
		return nil, err
	}

	log.Info("process memory ceiling %d bytes (limit %q, physical memory %d bytes)",
		ceiling, limit, physical)

	return g, nil
}

// Refresh updates the cached resident memory of the process.
func (g *ProcGuard) Refresh() error {
	stat, err := g.proc.Stat()
	if err != nil {
		return errors.Wrap(err, "failed to read process stat")
	}
	g.resident.Store(int64(stat.ResidentMemory()))
	return nil
}

// Run refreshes resident memory periodically until ctx is done.
func (g *ProcGuard) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.Refresh(); err != nil {
				log.Error("%v", err)
			}
		}
	}
}

func (g *ProcGuard) CurrentResidentBytes() int64 {
	return g.resident.Load()
}

func (g *ProcGuard) PhysicalCeiling() int64 {
	return g.ceiling
}

// PhysicalMemory returns the total physical memory seen by the guard.
func (g *ProcGuard) PhysicalMemory() int64 {
	return g.physical
}
