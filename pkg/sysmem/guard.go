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

// Package sysmem provides guards checking the resident memory of the
// process against a physical memory ceiling, independently of any logical
// memory accounting.
package sysmem

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
)

// Guard reports the resident memory of the process and the ceiling it
// should stay below. A non-positive ceiling disables the check.
type Guard interface {
	CurrentResidentBytes() int64
	PhysicalCeiling() int64
}

// StaticGuard is a Guard with explicitly set values.
type StaticGuard struct {
	resident atomic.Int64
	ceiling  atomic.Int64
}

var _ Guard = &StaticGuard{}

// NewStaticGuard creates a guard with the given resident memory and ceiling.
func NewStaticGuard(resident, ceiling int64) *StaticGuard {
	g := &StaticGuard{}
	g.resident.Store(resident)
	g.ceiling.Store(ceiling)
	return g
}

func (g *StaticGuard) CurrentResidentBytes() int64 {
	return g.resident.Load()
}

func (g *StaticGuard) PhysicalCeiling() int64 {
	return g.ceiling.Load()
}

// SetResident updates the reported resident memory.
func (g *StaticGuard) SetResident(bytes int64) {
	g.resident.Store(bytes)
}

// SetCeiling updates the reported ceiling.
func (g *StaticGuard) SetCeiling(bytes int64) {
	g.ceiling.Store(bytes)
}

// ParseLimit parses a memory limit given either as a percentage of the
// physical memory ("80%") or as an absolute size ("8GiB", "512M"). An
// empty limit, "0" or a negative value parse to 0, which means no limit.
func ParseLimit(limit string, physical int64) (int64, error) {
	limit = strings.TrimSpace(limit)
	if limit == "" || strings.HasPrefix(limit, "-") {
		return 0, nil
	}

	if pct, ok := strings.CutSuffix(limit, "%"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid memory limit %q", limit)
		}
		if v < 0 || v > 100 {
			return 0, errors.Errorf("invalid memory limit %q, percentage out of range", limit)
		}
		if physical <= 0 {
			return 0, errors.Errorf("can't resolve memory limit %q, unknown physical memory", limit)
		}
		return int64(float64(physical) * v / 100), nil
	}

	v, err := units.RAMInBytes(limit)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid memory limit %q", limit)
	}

	return v, nil
}
