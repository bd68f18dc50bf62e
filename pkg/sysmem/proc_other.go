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

//go:build !linux

package sysmem

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrUnsupported is returned on systems without procfs support.
var ErrUnsupported = errors.New("sysmem: process memory guard not supported on this system")

// ProcGuard is not available on this system.
type ProcGuard struct {
	StaticGuard
}

// PhysicalMemory is not available on this system.
func PhysicalMemory() (int64, error) {
	return 0, ErrUnsupported
}

// NewProcGuard is not available on this system.
func NewProcGuard(limit string) (*ProcGuard, error) {
	return nil, ErrUnsupported
}

// Refresh is not available on this system.
func (g *ProcGuard) Refresh() error {
	return ErrUnsupported
}

// Run returns once ctx is done.
func (g *ProcGuard) Run(ctx context.Context, _ time.Duration) {
	<-ctx.Done()
}

// PhysicalMemory is not available on this system.
func (g *ProcGuard) PhysicalMemory() int64 {
	return 0
}
