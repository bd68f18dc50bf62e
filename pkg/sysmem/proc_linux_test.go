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

package sysmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/containers/nri-memtracker/pkg/sysmem"
)

func TestProcGuard(t *testing.T) {
	physical, err := sysmem.PhysicalMemory()
	require.NoError(t, err)
	require.Greater(t, physical, int64(0))

	g, err := sysmem.NewProcGuard("50%")
	require.NoError(t, err)
	require.Equal(t, physical, g.PhysicalMemory())
	require.Equal(t, physical/2, g.PhysicalCeiling())
	require.Greater(t, g.CurrentResidentBytes(), int64(0))
	require.NoError(t, g.Refresh())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	g.Run(ctx, 10*time.Millisecond)
	require.Greater(t, g.CurrentResidentBytes(), int64(0))

	g, err = sysmem.NewProcGuard("")
	require.NoError(t, err)
	require.Equal(t, int64(0), g.PhysicalCeiling())

	_, err = sysmem.NewProcGuard("bogus")
	require.Error(t, err)
}
