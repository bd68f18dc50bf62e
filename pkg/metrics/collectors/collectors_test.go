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

package collectors_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/containers/nri-memtracker/pkg/metrics/collectors"
	"github.com/containers/nri-memtracker/pkg/sysmem"
)

func TestProcessMemoryCollector(t *testing.T) {
	g := sysmem.NewStaticGuard(1000, -1)
	c := collectors.NewProcessMemoryCollector(g)

	expected := `
# HELP ceiling_bytes Resident memory ceiling for the process, 0 if unlimited.
# TYPE ceiling_bytes gauge
ceiling_bytes 0
# HELP resident_bytes Resident memory of the process, as last sampled.
# TYPE resident_bytes gauge
resident_bytes 1000
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))

	g.SetResident(2048)
	g.SetCeiling(4096)
	require.Equal(t, 2, testutil.CollectAndCount(c))
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP resident_bytes Resident memory of the process, as last sampled.
# TYPE resident_bytes gauge
resident_bytes 2048
`), "resident_bytes"))
}
