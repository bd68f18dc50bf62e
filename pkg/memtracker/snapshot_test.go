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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	. "github.com/containers/nri-memtracker/pkg/memtracker"
)

func newReportTree(t *testing.T) *Limiter {
	var (
		p  = newProcess(t)
		q  = newLimiter(t, p, "query", 1000)
		i1 = newLimiter(t, q, "instance-1", NoLimit)
		i2 = newLimiter(t, q, "instance-2", NoLimit)
		op = NewTracker("scan", q)
	)

	i1.Consume(300)
	i2.Consume(200)
	i2.Release(100)
	op.Consume(64)

	return p
}

func TestMakeSnapshots(t *testing.T) {
	p := newReportTree(t)

	type testCase struct {
		name     string
		level    int
		expected []Snapshot
	}

	var (
		process = Snapshot{
			Type: TypeProcess, Label: "Process", Level: 0, Limit: NoLimit,
			Consumption: 400, Peak: 500, ChildCount: 1, HadChildCount: 1,
		}
		query = Snapshot{
			Type: TypeLimiter, Label: "query", Parent: "Process", Level: 1, Limit: 1000,
			Consumption: 400, Peak: 500, ChildCount: 2, HadChildCount: 2,
		}
		scan = Snapshot{
			Type: TypeTracker, Label: "scan", Parent: "query", Level: 2, Limit: NoLimit,
			Consumption: 64, Peak: 64,
		}
		i1 = Snapshot{
			Type: TypeLimiter, Label: "instance-1", Parent: "query", Level: 2, Limit: NoLimit,
			Consumption: 300, Peak: 300,
		}
		i2 = Snapshot{
			Type: TypeLimiter, Label: "instance-2", Parent: "query", Level: 2, Limit: NoLimit,
			Consumption: 100, Peak: 200,
		}
	)

	for _, tc := range []*testCase{
		{name: "self only", level: 0, expected: []Snapshot{process}},
		{name: "one level", level: 1, expected: []Snapshot{process, query}},
		{name: "full tree", level: 2, expected: []Snapshot{process, query, scan, i1, i2}},
		{name: "deeper than tree", level: 10, expected: []Snapshot{process, query, scan, i1, i2}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.expected, p.MakeSnapshots(tc.level)); diff != "" {
				t.Errorf("unexpected snapshots (-expected +got):\n%s", diff)
			}
		})
	}
}

func TestUsage(t *testing.T) {
	p := newReportTree(t)

	expected := Usage{
		Label: "Process", Limit: NoLimit, Consumption: 400, Peak: 500,
		Children: []Usage{
			{
				Label: "query", Limit: 1000, Consumption: 400, Peak: 500,
				Trackers: []Usage{
					{Label: "scan", Limit: NoLimit, Consumption: 64, Peak: 64},
				},
				Children: []Usage{
					{Label: "instance-1", Limit: NoLimit, Consumption: 300, Peak: 300},
					{Label: "instance-2", Limit: NoLimit, Consumption: 100, Peak: 200},
				},
			},
		},
	}

	if diff := cmp.Diff(expected, p.Usage(-1)); diff != "" {
		t.Errorf("unexpected usage (-expected +got):\n%s", diff)
	}

	shallow := p.Usage(1)
	require.Len(t, shallow.Children, 1)
	require.Empty(t, shallow.Children[0].Children)
	require.Empty(t, shallow.Children[0].Trackers)

	data, err := p.Usage(-1).YAML()
	require.NoError(t, err)

	parsed := Usage{}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	if diff := cmp.Diff(expected, parsed); diff != "" {
		t.Errorf("unexpected YAML round trip (-expected +got):\n%s", diff)
	}
}

func TestLogUsage(t *testing.T) {
	p := newReportTree(t)

	out, consumption := p.LogUsage(0)
	require.Equal(t, int64(400), consumption)
	require.Equal(t,
		"MemTrackerLimiter Label=Process, Limit=none, Used=400B(400 B), Peak=500B(500 B), Exceeded=false",
		out)

	out, _ = p.LogUsage(-1)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	require.True(t, strings.HasPrefix(lines[1], "  MemTrackerLimiter Label=query, Limit=1000B(1000 B)"))
	require.Equal(t,
		"    MemTracker Label=scan, Parent Label=query, Used=64B(64 B), Peak=64B(64 B)",
		lines[2])
	require.True(t, strings.HasPrefix(lines[3], "    MemTrackerLimiter Label=instance-1,"))
	require.True(t, strings.HasPrefix(lines[4], "    MemTrackerLimiter Label=instance-2,"))
}
