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

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	. "github.com/containers/nri-memtracker/pkg/memtracker"
)

func TestCollector(t *testing.T) {
	p := newReportTree(t)

	expected := `
# HELP consumption_bytes Memory currently attributed to the tracker.
# TYPE consumption_bytes gauge
consumption_bytes{level="0",path="Process",type="process"} 400
consumption_bytes{level="1",path="Process/query",type="limiter"} 400
consumption_bytes{level="2",path="Process/query/instance-1",type="limiter"} 300
consumption_bytes{level="2",path="Process/query/instance-2",type="limiter"} 100
consumption_bytes{level="2",path="Process/query/scan",type="tracker"} 64
# HELP limit_bytes Memory limit of the tracker, -1 if unlimited.
# TYPE limit_bytes gauge
limit_bytes{level="0",path="Process",type="process"} -1
limit_bytes{level="1",path="Process/query",type="limiter"} 1000
limit_bytes{level="2",path="Process/query/instance-1",type="limiter"} -1
limit_bytes{level="2",path="Process/query/instance-2",type="limiter"} -1
`
	c := NewCollector(p, 2)
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"consumption_bytes", "limit_bytes"))

	// depth limits the exported part of the tree
	require.Equal(t, 6+6, testutil.CollectAndCount(NewCollector(p, 1)))
	require.Equal(t, 6, testutil.CollectAndCount(NewCollector(p, 0)))
}

func TestCollectorDuplicateLabels(t *testing.T) {
	var (
		p = newProcess(t)
		q = newLimiter(t, p, "query", NoLimit)
	)
	newLimiter(t, q, "instance", NoLimit).Consume(1)
	newLimiter(t, q, "instance", NoLimit).Consume(2)

	expected := `
# HELP consumption_bytes Memory currently attributed to the tracker.
# TYPE consumption_bytes gauge
consumption_bytes{level="0",path="Process",type="process"} 3
consumption_bytes{level="1",path="Process/query",type="limiter"} 3
consumption_bytes{level="2",path="Process/query/instance",type="limiter"} 1
consumption_bytes{level="2",path="Process/query/instance#1",type="limiter"} 2
`
	require.NoError(t, testutil.CollectAndCompare(NewCollector(p, 2), strings.NewReader(expected),
		"consumption_bytes"))
}
