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

package healthz_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/containers/nri-memtracker/pkg/healthz"
	"github.com/containers/nri-memtracker/pkg/memtracker"
	"github.com/containers/nri-memtracker/pkg/sysmem"
)

func get(t *testing.T, mux *http.ServeMux) (int, string) {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	return rec.Code, rec.Body.String()
}

func TestServe(t *testing.T) {
	mux := http.NewServeMux()
	healthz.Setup(mux)

	code, body := get(t, mux)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body)

	healthz.RegisterHealthChecker("broken", func() (healthz.Status, error) {
		return healthz.Degraded, errors.New("out of widgets")
	})
	defer healthz.UnregisterHealthChecker("broken")

	require.Panics(t, func() {
		healthz.RegisterHealthChecker("broken", func() (healthz.Status, error) {
			return healthz.Healthy, nil
		})
	})

	code, body = get(t, mux)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "degraded\nbroken: out of widgets\n", body)

	healthz.UnregisterHealthChecker("broken")
	code, _ = get(t, mux)
	require.Equal(t, http.StatusOK, code)
}

func TestMemoryChecker(t *testing.T) {
	guard := sysmem.NewStaticGuard(100, 1000)
	root, err := memtracker.NewProcessLimiter(memtracker.WithSysMemGuard(guard))
	require.NoError(t, err)

	query, err := memtracker.NewLimiter(root, "query", 500)
	require.NoError(t, err)
	instance, err := memtracker.NewLimiter(query, "instance", memtracker.NoLimit)
	require.NoError(t, err)

	check := healthz.MemoryChecker(root, guard, 0)

	status, err := check()
	require.Equal(t, healthz.Healthy, status)
	require.NoError(t, err)

	// plain consumption is not limit checked
	instance.Consume(600)
	status, err = check()
	require.Equal(t, healthz.Degraded, status)
	require.ErrorContains(t, err, "query")

	instance.Release(600)
	guard.SetResident(2000)
	status, err = check()
	require.Equal(t, healthz.NonFunctional, status)
	require.Error(t, err)
}

func TestMemoryCheckerDepth(t *testing.T) {
	root, err := memtracker.NewProcessLimiter()
	require.NoError(t, err)

	query, err := memtracker.NewLimiter(root, "query", 500)
	require.NoError(t, err)
	instance, err := memtracker.NewLimiter(query, "instance", memtracker.NoLimit)
	require.NoError(t, err)
	operator, err := memtracker.NewLimiter(instance, "operator", 10)
	require.NoError(t, err)

	operator.Consume(20)
	defer operator.Release(20)

	for _, tc := range []struct {
		depth  int
		status healthz.Status
	}{
		{depth: 1, status: healthz.Healthy},
		{depth: 2, status: healthz.Healthy},
		{depth: 3, status: healthz.Degraded},
	} {
		status, err := healthz.MemoryChecker(root, nil, tc.depth)()
		require.Equal(t, tc.status, status, "depth %d", tc.depth)
		if tc.status == healthz.Degraded {
			require.ErrorContains(t, err, "operator")
		} else {
			require.NoError(t, err)
		}
	}
}
