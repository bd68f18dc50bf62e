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
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/containers/nri-memtracker/pkg/memtracker"
)

func TestProcessSingleton(t *testing.T) {
	require.Nil(t, Process())

	p, err := SetupProcess(WithLabel("test-process"), WithUsageLogging(0, 0))
	require.NoError(t, err)
	defer TeardownProcess()

	require.Equal(t, p, Process())
	require.Equal(t, "test-process", Process().Label())

	_, err = SetupProcess()
	require.ErrorIs(t, err, ErrProcessExists)
	require.Equal(t, p, Process())

	q := newLimiter(t, Process(), "query", NoLimit)
	q.Close()

	TeardownProcess()
	require.Nil(t, Process())
	TeardownProcess()
}
