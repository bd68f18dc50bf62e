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

package healthz

import (
	"fmt"

	"github.com/containers/nri-memtracker/pkg/memtracker"
	"github.com/containers/nri-memtracker/pkg/sysmem"
)

// MemoryChecker returns a checker for the tracker tree under root. It
// reports NonFunctional once the resident memory of the process is above
// the guard's ceiling and Degraded while any limit down to depth levels
// below root is exceeded. A non-positive depth checks the default usage
// logging depth.
func MemoryChecker(root *memtracker.Limiter, guard sysmem.Guard, depth int) CheckFn {
	if depth <= 0 {
		depth = memtracker.DefaultUsageLogDepth
	}

	return func() (Status, error) {
		if guard != nil {
			ceiling, resident := guard.PhysicalCeiling(), guard.CurrentResidentBytes()
			if ceiling > 0 && resident > ceiling {
				return NonFunctional, fmt.Errorf("resident memory %d above ceiling %d",
					resident, ceiling)
			}
		}

		if exceeded := exceededLimiters(root, depth); len(exceeded) > 0 {
			return Degraded, fmt.Errorf("memory limit exceeded by %v", exceeded)
		}

		return Healthy, nil
	}
}

func exceededLimiters(l *memtracker.Limiter, depth int) []string {
	var labels []string
	if l.LimitExceeded() {
		labels = append(labels, l.Label())
	}
	if depth == 0 {
		return labels
	}
	for _, c := range l.Children() {
		labels = append(labels, exceededLimiters(c, depth-1)...)
	}
	return labels
}
