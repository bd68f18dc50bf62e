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

package memtracker

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/hashicorp/go-multierror"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	DefaultProcessMemLimit  = "80%"
	DefaultFlushThreshold   = "1M"
	DefaultGCExtraBytes     = "4M"
	DefaultUsageLogInterval = time.Minute
	DefaultUsageLogDepth    = 2
	DefaultRefreshInterval  = 100 * time.Millisecond
)

// Config provides runtime configuration for memory tracking.
// +k8s:deepcopy-gen=true
type Config struct {
	// ProcessMemLimit is the ceiling for the resident memory of the process,
	// either as a percentage of physical memory or as an absolute size.
	// An empty value or "0" disables the check.
	// +optional
	// +kubebuilder:default="80%"
	// +kubebuilder:example="16GiB"
	ProcessMemLimit string `json:"processMemLimit,omitempty"`
	// ResidentRefreshInterval is how often resident memory is sampled.
	// +optional
	// +kubebuilder:validation:Format="duration"
	// +kubebuilder:default="100ms"
	ResidentRefreshInterval metav1.Duration `json:"residentRefreshInterval,omitempty"`
	// FlushThreshold is the amount of batched attribution revisions a
	// tracker accumulates before propagating them to its ancestors.
	// +optional
	// +kubebuilder:default="1M"
	FlushThreshold string `json:"flushThreshold,omitempty"`
	// GCExtraBytes is how much memory GC functions are asked to free on
	// top of what is strictly needed, to avoid running GC again right away.
	// +optional
	// +kubebuilder:default="4M"
	GCExtraBytes string `json:"gcExtraBytes,omitempty"`
	// UsageLogInterval is the minimum interval between usage dumps logged
	// by a tracker when its limit is exceeded. Zero disables usage dumps.
	// +optional
	// +kubebuilder:validation:Format="duration"
	// +kubebuilder:default="1m"
	UsageLogInterval *metav1.Duration `json:"usageLogInterval,omitempty"`
	// UsageLogDepth is the depth of logged usage dumps.
	// +optional
	// +kubebuilder:default=2
	UsageLogDepth *int `json:"usageLogDepth,omitempty"`
	// CheckLimitOnHook makes allocation hooks reject allocations which
	// would exceed a limit instead of only accounting for them.
	// +optional
	CheckLimitOnHook bool `json:"checkLimitOnHook,omitempty"`
}

// Settings are the resolved values of a Config.
type Settings struct {
	ProcessMemLimit         string
	ResidentRefreshInterval time.Duration
	FlushThreshold          int64
	GCExtraBytes            int64
	UsageLogInterval        time.Duration
	UsageLogDepth           int
	CheckLimitOnHook        bool
}

// Validate checks the configuration, reporting all errors found.
func (c *Config) Validate() error {
	_, err := c.Resolve()
	return err
}

// Resolve returns the settings of the configuration, with defaults filled
// in for unset values.
func (c *Config) Resolve() (*Settings, error) {
	var (
		result *multierror.Error
		s      = &Settings{
			ProcessMemLimit:         c.ProcessMemLimit,
			ResidentRefreshInterval: c.ResidentRefreshInterval.Duration,
			UsageLogInterval:        DefaultUsageLogInterval,
			UsageLogDepth:           DefaultUsageLogDepth,
			CheckLimitOnHook:        c.CheckLimitOnHook,
		}
	)

	if s.ProcessMemLimit == "" {
		s.ProcessMemLimit = DefaultProcessMemLimit
	}
	if s.ResidentRefreshInterval == 0 {
		s.ResidentRefreshInterval = DefaultRefreshInterval
	}
	if s.ResidentRefreshInterval < 0 {
		result = multierror.Append(result,
			fmt.Errorf("invalid residentRefreshInterval %s", s.ResidentRefreshInterval))
	}

	size, err := parseSize("flushThreshold", c.FlushThreshold, DefaultFlushThreshold)
	if err != nil {
		result = multierror.Append(result, err)
	}
	s.FlushThreshold = size

	size, err = parseSize("gcExtraBytes", c.GCExtraBytes, DefaultGCExtraBytes)
	if err != nil {
		result = multierror.Append(result, err)
	}
	s.GCExtraBytes = size

	if c.UsageLogInterval != nil {
		if s.UsageLogInterval = c.UsageLogInterval.Duration; s.UsageLogInterval < 0 {
			result = multierror.Append(result,
				fmt.Errorf("invalid usageLogInterval %s", s.UsageLogInterval))
		}
	}
	if c.UsageLogDepth != nil {
		if s.UsageLogDepth = *c.UsageLogDepth; s.UsageLogDepth < 0 {
			result = multierror.Append(result,
				fmt.Errorf("invalid usageLogDepth %d", s.UsageLogDepth))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return s, nil
}

func parseSize(field, value, def string) (int64, error) {
	if value == "" {
		value = def
	}
	size, err := units.RAMInBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if size < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative size", field, value)
	}
	return size, nil
}
