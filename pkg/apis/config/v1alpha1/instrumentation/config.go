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

package instrumentation

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	DefaultHTTPEndpoint = ":8891"
	DefaultReportPeriod = 30 * time.Second
)

// Config provides runtime configuration for instrumentation.
// +k8s:deepcopy-gen=true
type Config struct {
	// HTTPEndpoint is the address our HTTP server listens on. This endpoint
	// is used to expose Prometheus metrics and health checks.
	// +optional
	// +kubebuilder:example=":8891"
	HTTPEndpoint string `json:"httpEndpoint,omitempty"`
	// ReportPeriod is the interval between collecting polled metrics.
	// +optional
	// +kubebuilder:validation:Format="duration"
	// +kubebuilder:default="30s"
	ReportPeriod metav1.Duration `json:"reportPeriod,omitempty"`
	// Metrics defines which metrics to collect.
	// +optional
	Metrics MetricsConfig `json:"metrics,omitempty"`
	// UsageDepth is the depth of the tracker tree exported as metrics and
	// checked for exceeded limits by health checks.
	// +optional
	// +kubebuilder:default=2
	UsageDepth int `json:"usageDepth,omitempty"`
}

// MetricsConfig selects the enabled and the polled metrics collectors
// using glob patterns matched against collector groups and names.
type MetricsConfig struct {
	// +optional
	// +kubebuilder:default={"memory", "standard"}
	Enabled []string `json:"enabled,omitempty"`
	// +optional
	// +kubebuilder:default={"memory/memtracker"}
	Polled []string `json:"polled,omitempty"`
}
