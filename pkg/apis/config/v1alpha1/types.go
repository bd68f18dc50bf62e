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

package v1alpha1

import (
	"fmt"
	"os"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/containers/nri-memtracker/pkg/apis/config/v1alpha1/instrumentation"
	"github.com/containers/nri-memtracker/pkg/apis/config/v1alpha1/log"
	"github.com/containers/nri-memtracker/pkg/apis/config/v1alpha1/memtracker"
)

const (
	// GroupVersion is the API group and version of our configuration.
	GroupVersion = "config.nri/v1alpha1"
	// Kind is the kind of our configuration object.
	Kind = "MemTrackerConfig"
)

// MemTrackerConfig represents the configuration of memory tracking.
// +kubebuilder:object:root=true
type MemTrackerConfig struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec MemTrackerConfigSpec `json:"spec"`
}

// MemTrackerConfigSpec describes memory tracking, logging and instrumentation.
type MemTrackerConfigSpec struct {
	// +optional
	MemTracker memtracker.Config `json:"memTracker,omitempty"`
	// +optional
	Log log.Config `json:"log,omitempty"`
	// +optional
	Instrumentation instrumentation.Config `json:"instrumentation,omitempty"`
}

// Default returns a configuration with all defaults.
func Default() *MemTrackerConfig {
	return &MemTrackerConfig{
		TypeMeta: metav1.TypeMeta{
			APIVersion: GroupVersion,
			Kind:       Kind,
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: "default",
		},
	}
}

// Parse parses the given YAML or JSON configuration.
func Parse(data []byte) (*MemTrackerConfig, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cfg.APIVersion != "" && cfg.APIVersion != GroupVersion {
		return nil, fmt.Errorf("unsupported configuration version %q", cfg.APIVersion)
	}
	if cfg.Kind != "" && cfg.Kind != Kind {
		return nil, fmt.Errorf("unsupported configuration kind %q", cfg.Kind)
	}

	if err := cfg.Spec.MemTracker.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %q: %w", cfg.Name, err)
	}

	return cfg, nil
}

// Load reads and parses the configuration from the given file.
func Load(path string) (*MemTrackerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return Parse(data)
}
