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
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	cfgapi "github.com/containers/nri-memtracker/pkg/apis/config/v1alpha1/instrumentation"
	"github.com/containers/nri-memtracker/pkg/healthz"
	logger "github.com/containers/nri-memtracker/pkg/log"
	"github.com/containers/nri-memtracker/pkg/metrics"
)

const (
	// ServiceName is our service name in external metrics services.
	ServiceName = "nri-memtracker"
	// MetricsNamespace is the common prefix of our metrics.
	MetricsNamespace = "nri_memtracker"

	shutdownTimeout = 5 * time.Second
)

var (
	// Our runtime configuration.
	cfg = &cfgapi.Config{}
	// Lock to protect against reconfiguration.
	lock sync.RWMutex
	// Our HTTP server instance and the address it listens on.
	srv     *http.Server
	address string
	// Our metrics gatherer.
	gatherer *metrics.Gatherer
	// Our logger instance.
	log = logger.NewLogger("instrumentation")

	// DefaultEnabledMetrics are the metrics enabled if none are configured.
	DefaultEnabledMetrics = []string{"memory", "standard"}
	// DefaultPolledMetrics are the metrics polled if none are configured.
	DefaultPolledMetrics = []string{"memory/memtracker"}
)

// HTTPAddress returns the address our HTTP server listens on.
func HTTPAddress() string {
	lock.RLock()
	defer lock.RUnlock()
	return address
}

// Start our instrumentation services with the given configuration.
func Start(newCfg *cfgapi.Config) error {
	log.Info("starting instrumentation services...")

	lock.Lock()
	defer lock.Unlock()

	if newCfg != nil {
		cfg = newCfg
	}

	return start()
}

// Stop our instrumentation services.
func Stop() {
	lock.Lock()
	defer lock.Unlock()

	stop()
}

// Restart our instrumentation services.
func Restart() error {
	lock.Lock()
	defer lock.Unlock()

	stop()

	err := start()
	if err != nil {
		log.Error("failed to start instrumentation: %v", err)
	}

	return err
}

// Reconfigure our instrumentation services.
func Reconfigure(newCfg *cfgapi.Config) error {
	lock.Lock()
	cfg = newCfg
	lock.Unlock()

	return Restart()
}

func start() error {
	enabled, polled := cfg.Metrics.Enabled, cfg.Metrics.Polled
	if len(enabled) == 0 && len(polled) == 0 {
		enabled, polled = DefaultEnabledMetrics, DefaultPolledMetrics
	}

	period := cfg.ReportPeriod.Duration
	if period == 0 {
		period = cfgapi.DefaultReportPeriod
	}

	g, err := metrics.NewGatherer(
		metrics.WithNamespace(MetricsNamespace),
		metrics.WithPollInterval(period),
		metrics.WithMetrics(enabled, polled),
	)
	if err != nil {
		return fmt.Errorf("failed to start metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	healthz.Setup(mux)

	endpoint := cfg.HTTPEndpoint
	if endpoint == "" {
		endpoint = cfgapi.DefaultHTTPEndpoint
	}

	l, err := net.Listen("tcp", endpoint)
	if err != nil {
		g.Stop()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}
	go func() {
		if err := s.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed: %v", err)
		}
	}()

	srv, gatherer, address = s, g, l.Addr().String()
	log.Info("serving metrics and health checks at %s", address)

	return nil
}

func stop() {
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("failed to shut down HTTP server: %v", err)
		}
		srv = nil
		address = ""
	}

	if gatherer != nil {
		gatherer.Stop()
		gatherer = nil
	}
}
