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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"

	cfgapi "github.com/containers/nri-memtracker/pkg/apis/config/v1alpha1"
	mtcfg "github.com/containers/nri-memtracker/pkg/apis/config/v1alpha1/memtracker"
	"github.com/containers/nri-memtracker/pkg/healthz"
	"github.com/containers/nri-memtracker/pkg/instrumentation"
	logger "github.com/containers/nri-memtracker/pkg/log"
	"github.com/containers/nri-memtracker/pkg/memtracker"
	"github.com/containers/nri-memtracker/pkg/metrics"
	"github.com/containers/nri-memtracker/pkg/metrics/collectors"
	"github.com/containers/nri-memtracker/pkg/sysmem"
	"github.com/containers/nri-memtracker/pkg/version"
)

var (
	log = logger.Get("stress")
)

func main() {
	var (
		configFile string
		duration   time.Duration
		queryLimit string
		allocSize  string
		wlc        workloadConfig
		printVer   bool
	)

	flag.StringVar(&configFile, "config", "", "configuration file name")
	flag.DurationVar(&duration, "duration", 10*time.Second, "how long to run the workload")
	flag.IntVar(&wlc.queries, "queries", 4, "number of concurrent queries")
	flag.IntVar(&wlc.instances, "instances", 4, "number of instances (workers) per query")
	flag.StringVar(&queryLimit, "query-limit", "64M", "memory limit of a single query")
	flag.StringVar(&allocSize, "alloc-size", "256k", "maximum size of a single allocation")
	flag.BoolVar(&printVer, "version", false, "print version information and exit")
	flag.Parse()

	if printVer {
		fmt.Printf("memtracker-stress version %s, build %s\n", version.Version, version.Build)
		return
	}

	cfg := cfgapi.Default()
	if configFile != "" {
		c, err := cfgapi.Load(configFile)
		if err != nil {
			log.Fatal("failed to load configuration: %v", err)
		}
		cfg = c
	}

	if err := logger.Configure(&cfg.Spec.Log); err != nil {
		log.Fatal("failed to configure logging: %v", err)
	}
	defer logger.Flush()
	logger.SetSlogLogger("")

	settings, err := cfg.Spec.MemTracker.Resolve()
	if err != nil {
		log.Fatal("invalid memory tracker configuration: %v", err)
	}
	wlc.checkLimit = settings.CheckLimitOnHook

	if wlc.queryLimit, err = units.RAMInBytes(queryLimit); err != nil {
		log.Fatal("invalid query limit %q: %v", queryLimit, err)
	}
	if wlc.allocSize, err = units.RAMInBytes(allocSize); err != nil || wlc.allocSize <= 0 {
		log.Fatal("invalid allocation size %q: %v", allocSize, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, settings, wlc, duration); err != nil {
		log.Fatal("%v", err)
	}
}

func run(ctx context.Context, cfg *cfgapi.MemTrackerConfig, settings *mtcfg.Settings,
	wlc workloadConfig, duration time.Duration) error {
	guard, err := sysmem.NewProcGuard(settings.ProcessMemLimit)
	if err != nil {
		return err
	}

	process, err := memtracker.SetupProcess(
		memtracker.WithSysMemGuard(guard),
		memtracker.WithFlushThreshold(settings.FlushThreshold),
		memtracker.WithGCExtraBytes(settings.GCExtraBytes),
		memtracker.WithUsageLogging(settings.UsageLogInterval, settings.UsageLogDepth),
	)
	if err != nil {
		return err
	}
	defer memtracker.TeardownProcess()

	if err := registerMetrics(cfg, process, guard); err != nil {
		return err
	}

	healthz.RegisterHealthChecker("memory", healthz.MemoryChecker(process, guard,
		cfg.Spec.Instrumentation.UsageDepth))
	defer healthz.UnregisterHealthChecker("memory")

	if err := instrumentation.Start(&cfg.Spec.Instrumentation); err != nil {
		return err
	}
	defer instrumentation.Stop()

	w, err := newWorkload(process, wlc)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		guard.Run(gctx, settings.ResidentRefreshInterval)
		return nil
	})
	g.Go(func() error {
		log.Info("running %d queries with %d instances each for %s",
			wlc.queries, wlc.instances, duration)
		return w.run(gctx)
	})

	err = g.Wait()

	report(process, w)
	w.close()

	return err
}

func registerMetrics(cfg *cfgapi.MemTrackerConfig, process *memtracker.Limiter, guard sysmem.Guard) error {
	depth := cfg.Spec.Instrumentation.UsageDepth
	if depth <= 0 {
		depth = memtracker.DefaultUsageLogDepth
	}

	if err := metrics.Register("memtracker", memtracker.NewCollector(process, depth),
		metrics.WithGroup("memory")); err != nil {
		return err
	}

	return collectors.RegisterProcessMemory(guard)
}

func report(process *memtracker.Limiter, w *workload) {
	usage, total := process.LogUsage(-1)
	fmt.Printf("allocations %d, rejected %d, transferred %s, total tracked %s\n",
		w.allocs.Load(), w.rejected.Load(), units.BytesSize(float64(w.moved.Load())),
		units.BytesSize(float64(total)))
	fmt.Println(usage)

	data, err := process.Usage(-1).YAML()
	if err != nil {
		log.Error("failed to dump usage: %v", err)
		return
	}
	fmt.Printf("---\n%s", data)
}
