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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type collector struct {
	root        *Limiter
	depth       int
	consumption *prometheus.Desc
	peak        *prometheus.Desc
	limit       *prometheus.Desc
	gc          *prometheus.Desc
	gcFailures  *prometheus.Desc
	exceeded    *prometheus.Desc
}

var _ prometheus.Collector = &collector{}

// NewCollector returns a prometheus collector for the usage of root and its
// descendants down to depth levels below it. Trackers are identified by
// their label path from root.
func NewCollector(root *Limiter, depth int) prometheus.Collector {
	labels := []string{"path", "type", "level"}
	return &collector{
		root:  root,
		depth: depth,
		consumption: prometheus.NewDesc("consumption_bytes",
			"Memory currently attributed to the tracker.", labels, nil),
		peak: prometheus.NewDesc("peak_bytes",
			"Highest memory ever attributed to the tracker.", labels, nil),
		limit: prometheus.NewDesc("limit_bytes",
			"Memory limit of the tracker, -1 if unlimited.", labels, nil),
		gc: prometheus.NewDesc("gc_total",
			"Number of GC passes run on the tracker.", labels, nil),
		gcFailures: prometheus.NewDesc("gc_failures_total",
			"Number of GC passes which failed to free enough memory.", labels, nil),
		exceeded: prometheus.NewDesc("limit_exceeded_total",
			"Number of allocations rejected due to the limit of the tracker.", labels, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.consumption
	ch <- c.peak
	ch <- c.limit
	ch <- c.gc
	ch <- c.gcFailures
	ch <- c.exceeded
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	seen := map[string]int{}
	c.collect(ch, c.root, "", 0, seen)
}

func (c *collector) collect(ch chan<- prometheus.Metric, l *Limiter, prefix string, level int, seen map[string]int) {
	var (
		path  = uniquePath(prefix+l.label, seen)
		typ   = TypeLimiter
		lvl   = strconv.Itoa(level)
		gauge = prometheus.GaugeValue
		count = prometheus.CounterValue
	)
	if l.isProcess {
		typ = TypeProcess
	}

	ch <- prometheus.MustNewConstMetric(c.consumption, gauge, float64(l.Consumption()), path, typ, lvl)
	ch <- prometheus.MustNewConstMetric(c.peak, gauge, float64(l.Peak()), path, typ, lvl)
	ch <- prometheus.MustNewConstMetric(c.limit, gauge, float64(l.Limit()), path, typ, lvl)
	ch <- prometheus.MustNewConstMetric(c.gc, count, float64(l.GCCount()), path, typ, lvl)
	ch <- prometheus.MustNewConstMetric(c.gcFailures, count, float64(l.GCFailCount()), path, typ, lvl)
	ch <- prometheus.MustNewConstMetric(c.exceeded, count, float64(l.ExceededCount()), path, typ, lvl)

	if level >= c.depth {
		return
	}

	lvl = strconv.Itoa(level + 1)
	for _, t := range l.Trackers() {
		tpath := uniquePath(path+"/"+t.label, seen)
		ch <- prometheus.MustNewConstMetric(c.consumption, gauge, float64(t.Consumption()), tpath, TypeTracker, lvl)
		ch <- prometheus.MustNewConstMetric(c.peak, gauge, float64(t.Peak()), tpath, TypeTracker, lvl)
	}
	for _, child := range l.Children() {
		c.collect(ch, child, path+"/", level+1, seen)
	}
}

// uniquePath disambiguates identically labelled siblings.
func uniquePath(path string, seen map[string]int) string {
	n := seen[path]
	seen[path] = n + 1
	if n == 0 {
		return path
	}
	return path + "#" + strconv.Itoa(n)
}
