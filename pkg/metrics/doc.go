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


// Package metrics wraps prometheus collectors into named, grouped metrics
// which can be enabled and polled by glob at runtime. Collectors are
// registered in a group and get namespaced as <namespace>_<group>_<name>
// unless they opt out. Polled collectors are gathered periodically in the
// background and served from the last poll, which keeps walks over large
// tracker trees off the scrape path.
//
// Exporting memory tracker statistics looks roughly like this:
//
//	root, err := memtracker.SetupProcess()
//	if err != nil {
//		log.Fatal(err)
//	}
//	metrics.MustRegister(
//		"memtracker",
//		memtracker.NewCollector(root, 1),
//		metrics.WithGroup("memory"),
//	)
//
//	g, err := metrics.NewGatherer(
//		metrics.WithNamespace("nri_memtracker"),
//		metrics.WithMetrics([]string{"memory"}, []string{"memory/memtracker"}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer g.Stop()
//
//	http.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
package metrics
