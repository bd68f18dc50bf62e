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
	"strings"
)

// LogUsage returns a textual report of the usage of the limiter and its
// descendants down to maxDepth levels below it, together with the logged
// consumption of the limiter. A zero maxDepth reports only the limiter
// itself, a negative one is unbounded. Limiting the depth matters most
// for the process limiter, which may have a very large number of children.
func (l *Limiter) LogUsage(maxDepth int) (string, int64) {
	var b strings.Builder
	consumption := l.logUsage(&b, "", maxDepth)
	return strings.TrimSuffix(b.String(), "\n"), consumption
}

func (l *Limiter) logUsage(b *strings.Builder, prefix string, maxDepth int) int64 {
	var (
		limit       = l.Limit()
		consumption = l.Consumption()
		peak        = l.Peak()
	)

	fmt.Fprintf(b, "%sMemTrackerLimiter Label=%s, Limit=%s, Used=%s(%d B), Peak=%s(%d B), Exceeded=%v\n",
		prefix, l.label, limitString(limit), prettySize(consumption), consumption,
		prettySize(peak), peak, limit >= 0 && consumption > limit)

	if maxDepth == 0 {
		return consumption
	}

	prefix += "  "
	for _, t := range l.Trackers() {
		fmt.Fprintf(b, "%sMemTracker Label=%s, Parent Label=%s, Used=%s(%d B), Peak=%s(%d B)\n",
			prefix, t.label, l.label, prettySize(t.Consumption()), t.Consumption(),
			prettySize(t.Peak()), t.Peak())
	}
	for _, c := range l.Children() {
		c.logUsage(b, prefix, maxDepth-1)
	}

	return consumption
}

// PrintLogUsage logs msg together with the usage of the limiter. Logging is
// rate limited per limiter and can be turned off altogether with a zero
// usage log interval.
func (l *Limiter) PrintLogUsage(msg string) {
	if l.usageLog == nil || !l.usageLog.Allow() {
		return
	}

	detail, _ := l.LogUsage(l.usageLogDepth)
	if root := l.root(); root != l {
		process, _ := root.LogUsage(0)
		detail += "\n" + process
	}

	log.Warn("%s\n%s", msg, detail)
}

func limitString(limit int64) string {
	if limit < 0 {
		return "none"
	}
	return fmt.Sprintf("%s(%d B)", prettySize(limit), limit)
}
