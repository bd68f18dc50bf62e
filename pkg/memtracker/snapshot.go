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
	"sigs.k8s.io/yaml"
)

const (
	// TypeProcess is the snapshot type of the process limiter.
	TypeProcess = "process"
	// TypeLimiter is the snapshot type of limiters.
	TypeLimiter = "limiter"
	// TypeTracker is the snapshot type of plain trackers.
	TypeTracker = "tracker"
)

// Snapshot is a point in time record of the state of a tracker.
type Snapshot struct {
	Type          string `json:"type"`
	Label         string `json:"label"`
	Parent        string `json:"parent,omitempty"`
	Level         int    `json:"level"`
	Limit         int64  `json:"limit"`
	Consumption   int64  `json:"consumption"`
	Peak          int64  `json:"peak"`
	ChildCount    int    `json:"childCount,omitempty"`
	HadChildCount int64  `json:"hadChildCount,omitempty"`
}

// Usage is a nested report of the usage of a limiter and its descendants.
type Usage struct {
	Label       string  `json:"label"`
	Limit       int64   `json:"limit"`
	Consumption int64   `json:"consumption"`
	Peak        int64   `json:"peak"`
	Trackers    []Usage `json:"trackers,omitempty"`
	Children    []Usage `json:"children,omitempty"`
}

// MakeSnapshot returns a snapshot of the limiter, recording it at level.
func (l *Limiter) MakeSnapshot(level int) Snapshot {
	s := Snapshot{
		Type:          TypeLimiter,
		Label:         l.label,
		Level:         level,
		Limit:         l.Limit(),
		Consumption:   l.Consumption(),
		Peak:          l.Peak(),
		ChildCount:    l.RemainChildCount(),
		HadChildCount: l.HadChildCount(),
	}
	if l.isProcess {
		s.Type = TypeProcess
	}
	if l.parent != nil {
		s.Parent = l.parent.label
	}
	return s
}

// MakeSnapshot returns a snapshot of the tracker, recording it at level.
func (t *Tracker) MakeSnapshot(level int) Snapshot {
	s := Snapshot{
		Type:        TypeTracker,
		Label:       t.label,
		Level:       level,
		Limit:       NoLimit,
		Consumption: t.Consumption(),
		Peak:        t.Peak(),
	}
	if t.parent != nil {
		s.Parent = t.parent.label
	}
	return s
}

// MakeSnapshots returns snapshots of the limiter and its descendants down
// to upperLevel levels below it, in pre-order. Plain trackers attached to
// a limiter are listed before its child limiters. With upperLevel 0 only
// the limiter itself is included.
func (l *Limiter) MakeSnapshots(upperLevel int) []Snapshot {
	var snapshots []Snapshot
	l.makeSnapshots(&snapshots, 0, upperLevel)
	return snapshots
}

func (l *Limiter) makeSnapshots(snapshots *[]Snapshot, curLevel, upperLevel int) {
	*snapshots = append(*snapshots, l.MakeSnapshot(curLevel))
	if curLevel >= upperLevel {
		return
	}
	for _, t := range l.Trackers() {
		*snapshots = append(*snapshots, t.MakeSnapshot(curLevel+1))
	}
	for _, c := range l.Children() {
		c.makeSnapshots(snapshots, curLevel+1, upperLevel)
	}
}

// Usage returns a nested usage report of the limiter and its descendants
// down to maxDepth levels below it. A negative maxDepth is unbounded.
func (l *Limiter) Usage(maxDepth int) Usage {
	u := Usage{
		Label:       l.label,
		Limit:       l.Limit(),
		Consumption: l.Consumption(),
		Peak:        l.Peak(),
	}

	if maxDepth == 0 {
		return u
	}

	for _, t := range l.Trackers() {
		u.Trackers = append(u.Trackers, Usage{
			Label:       t.label,
			Limit:       NoLimit,
			Consumption: t.Consumption(),
			Peak:        t.Peak(),
		})
	}
	for _, c := range l.Children() {
		u.Children = append(u.Children, c.Usage(maxDepth-1))
	}

	return u
}

// YAML returns the usage report marshalled as YAML.
func (u Usage) YAML() ([]byte, error) {
	return yaml.Marshal(u)
}
