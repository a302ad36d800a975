// Copyright 2026 The zffmount Authors
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

// Package metrics exposes the small set of prometheus counters the
// dispatcher updates on every request (SPEC_FULL.md "internal/metrics"):
// just enough to see operation volume and outcome mix for a single mount,
// in the spirit of gcsfuse's own monitor package but scoped down to what a
// read-only adapter needs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// OpsTotal counts every dispatched FUSE operation, labeled by op name
// (lookup, getattr, readdir, read, readlink, open, opendir).
var OpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "zffmount",
		Name:      "ops_total",
		Help:      "Total number of dispatched FUSE operations, by operation.",
	},
	[]string{"op"},
)

// OutcomesTotal counts failed operations, labeled by op name and outcome
// (not_found, invalid_argument, corrupt, io_error). Successful operations
// are not counted here; OpsTotal counts every dispatched operation.
var OutcomesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "zffmount",
		Name:      "op_outcomes_total",
		Help:      "Total number of dispatched FUSE operations, by operation and outcome.",
	},
	[]string{"op", "outcome"},
)

// ObjectsMounted reports the object counts a projection found at mount
// time, labeled by kind (physical, logical, encrypted).
var ObjectsMounted = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "zffmount",
		Name:      "objects_mounted",
		Help:      "Number of container objects exposed by the current mount, by kind.",
	},
	[]string{"kind"},
)

func init() {
	prometheus.MustRegister(OpsTotal, OutcomesTotal, ObjectsMounted)
}
