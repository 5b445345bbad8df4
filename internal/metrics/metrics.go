// Copyright 2025 Tom Barlow
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

// Package metrics exposes the Prometheus counters and gauges the runner,
// queue, and retry worker update as they process webhook requests.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ProcessedTotal counts webhook requests the runner successfully ran a
	// step pipeline for.
	ProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trackerbridge_processed_total",
		Help: "Total number of webhook requests successfully processed.",
	})

	// IgnoredTotal counts webhook requests the runner dropped as an
	// IgnoreInvalidRequest (no matching action, private bug disallowed,
	// unclassifiable event).
	IgnoredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trackerbridge_ignored_total",
		Help: "Total number of webhook requests ignored as invalid.",
	})

	// QueueSize reports the current number of queued items per bug id, set
	// by the retry worker and webhook intake whenever they observe a
	// backend's Size.
	QueueSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trackerbridge_queue_size",
		Help: "Number of queued items for a given bug id.",
	}, []string{"bug_id"})

	// RetryPassDuration records how long one retry worker pass took.
	RetryPassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trackerbridge_retry_pass_duration_seconds",
		Help:    "Duration of one retry worker pass.",
		Buckets: prometheus.DefBuckets,
	})
)

// Registry is the collector registry the daemon exposes on its metrics
// endpoint. Using an explicit registry rather than the global default keeps
// test runs free of cross-test collector registration panics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(ProcessedTotal, IgnoredTotal, QueueSize, RetryPassDuration)
}
