// Copyright 2022 Sogang University
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

package registry

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the collectors exported by the registry.
type metrics struct {
	samples  prometheus.Gauge
	skipped  prometheus.Gauge
	jobs     prometheus.Counter
	events   prometheus.Counter
	populate prometheus.Histogram
}

// newMetrics creates the collectors and registers them with reg.  A nil reg
// leaves them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		samples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meanalysis_samples",
			Help: "Number of samples currently registered.",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meanalysis_samples_skipped",
			Help: "Number of registered samples marked to be skipped.",
		}),
		jobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meanalysis_scheduled_jobs_total",
			Help: "Total jobs assigned to workers.",
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meanalysis_scheduled_events_total",
			Help: "Total events covered by the assigned jobs.",
		}),
		populate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meanalysis_populate_duration_seconds",
			Help:    "Time spent counting the events of a sample.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.samples, m.skipped, m.jobs, m.events, m.populate)
	}
	return m
}
