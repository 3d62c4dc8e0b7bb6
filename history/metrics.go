// Copyright 2025 Blink Labs Software
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

package history

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type historyMetrics struct {
	operations            *prometheus.CounterVec
	duration              *prometheus.HistogramVec
	idRetries             prometheus.Counter
	versionsPruned        prometheus.Counter
	submissionsReassigned prometheus.Counter
}

func newHistoryMetrics(promRegistry prometheus.Registerer) *historyMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &historyMetrics{
		operations: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formvault_history_operations_total",
				Help: "history operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: promautoFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formvault_history_operation_duration_seconds",
				Help:    "history operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		idRetries: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "formvault_history_version_id_retries_total",
				Help: "version inserts retried after an ID collision",
			},
		),
		versionsPruned: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "formvault_history_versions_pruned_total",
				Help: "versions deleted by force resets",
			},
		),
		submissionsReassigned: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "formvault_history_submissions_reassigned_total",
				Help: "submissions moved to a reset target",
			},
		),
	}
}

func (m *historyMetrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
