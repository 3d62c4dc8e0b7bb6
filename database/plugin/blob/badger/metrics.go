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

package badger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type blobMetrics struct {
	ops          *prometheus.CounterVec
	bytesWritten prometheus.Counter
	gcRuns       prometheus.Counter
}

func newBlobMetrics(registry prometheus.Registerer) *blobMetrics {
	promautoFactory := promauto.With(registry)
	return &blobMetrics{
		ops: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formvault_blob_ops_total",
				Help: "Blob store operations by type",
			},
			[]string{"op"},
		),
		bytesWritten: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "formvault_blob_written_bytes_total",
				Help: "Bytes written to the blob store",
			},
		),
		gcRuns: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "formvault_blob_gc_rewrites_total",
				Help: "Value log files rewritten by GC",
			},
		),
	}
}
