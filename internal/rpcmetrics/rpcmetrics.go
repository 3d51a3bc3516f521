// Package rpcmetrics is the Prometheus adapter for rpc.Metrics, kept
// outside the core package so the dispatcher kernel never imports a
// metrics client directly.
package rpcmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/firi/rpcendpoint/internal/rpc"
)

const (
	metricsNamespace = "rpcendpoint"
	metricsSubsystem = "dispatcher"
)

// Recorder implements rpc.Metrics with Prometheus counters and gauges.
// A nil *Recorder is not valid; leave rpc.Config.Metrics unset to get
// the core package's own no-op.
type Recorder struct {
	DispatchedTotal     *prometheus.CounterVec
	OutstandingRequests prometheus.Gauge
	ReceivedRequests    prometheus.Gauge
}

// NewRecorder builds and registers a Recorder against reg. Pass
// prometheus.DefaultRegisterer for the process-wide default registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		DispatchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "dispatched_total",
				Help:      "Total messages dispatched by classified kind",
			},
			[]string{"kind"},
		),
		OutstandingRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "outstanding_requests",
				Help:      "Current size of the OutstandingRequests table",
			},
		),
		ReceivedRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "received_requests",
				Help:      "Current size of the ReceivedRequests table",
			},
		),
	}
}

// Dispatched implements rpc.Metrics.
func (r *Recorder) Dispatched(kind rpc.Kind) {
	r.DispatchedTotal.WithLabelValues(kind.String()).Inc()
}

// OutstandingGauge implements rpc.Metrics.
func (r *Recorder) OutstandingGauge(n int) {
	r.OutstandingRequests.Set(float64(n))
}

// ReceivedGauge implements rpc.Metrics.
func (r *Recorder) ReceivedGauge(n int) {
	r.ReceivedRequests.Set(float64(n))
}

var _ rpc.Metrics = (*Recorder)(nil)
