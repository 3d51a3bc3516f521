package rpcmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/firi/rpcendpoint/internal/rpc"
	"github.com/firi/rpcendpoint/internal/rpcmetrics"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecorderImplementsMetrics(t *testing.T) {
	var _ rpc.Metrics = (*rpcmetrics.Recorder)(nil)
}

func TestDispatchedIncrementsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := rpcmetrics.NewRecorder(reg)

	r.Dispatched(rpc.KindRequest)
	r.Dispatched(rpc.KindRequest)
	r.Dispatched(rpc.KindNotification)

	requests := counterValue(t, r.DispatchedTotal.WithLabelValues(rpc.KindRequest.String()))
	notifications := counterValue(t, r.DispatchedTotal.WithLabelValues(rpc.KindNotification.String()))

	require.Equal(t, float64(2), requests)
	require.Equal(t, float64(1), notifications)
}

func TestGaugesReportLatestValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := rpcmetrics.NewRecorder(reg)

	r.OutstandingGauge(3)
	r.ReceivedGauge(1)
	r.OutstandingGauge(5)

	require.Equal(t, float64(5), gaugeValue(t, r.OutstandingRequests))
	require.Equal(t, float64(1), gaugeValue(t, r.ReceivedRequests))
}
