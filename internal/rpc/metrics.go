package rpc

// Metrics is an optional observability sink the Dispatcher reports
// through. Leaving Config.Metrics nil is always safe: NewDispatcher
// substitutes a no-op implementation, so embedding code that doesn't care
// about metrics needs no sink of its own.
//
// Concrete implementations (e.g. Prometheus counters and gauges) live
// outside this package; rpc only depends on this narrow interface so the
// dispatcher kernel itself never imports a metrics client library.
type Metrics interface {
	// Dispatched is called once per payload that parsed as JSON and
	// carried the jsonrpc version marker, tagged with the Kind it was
	// classified as (KindMalformed included).
	Dispatched(kind Kind)

	// OutstandingGauge reports the current size of OutstandingRequests.
	OutstandingGauge(n int)

	// ReceivedGauge reports the current size of ReceivedRequests.
	ReceivedGauge(n int)
}

type noopMetrics struct{}

func (noopMetrics) Dispatched(Kind)      {}
func (noopMetrics) OutstandingGauge(int) {}
func (noopMetrics) ReceivedGauge(int)    {}
