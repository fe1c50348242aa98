package link

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the link worker. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	records        prometheus.Counter
	superseded     prometheus.Counter
	bytes          prometheus.Counter
	connects       prometheus.Counter
	connectFailed  prometheus.Counter
	disconnects    prometheus.Counter
	connectedGauge prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groundlink",
			Subsystem: "link",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		records:       counter("records_total", "Records handed to the processor"),
		superseded:    counter("records_superseded_total", "Complete records dropped because a newer one arrived in the same read"),
		bytes:         counter("bytes_total", "Bytes read from the engine socket"),
		connects:      counter("connects_total", "Successful connections to the engine socket"),
		connectFailed: counter("connect_failures_total", "Failed connection attempts"),
		disconnects:   counter("disconnects_total", "Connections lost after being established"),
		connectedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "groundlink",
			Subsystem: "link",
			Name:      "connected",
			Help:      "1 while connected to the engine socket",
		}),
	}
	reg.MustRegister(m.records, m.superseded, m.bytes, m.connects, m.connectFailed, m.disconnects, m.connectedGauge)
	return m
}

func (m *Metrics) read(n, skipped int, delivered bool) {
	if m == nil {
		return
	}
	m.bytes.Add(float64(n))
	m.superseded.Add(float64(skipped))
	if delivered {
		m.records.Inc()
	}
}

func (m *Metrics) connected() {
	if m != nil {
		m.connects.Inc()
		m.connectedGauge.Set(1)
	}
}

func (m *Metrics) connectFailure() {
	if m != nil {
		m.connectFailed.Inc()
	}
}

func (m *Metrics) disconnected() {
	if m != nil {
		m.disconnects.Inc()
		m.connectedGauge.Set(0)
	}
}
