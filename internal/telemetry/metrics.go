package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports processor state to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	reg       prometheus.Registerer
	resets    prometheus.Counter
	malformed prometheus.Counter
}

// NewMetrics registers processor counters on reg. Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		reg: reg,
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groundlink",
			Subsystem: "processor",
			Name:      "resets_total",
			Help:      "Heartbeat discontinuities that restarted the session",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groundlink",
			Subsystem: "processor",
			Name:      "malformed_records_total",
			Help:      "Records skipped because they could not be decoded",
		}),
	}
	reg.MustRegister(m.resets, m.malformed)
	return m
}

// bind exports the processor's derived values. They are computed from the
// published snapshot at scrape time, so the writer pays nothing for them.
func (m *Metrics) bind(p *Processor) {
	if m == nil {
		return
	}
	gauge := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "groundlink",
			Subsystem: "processor",
			Name:      name,
			Help:      help,
		}, fn)
	}
	m.reg.MustRegister(
		gauge("frequency_hz", "Windowed heartbeat rate", p.Frequency),
		gauge("accuracy_percent", "Session heartbeat progress against the target rate", p.Accuracy),
		gauge("jitter_percent", "Share of session heartbeats that were late", p.Jitter),
		gauge("heartbeat", "Last committed heartbeat counter", func() float64 { return float64(p.Heartbeat()) }),
		gauge("late_count", "Last committed late counter", func() float64 { return float64(p.LateCount()) }),
		gauge("phase", "0 waiting, 1 settling, 2 steady", func() float64 { return float64(p.Phase()) }),
	)
}

func (m *Metrics) recordReset() {
	if m != nil {
		m.resets.Inc()
	}
}

func (m *Metrics) recordMalformed() {
	if m != nil {
		m.malformed.Inc()
	}
}
