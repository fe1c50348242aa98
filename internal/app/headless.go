package app

import (
	"context"
	"log/slog"
	"time"

	"groundlink.klederson.com/internal/config"
	"groundlink.klederson.com/internal/link"
	"groundlink.klederson.com/internal/telemetry"
)

// Reporter logs a metrics line at a fixed interval instead of drawing a TUI.
type Reporter struct {
	proc     *telemetry.Processor
	status   func() link.Status
	logger   *slog.Logger
	interval time.Duration
}

// NewReporter builds a headless reporter. status may be nil.
func NewReporter(proc *telemetry.Processor, status func() link.Status, logger *slog.Logger, interval time.Duration) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = config.HeadlessInterval
	}
	return &Reporter{
		proc:     proc,
		status:   status,
		logger:   logger.With("component", "reporter"),
		interval: interval,
	}
}

// Run reports until ctx is done.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report logs the current snapshot once.
func (r *Reporter) Report() {
	snap := r.proc.Snapshot()
	attrs := []any{
		"phase", snap.Phase.String(),
		"frequency_hz", round1(snap.FrequencyHz),
		"accuracy_pct", round1(snap.Accuracy(r.proc.Now())),
		"jitter_pct", round1(snap.Jitter()),
		"heartbeat", snap.Heartbeat,
		"late", snap.LateCount,
		"slots", connectedSlots(snap.Slots),
	}
	if r.status != nil {
		st := r.status()
		attrs = append(attrs, "connected", st.Connected)
	}
	r.logger.Info("telemetry", attrs...)
}

func connectedSlots(slots []telemetry.Slot) int {
	n := 0
	for _, s := range slots {
		if s.Connected {
			n++
		}
	}
	return n
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
