package telemetry

import (
	"encoding/json"
	"time"
)

// Phase is where the processor sits in its reset/settle cycle.
type Phase int

const (
	// PhaseWaiting: no usable heartbeat seen yet, or the link was lost.
	PhaseWaiting Phase = iota
	// PhaseSettling: a reset was detected and updates are being skipped.
	PhaseSettling
	// PhaseSteady: a session is anchored and metrics are live.
	PhaseSteady
)

func (p Phase) String() string {
	switch p {
	case PhaseSettling:
		return "settling"
	case PhaseSteady:
		return "steady"
	default:
		return "waiting"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Snapshot is an immutable copy of processor state. The processor publishes
// a fresh one after every update; readers never see a half-written state.
type Snapshot struct {
	Heartbeat   uint64  `json:"heartbeat"`
	LateCount   uint64  `json:"late_count"`
	FrequencyHz float64 `json:"frequency_hz"`

	Phase           Phase  `json:"phase"`
	SettleRemaining int    `json:"settle_remaining"`
	SessionID       string `json:"session_id,omitempty"`

	SessionStart          time.Time `json:"session_start"`
	SessionStartHeartbeat uint64    `json:"session_start_heartbeat"`
	SessionStartLate      uint64    `json:"session_start_late"`

	Slots  []Slot                     `json:"slots"`
	Fields map[string]json.RawMessage `json:"-"`

	Updates   uint64    `json:"updates"`
	Resets    uint64    `json:"resets"`
	Malformed uint64    `json:"malformed"`
	UpdatedAt time.Time `json:"updated_at"`

	targetHz      float64
	accuracyGuard time.Duration
}

// Frequency returns the last windowed heartbeat rate.
func (s Snapshot) Frequency() float64 {
	return s.FrequencyHz
}

// Accuracy compares heartbeat progress since the session anchor with the
// progress expected at the target rate, as a percentage in [0, 100].
func (s Snapshot) Accuracy(now time.Time) float64 {
	if s.SessionStart.IsZero() {
		return 0
	}
	elapsed := now.Sub(s.SessionStart)
	if elapsed < s.accuracyGuard {
		return 100
	}
	expected := elapsed.Seconds() * s.targetHz
	if expected <= 0 {
		return 100
	}
	actual := float64(s.Heartbeat) - float64(s.SessionStartHeartbeat)
	return clampPercent(actual / expected * 100)
}

// Jitter is the share of session heartbeats that missed their deadline, as a
// percentage in [0, 100].
func (s Snapshot) Jitter() float64 {
	ticks := float64(s.Heartbeat) - float64(s.SessionStartHeartbeat)
	if ticks <= 0 {
		return 0
	}
	lates := float64(s.LateCount) - float64(s.SessionStartLate)
	return clampPercent(lates / ticks * 100)
}

// Field returns a top-level record field verbatim.
func (s Snapshot) Field(name string) (json.RawMessage, bool) {
	v, ok := s.Fields[name]
	return v, ok
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
