// Package telemetry turns the engine's heartbeat stream into rate and link
// quality metrics.
//
// A Processor has exactly one writer: the link worker calls Update for every
// record it reads and ResetLive when the link drops. Everything else reads the
// published Snapshot, which is swapped atomically after each write.
package telemetry

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"groundlink.klederson.com/internal/config"
)

// Options tune reset detection and metric windows.
type Options struct {
	SettleThreshold int
	JumpThreshold   uint64
	FrequencyWindow time.Duration
	TargetHz        float64
	AccuracyGuard   time.Duration
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Processor)
}

func OptionsFromConfig(c config.ProcessorConfig) Options {
	return Options{
		SettleThreshold: c.SettleThreshold,
		JumpThreshold:   c.JumpThreshold,
		FrequencyWindow: c.FrequencyWindow,
		TargetHz:        c.TargetHz,
		AccuracyGuard:   c.AccuracyGuard,
	}
}

// state is owned by the writer goroutine and never shared.
type state struct {
	lastHeartbeat uint64
	heartbeat     uint64
	lateCount     uint64

	windowStart          time.Time
	windowStartHeartbeat uint64

	sessionStart          time.Time
	sessionStartHeartbeat uint64
	sessionStartLate      uint64
	sessionID             string

	settling  int
	frequency float64
	record    Record

	updates   uint64
	resets    uint64
	malformed uint64
}

// Processor computes heartbeat frequency, accuracy and jitter.
type Processor struct {
	opts    Options
	clock   Clock
	logger  *slog.Logger
	metrics *Metrics

	st      state
	current atomic.Pointer[Snapshot]

	subMu sync.RWMutex
	subs  map[int]chan Snapshot
	subID int
}

// NewProcessor creates a processor in the waiting phase. clock, logger and
// metrics may be nil.
func NewProcessor(opts Options, clock Clock, logger *slog.Logger, metrics *Metrics) *Processor {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		opts:    opts,
		clock:   clock,
		logger:  logger.With("component", "processor"),
		metrics: metrics,
		subs:    make(map[int]chan Snapshot),
	}
	p.publish(clock.Now())
	metrics.bind(p)
	return p
}

// Update feeds one raw record. Empty or undecodable input leaves state
// untouched. Returns true when the record was decoded.
func (p *Processor) Update(raw string) bool {
	if raw == "" {
		return false
	}
	rec, err := DecodeRecord(raw)
	if err != nil {
		p.st.malformed++
		p.metrics.recordMalformed()
		p.logger.Debug("skip malformed record", "error", err)
		return false
	}
	p.Apply(rec)
	return true
}

// Apply runs the reset, settle and window steps for a decoded record.
func (p *Processor) Apply(rec Record) {
	now := p.clock.Now()
	st := &p.st
	hb := rec.Heartbeat
	st.updates++

	if hb < st.lastHeartbeat || hb-st.lastHeartbeat > p.opts.JumpThreshold || st.lastHeartbeat == 0 {
		if st.lastHeartbeat != 0 {
			p.logger.Info("heartbeat discontinuity, resetting session",
				"last", st.lastHeartbeat, "received", hb)
		}
		st.settling = p.opts.SettleThreshold
		st.sessionStart = time.Time{}
		st.sessionStartHeartbeat = 0
		st.sessionStartLate = 0
		st.sessionID = ""
		st.windowStart = time.Time{}
		st.windowStartHeartbeat = 0
		st.frequency = 0
		st.lastHeartbeat = hb
		st.resets++
		p.metrics.recordReset()
		p.publish(now)
		return
	}

	if st.settling > 0 {
		st.settling--
		if st.settling == 0 {
			st.sessionStart = now
			st.sessionStartHeartbeat = hb
			st.sessionStartLate = rec.Late
			st.sessionID = uuid.NewString()
			st.windowStart = now
			st.windowStartHeartbeat = hb
			p.logger.Info("session settled", "session", st.sessionID, "heartbeat", hb)
		}
		st.lastHeartbeat = hb
		p.publish(now)
		return
	}

	if elapsed := now.Sub(st.windowStart); elapsed >= p.opts.FrequencyWindow {
		st.frequency = (float64(hb) - float64(st.windowStartHeartbeat)) / elapsed.Seconds()
		st.windowStart = now
		st.windowStartHeartbeat = hb
	}

	st.lastHeartbeat = hb
	st.heartbeat = hb
	st.lateCount = rec.Late
	st.record = rec
	p.publish(now)
}

// ResetLive zeroes the live counters after the link is lost so consumers show
// a dead link instead of stale numbers. The next record starts a new session.
func (p *Processor) ResetLive() {
	p.st = state{
		updates:   p.st.updates,
		resets:    p.st.resets,
		malformed: p.st.malformed,
	}
	p.publish(p.clock.Now())
}

func (p *Processor) phase() Phase {
	switch {
	case p.st.settling > 0:
		return PhaseSettling
	case !p.st.sessionStart.IsZero():
		return PhaseSteady
	default:
		return PhaseWaiting
	}
}

func (p *Processor) publish(now time.Time) {
	st := &p.st
	snap := &Snapshot{
		Heartbeat:             st.heartbeat,
		LateCount:             st.lateCount,
		FrequencyHz:           st.frequency,
		Phase:                 p.phase(),
		SettleRemaining:       st.settling,
		SessionID:             st.sessionID,
		SessionStart:          st.sessionStart,
		SessionStartHeartbeat: st.sessionStartHeartbeat,
		SessionStartLate:      st.sessionStartLate,
		Slots:                 st.record.Slots,
		Fields:                st.record.Fields,
		Updates:               st.updates,
		Resets:                st.resets,
		Malformed:             st.malformed,
		UpdatedAt:             now,
		targetHz:              p.opts.TargetHz,
		accuracyGuard:         p.opts.AccuracyGuard,
	}
	if snap.Slots == nil {
		snap.Slots = []Slot{}
	}
	p.current.Store(snap)
	p.notify(*snap)
}

// Snapshot returns the latest published state.
func (p *Processor) Snapshot() Snapshot {
	return *p.current.Load()
}

func (p *Processor) Frequency() float64 { return p.Snapshot().Frequency() }

func (p *Processor) Accuracy() float64 { return p.Snapshot().Accuracy(p.clock.Now()) }

func (p *Processor) Jitter() float64 { return p.Snapshot().Jitter() }

func (p *Processor) Heartbeat() uint64 { return p.Snapshot().Heartbeat }

func (p *Processor) LateCount() uint64 { return p.Snapshot().LateCount }

func (p *Processor) Phase() Phase { return p.Snapshot().Phase }

// Slots returns the slots of the last committed record, never nil.
func (p *Processor) Slots() []Slot { return p.Snapshot().Slots }

// Field returns a top-level field of the last committed record verbatim.
func (p *Processor) Field(name string) (json.RawMessage, bool) {
	return p.Snapshot().Field(name)
}

// Now reads the processor's clock.
func (p *Processor) Now() time.Time { return p.clock.Now() }

// Subscribe returns a channel that always holds the newest snapshot not yet
// received. Intermediate snapshots are dropped for slow readers; the writer
// never blocks. Call cancel to release the subscription.
func (p *Processor) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.subMu.Lock()
	id := p.subID
	p.subID++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (p *Processor) notify(snap Snapshot) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()

	for _, ch := range p.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Replace the stale value.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
