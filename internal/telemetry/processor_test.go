package telemetry

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 500 * time.Microsecond // one engine cycle at 2000 Hz

func record(hb, late uint64) string {
	return fmt.Sprintf(`{"hb":%d,"late":%d}`, hb, late)
}

func newTestProcessor() (*Processor, *ManualClock) {
	clk := NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewProcessor(DefaultOptions(), clk, nil, nil), clk
}

// settle drives p through a reset at start and the full settling period,
// one tick per record. Returns the heartbeat of the anchoring record.
func settle(t *testing.T, p *Processor, clk *ManualClock, start, late uint64) uint64 {
	t.Helper()
	require.True(t, p.Update(record(start, late)))
	require.Equal(t, PhaseSettling, p.Phase())

	hb := start
	for i := 0; i < p.opts.SettleThreshold; i++ {
		clk.Advance(tick)
		hb++
		require.True(t, p.Update(record(hb, late)))
	}
	require.Equal(t, PhaseSteady, p.Phase())
	return hb
}

func TestFirstRecordAlwaysResets(t *testing.T) {
	for _, hb := range []uint64{0, 1, 42, 1 << 40} {
		p, _ := newTestProcessor()
		p.Update(record(hb, 7))

		snap := p.Snapshot()
		assert.Equal(t, PhaseSettling, snap.Phase, "hb=%d", hb)
		assert.Equal(t, 100, snap.SettleRemaining)
		assert.Equal(t, 0.0, snap.FrequencyHz)
		assert.Equal(t, uint64(1), snap.Resets)
		assert.True(t, snap.SessionStart.IsZero())
	}
}

func TestBackwardsHeartbeatResets(t *testing.T) {
	p, clk := newTestProcessor()
	hb := settle(t, p, clk, 1000, 0)

	clk.Advance(tick)
	p.Update(record(hb-1, 0))

	snap := p.Snapshot()
	assert.Equal(t, PhaseSettling, snap.Phase)
	assert.Equal(t, 100, snap.SettleRemaining)
	assert.True(t, snap.SessionStart.IsZero())
	assert.Empty(t, snap.SessionID)
	assert.Equal(t, uint64(2), snap.Resets)
}

func TestForwardJumpResets(t *testing.T) {
	p, clk := newTestProcessor()
	hb := settle(t, p, clk, 1000, 0)

	clk.Advance(tick)
	p.Update(record(hb+5000, 0))
	assert.Equal(t, PhaseSteady, p.Phase(), "a jump of exactly the threshold is accepted")

	clk.Advance(tick)
	p.Update(record(hb+5000+5001, 0))
	assert.Equal(t, PhaseSettling, p.Phase())
	assert.Equal(t, 0.0, p.Frequency())
}

func TestSettlingLatchesAnchorsOnLastCall(t *testing.T) {
	p, clk := newTestProcessor()

	p.Update(record(1000, 3))
	for i := 1; i < 100; i++ {
		clk.Advance(tick)
		p.Update(record(1000+uint64(i), 3+uint64(i)))

		snap := p.Snapshot()
		require.Equal(t, PhaseSettling, snap.Phase)
		require.Equal(t, 100-i, snap.SettleRemaining)
		require.True(t, snap.SessionStart.IsZero())
		require.Equal(t, uint64(0), snap.Heartbeat, "settling never commits")
	}

	clk.Advance(tick)
	anchorTime := clk.Now()
	p.Update(record(1100, 103))

	snap := p.Snapshot()
	assert.Equal(t, PhaseSteady, snap.Phase)
	assert.Equal(t, 0, snap.SettleRemaining)
	assert.Equal(t, anchorTime, snap.SessionStart)
	assert.Equal(t, uint64(1100), snap.SessionStartHeartbeat)
	assert.Equal(t, uint64(103), snap.SessionStartLate)
	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, uint64(0), snap.Heartbeat)
}

func TestSteadyMetrics(t *testing.T) {
	p, clk := newTestProcessor()
	hb := settle(t, p, clk, 1000, 10)

	// 200 cycles at exactly 2000 Hz, every tenth one late.
	late := uint64(10)
	for i := 1; i <= 200; i++ {
		clk.Advance(tick)
		hb++
		if i%10 == 0 {
			late++
		}
		p.Update(record(hb, late))
	}

	assert.InDelta(t, 2000.0, p.Frequency(), 1e-9)
	assert.InDelta(t, 100.0, p.Accuracy(), 1e-9)
	assert.InDelta(t, 10.0, p.Jitter(), 1e-9)
	assert.Equal(t, hb, p.Heartbeat())
	assert.Equal(t, late, p.LateCount())
}

func TestFrequencyHeldBetweenWindows(t *testing.T) {
	p, clk := newTestProcessor()
	hb := settle(t, p, clk, 1000, 0)

	// First window: 50 heartbeats over 100ms.
	clk.Advance(100 * time.Millisecond)
	hb += 50
	p.Update(record(hb, 0))
	assert.InDelta(t, 500.0, p.Frequency(), 1e-9)

	// Inside the next window the rate is not recomputed.
	for i := 0; i < 5; i++ {
		clk.Advance(10 * time.Millisecond)
		hb += 100
		p.Update(record(hb, 0))
		assert.InDelta(t, 500.0, p.Frequency(), 1e-9)
	}

	// Crossing the boundary measures from the previous window start.
	clk.Advance(50 * time.Millisecond)
	hb += 100
	p.Update(record(hb, 0))
	assert.InDelta(t, 600.0/0.1, p.Frequency(), 1e-9)
}

func TestAccuracySentinels(t *testing.T) {
	p, clk := newTestProcessor()
	assert.Equal(t, 0.0, p.Accuracy(), "no session")

	hb := settle(t, p, clk, 1000, 0)
	assert.Equal(t, 100.0, p.Accuracy(), "session younger than the guard")

	clk.Advance(49 * time.Millisecond)
	assert.Equal(t, 100.0, p.Accuracy())

	clk.Advance(51 * time.Millisecond)
	p.Update(record(hb+100, 0))
	assert.InDelta(t, 50.0, p.Accuracy(), 1e-9, "100 beats in 100ms against 2000 Hz")
}

func TestAccuracyAndJitterClamp(t *testing.T) {
	p, clk := newTestProcessor()
	hb := settle(t, p, clk, 1000, 0)

	clk.Advance(100 * time.Millisecond)
	p.Update(record(hb+4000, 9000))

	assert.Equal(t, 100.0, p.Accuracy())
	assert.Equal(t, 100.0, p.Jitter())
}

func TestJitterZeroWithoutProgress(t *testing.T) {
	p, clk := newTestProcessor()
	assert.Equal(t, 0.0, p.Jitter())

	settle(t, p, clk, 1000, 5)
	assert.Equal(t, 0.0, p.Jitter())
}

func TestMalformedRecordsAreIgnored(t *testing.T) {
	p, clk := newTestProcessor()
	hb := settle(t, p, clk, 1000, 0)
	clk.Advance(100 * time.Millisecond)
	p.Update(record(hb+200, 4))
	before := p.Snapshot()

	for _, raw := range []string{"", "{", "not json", "[1,2]", "null", `{"hb":-4}`, `{"hb":"12"}`, `{"late":1.5}`} {
		assert.False(t, p.Update(raw), "raw=%q", raw)
		assert.Equal(t, before, p.Snapshot(), "raw=%q", raw)
	}
	assert.Equal(t, uint64(7), p.st.malformed)
}

func TestMissingCountersDefaultToZero(t *testing.T) {
	p, _ := newTestProcessor()

	assert.True(t, p.Update(`{"slots":[]}`))
	snap := p.Snapshot()
	assert.Equal(t, PhaseSettling, snap.Phase)
	assert.Equal(t, uint64(0), p.st.lastHeartbeat)

	// lastHeartbeat stays zero, so the next record resets again.
	p.Update(record(5, 0))
	assert.Equal(t, uint64(2), p.Snapshot().Resets)
}

func TestSlotsPassThrough(t *testing.T) {
	p, clk := newTestProcessor()
	assert.Equal(t, []Slot{}, p.Slots())

	hb := settle(t, p, clk, 1000, 0)
	clk.Advance(tick)
	p.Update(fmt.Sprintf(`{"hb":%d,"late":0,"mode":"acro","slots":[`+
		`{"id":0,"name":"Pad","conn":true,"axes":[1,-2,3,0,0,0],"btns":[0,1]},`+
		`{"id":1,"conn":false}]}`, hb+1))

	slots := p.Slots()
	require.Len(t, slots, 2)
	assert.Equal(t, "Pad", slots[0].Name)
	assert.True(t, slots[0].Connected)
	assert.Equal(t, -2, slots[0].Axis(1))
	assert.Equal(t, 0, slots[0].Axis(9))
	assert.True(t, slots[0].Pressed(1))
	assert.False(t, slots[0].Pressed(0))
	assert.False(t, slots[1].Connected)

	mode, ok := p.Field("mode")
	require.True(t, ok)
	assert.JSONEq(t, `"acro"`, string(mode))

	_, ok = p.Field("missing")
	assert.False(t, ok)
}

func TestAccessorsAreIdempotent(t *testing.T) {
	p, clk := newTestProcessor()
	hb := settle(t, p, clk, 1000, 0)
	for i := 0; i < 300; i++ {
		clk.Advance(tick)
		hb++
		p.Update(record(hb, uint64(i/7)))
	}

	first := []float64{p.Frequency(), p.Accuracy(), p.Jitter(), float64(p.Heartbeat()), float64(p.LateCount())}
	for i := 0; i < 5; i++ {
		again := []float64{p.Frequency(), p.Accuracy(), p.Jitter(), float64(p.Heartbeat()), float64(p.LateCount())}
		assert.Equal(t, first, again)
	}
}

func TestMetricsStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p, clk := newTestProcessor()

	var hb, late uint64
	for i := 0; i < 20000; i++ {
		clk.Advance(time.Duration(rng.Intn(2000)) * time.Microsecond)
		switch r := rng.Intn(100); {
		case r < 2:
			hb = uint64(rng.Intn(100))
		case r < 3:
			hb += 6000
		default:
			hb += uint64(rng.Intn(4))
		}
		late += uint64(rng.Intn(3))
		p.Update(record(hb, late))

		acc, jit := p.Accuracy(), p.Jitter()
		require.GreaterOrEqual(t, acc, 0.0)
		require.LessOrEqual(t, acc, 100.0)
		require.GreaterOrEqual(t, jit, 0.0)
		require.LessOrEqual(t, jit, 100.0)
	}
}

func TestResetLive(t *testing.T) {
	p, clk := newTestProcessor()
	hb := settle(t, p, clk, 1000, 0)
	clk.Advance(100 * time.Millisecond)
	p.Update(`{"hb":` + fmt.Sprint(hb+200) + `,"late":3,"slots":[{"id":0,"conn":true}]}`)
	require.NotZero(t, p.Frequency())

	p.ResetLive()

	snap := p.Snapshot()
	assert.Equal(t, PhaseWaiting, snap.Phase)
	assert.Equal(t, 0.0, snap.FrequencyHz)
	assert.Equal(t, uint64(0), snap.Heartbeat)
	assert.Equal(t, uint64(0), snap.LateCount)
	assert.Equal(t, []Slot{}, snap.Slots)
	assert.Equal(t, 0.0, p.Accuracy())
	assert.Equal(t, 0.0, p.Jitter())
	assert.Equal(t, uint64(1), snap.Resets, "history counters survive")

	// The next record after a reconnect starts a fresh session.
	p.Update(record(hb+300, 3))
	assert.Equal(t, PhaseSettling, p.Phase())
}

func TestSubscribeDeliversLatest(t *testing.T) {
	p, clk := newTestProcessor()
	ch, cancel := p.Subscribe()
	defer cancel()

	hb := settle(t, p, clk, 1000, 0)

	select {
	case snap := <-ch:
		assert.Equal(t, PhaseSteady, snap.Phase)
		assert.Equal(t, hb, snap.SessionStartHeartbeat)
	default:
		t.Fatal("expected a snapshot")
	}

	select {
	case <-ch:
		t.Fatal("channel should be drained")
	default:
	}

	cancel()
	p.Update(record(hb+1, 0))
	select {
	case <-ch:
		t.Fatal("cancelled subscriber received a snapshot")
	default:
	}
}

func TestMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	clk := NewManualClock(time.Unix(1000, 0))
	p := NewProcessor(DefaultOptions(), clk, nil, NewMetrics(reg))

	p.Update("garbage")
	p.Update(record(10, 0))
	p.Update(record(5, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.resets))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.malformed))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}
