package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundlink.klederson.com/internal/link"
	"groundlink.klederson.com/internal/stick"
	"groundlink.klederson.com/internal/telemetry"
)

type fakeEngine struct{ restarts int }

func (f *fakeEngine) RestartCounter() { f.restarts++ }

// feed drives a processor into the steady phase at 2000 Hz.
func feed(p *telemetry.Processor, clock *telemetry.ManualClock, from, n uint64) uint64 {
	hb := from
	for i := uint64(0); i < n; i++ {
		hb++
		clock.Advance(500 * time.Microsecond)
		p.Update(fmt.Sprintf(`{"hb":%d,"late":0,"slots":[{"id":0,"name":"Pad","conn":true,"axes":[128,0,0,0,0,0],"btns":[1]}]}`, hb))
	}
	return hb
}

func newTestModel(engine Restarter) (AppModel, *telemetry.Processor, *telemetry.ManualClock) {
	clock := telemetry.NewManualClock(time.Unix(1000, 0))
	proc := telemetry.NewProcessor(telemetry.DefaultOptions(), clock, nil, nil)
	m := New(Options{
		Processor:  proc,
		Curve:      stick.DefaultCurve(),
		SocketPath: "/tmp/xace.sock",
		TargetHz:   2000,
		FPS:        10,
		HistoryLen: 8,
		Engine:     engine,
	})
	return m, proc, clock
}

func update(t *testing.T, m AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	am, ok := next.(AppModel)
	require.True(t, ok)
	return am, cmd
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestHistoryRing(t *testing.T) {
	h := NewHistory(3)
	assert.Nil(t, h.Values())
	assert.Equal(t, 0.0, h.Last())

	h.Push(1)
	h.Push(2)
	assert.Equal(t, []float64{1, 2}, h.Values())

	h.Push(3)
	h.Push(4)
	assert.Equal(t, []float64{2, 3, 4}, h.Values())
	assert.Equal(t, 4.0, h.Last())
	assert.Equal(t, 3, h.Len())

	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.Nil(t, h.Values())
}

func TestModelInitializing(t *testing.T) {
	m, _, _ := newTestModel(nil)
	assert.Contains(t, m.View(), "Initializing")
	assert.NotNil(t, m.Init())
}

func TestModelRendersSnapshot(t *testing.T) {
	m, proc, clock := newTestModel(nil)
	feed(proc, clock, 0, 400)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	now := time.Now()
	m, _ = update(t, m, LinkStatusMsg{Status: link.Status{SocketPath: "/tmp/xace.sock", Connected: true, Connects: 2, Since: now}})
	m, _ = update(t, m, LinkStatusMsg{Status: link.Status{SocketPath: "/tmp/xace.sock", Connected: false, Since: now.Add(-time.Second)}})
	m, cmd := update(t, m, TickMsg(time.Now()))
	assert.NotNil(t, cmd, "tick reschedules itself")

	view := m.View()
	assert.Contains(t, view, "LINKED", "stale status is ignored")
	assert.Contains(t, view, "steady")
	assert.Contains(t, view, "Pad")
	assert.Contains(t, view, "Reconnects: 1")
	assert.Contains(t, view, "/tmp/xace.sock")
	assert.Equal(t, 1, m.shared.history.Len())
	assert.InDelta(t, 2000.0, m.shared.history.Last(), 0.01)
}

func TestModelPause(t *testing.T) {
	m, proc, clock := newTestModel(nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})

	m, _ = update(t, m, key("p"))
	assert.True(t, m.paused)

	feed(proc, clock, 0, 10)
	m, _ = update(t, m, TickMsg(time.Now()))
	assert.Equal(t, uint64(0), m.snap.Updates, "paused display keeps the old frame")
	assert.Contains(t, m.View(), "PAUSED")

	m, _ = update(t, m, key("p"))
	m, _ = update(t, m, TickMsg(time.Now()))
	assert.Equal(t, uint64(10), m.snap.Updates)
}

func TestModelRestartEngine(t *testing.T) {
	engine := &fakeEngine{}
	m, _, _ := newTestModel(engine)
	m.shared.history.Push(2000)

	m, _ = update(t, m, key("r"))
	assert.Equal(t, 1, engine.restarts)
	assert.Equal(t, 0, m.shared.history.Len())

	// Without an engine the key does nothing.
	plain, _, _ := newTestModel(nil)
	_, cmd := update(t, plain, key("r"))
	assert.Nil(t, cmd)
}

func TestModelQuit(t *testing.T) {
	m, _, _ := newTestModel(nil)
	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestReporter(t *testing.T) {
	clock := telemetry.NewManualClock(time.Unix(1000, 0))
	proc := telemetry.NewProcessor(telemetry.DefaultOptions(), clock, nil, nil)
	feed(proc, clock, 0, 400)

	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	r := NewReporter(proc, func() link.Status { return link.Status{Connected: true} }, logger, 5*time.Millisecond)

	r.Report()
	line := buf.String()
	assert.Contains(t, line, "msg=telemetry")
	assert.Contains(t, line, "phase=steady")
	assert.Contains(t, line, "frequency_hz=2000")
	assert.Contains(t, line, "slots=1")
	assert.Contains(t, line, "connected=true")
	assert.Contains(t, line, "component=reporter")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	require.Eventually(t, func() bool {
		return strings.Count(buf.String(), "msg=telemetry") >= 3
	}, 2*time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
