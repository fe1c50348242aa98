package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"groundlink.klederson.com/internal/config"
	"groundlink.klederson.com/internal/link"
	"groundlink.klederson.com/internal/stick"
	"groundlink.klederson.com/internal/telemetry"
	"groundlink.klederson.com/internal/ui"
)

// historyRate is how many frequency samples per second feed the sparkline.
const historyRate = 10

// Restarter restarts the emulated engine's heartbeat counter.
type Restarter interface {
	RestartCounter()
}

// shared holds state shared between the Bubble Tea model copies and main.go.
// Because Bubble Tea uses value receivers, pointer fields ensure all copies
// see the same underlying data.
type shared struct {
	proc    *telemetry.Processor
	history *History
	engine  Restarter
}

// Options configures the dashboard.
type Options struct {
	Processor  *telemetry.Processor
	Curve      stick.Curve
	SocketPath string
	TargetHz   float64
	FPS        int
	HistoryLen int
	// Engine is set in demo mode so the dashboard can restart its counter.
	Engine Restarter
}

// AppModel is the root Bubble Tea model: a read-only view of the processor.
type AppModel struct {
	width  int
	height int

	paused bool
	frames int

	opts   Options
	shared *shared

	// Cached per frame
	snap   telemetry.Snapshot
	now    time.Time
	status link.Status
}

// New creates a new AppModel.
func New(opts Options) AppModel {
	if opts.FPS <= 0 {
		opts.FPS = config.TargetFPS
	}
	if opts.HistoryLen <= 0 {
		opts.HistoryLen = config.HistoryLen
	}
	return AppModel{
		opts:   opts,
		status: link.Status{SocketPath: opts.SocketPath},
		shared: &shared{
			proc:    opts.Processor,
			history: NewHistory(opts.HistoryLen),
			engine:  opts.Engine,
		},
	}
}

func (m AppModel) Init() tea.Cmd {
	return m.tickCmd()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		if !m.paused {
			m.refresh()
		}
		return m, m.tickCmd()

	case LinkStatusMsg:
		// Statuses arrive on separate goroutines; keep the newest.
		if !msg.Status.Since.Before(m.status.Since) {
			m.status = msg.Status
		}
		return m, nil
	}

	return m, nil
}

func (m *AppModel) refresh() {
	m.snap = m.shared.proc.Snapshot()
	m.now = m.shared.proc.Now()
	m.frames++
	if every := m.opts.FPS / historyRate; every <= 1 || m.frames%every == 0 {
		m.shared.history.Push(m.snap.FrequencyHz)
	}
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "p", "P":
		m.paused = !m.paused

	case "r", "R":
		if m.shared.engine != nil {
			m.shared.engine.RestartCounter()
			m.shared.history.Reset()
		}
	}

	return m, nil
}

func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing " + config.AppName + "..."
	}

	menuH := 1
	statusH := 1
	bodyH := m.height - menuH - statusH
	if bodyH < 5 {
		bodyH = 5
	}

	rateW := m.width * 9 / 20
	if rateW < 40 {
		rateW = 40
	}
	slotsW := m.width - rateW
	if slotsW < 30 {
		slotsW = 30
		rateW = m.width - slotsW
	}

	menuBar := ui.RenderMenuBar(m.width, ui.MenuState{
		Connected: m.status.Connected,
		Paused:    m.paused,
		Demo:      m.shared.engine != nil,
	})

	ratePanel := ui.RenderRatePanel(m.rateView(), rateW, bodyH, m.shared.history.Values())
	slotsPanel := ui.RenderSlotsPanel(m.snap.Slots, m.opts.Curve, slotsW, bodyH)

	reconnects := m.status.Connects - 1
	if reconnects < 0 {
		reconnects = 0
	}
	statusBar := ui.RenderStatusBar(m.width, ui.StatusInfo{
		SocketPath: m.status.SocketPath,
		Connected:  m.status.Connected,
		Reconnects: reconnects,
		SessionID:  m.snap.SessionID,
		Malformed:  m.snap.Malformed,
		LastError:  m.status.LastError,
	})

	return ui.ComposeLayout(menuBar, ratePanel, slotsPanel, statusBar)
}

func (m AppModel) rateView() ui.RateView {
	return ui.RateView{
		FrequencyHz:     m.snap.FrequencyHz,
		TargetHz:        m.opts.TargetHz,
		Accuracy:        m.snap.Accuracy(m.now),
		Jitter:          m.snap.Jitter(),
		Heartbeat:       m.snap.Heartbeat,
		Late:            m.snap.LateCount,
		Phase:           m.snap.Phase,
		SettleRemaining: m.snap.SettleRemaining,
		Updates:         m.snap.Updates,
	}
}

func (m AppModel) tickCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.opts.FPS), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
