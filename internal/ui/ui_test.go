package ui

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundlink.klederson.com/internal/stick"
	"groundlink.klederson.com/internal/telemetry"
)

func TestRenderBar(t *testing.T) {
	tests := []struct {
		pct    float64
		filled int
	}{
		{0, 0},
		{50, 5},
		{100, 10},
		{150, 10},
		{-5, 0},
	}
	for _, tt := range tests {
		bar := renderBar(tt.pct, 10, ColorGreen)
		assert.Equal(t, tt.filled, strings.Count(bar, "|"), "pct %v", tt.pct)
		assert.Equal(t, 10-tt.filled, strings.Count(bar, "-"), "pct %v", tt.pct)
	}
}

func TestRenderSparkline(t *testing.T) {
	assert.Equal(t, "", renderSparkline(nil, 10))
	assert.Equal(t, "_.-~^", renderSparkline([]float64{0, 1, 2, 3, 4}, 10))
	assert.Equal(t, "___", renderSparkline([]float64{2000, 2000, 2000}, 10), "flat history stays at the floor")
	assert.Equal(t, "-~^", renderSparkline([]float64{0, 1, 2, 3, 4}, 3), "keeps the newest values")
}

func TestLevelColor(t *testing.T) {
	assert.Equal(t, ColorMatrixGreen, levelColor(100))
	assert.Equal(t, ColorWarning, levelColor(90))
	assert.Equal(t, ColorError, levelColor(10))
}

func TestRenderRatePanel(t *testing.T) {
	v := RateView{
		FrequencyHz:     1998.5,
		TargetHz:        2000,
		Accuracy:        99.9,
		Jitter:          0.5,
		Heartbeat:       123456,
		Late:            7,
		Phase:           telemetry.PhaseSettling,
		SettleRemaining: 42,
	}
	out := RenderRatePanel(v, 60, 24, []float64{1990, 2000, 2010})

	assert.Contains(t, out, "1998.5 Hz / 2000 Hz")
	assert.Contains(t, out, "123456")
	assert.Contains(t, out, "settling (42)")
	assert.Contains(t, out, "99.9%")
	assert.Contains(t, out, "Frequency History")
	assert.Len(t, strings.Split(out, "\n"), 24)
}

func TestRenderRatePanelClampsHeight(t *testing.T) {
	out := RenderRatePanel(RateView{}, 40, 6, []float64{1, 2, 3})
	assert.Len(t, strings.Split(out, "\n"), 6)
}

func TestRenderSlotsPanel(t *testing.T) {
	slots := []telemetry.Slot{
		{
			ID:        0,
			Name:      "Test Pad",
			Connected: true,
			Axes:      []int{128, -128, 3, 64, 127, -20},
			Buttons:   []int{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0},
		},
		{ID: 1},
	}
	out := RenderSlotsPanel(slots, stick.DefaultCurve(), 50, 20)

	assert.Contains(t, out, "SLOTS [1/2]")
	assert.Contains(t, out, "Test Pad")
	assert.Contains(t, out, "LS +1.00 -1.00")
	assert.Contains(t, out, "RS +0.00 +0.35", "deadband zeroes small samples")
	assert.Contains(t, out, "RT 0.00", "negative trigger travel clamps to zero")
	assert.Contains(t, out, "-- empty --")
	assert.Contains(t, out, "A")
	assert.Len(t, strings.Split(out, "\n"), 20)
}

func TestRenderSlotMultibyteName(t *testing.T) {
	s := telemetry.Slot{ID: 2, Name: "Ωmega Контроллер", Connected: true}
	lines := renderSlot(s, stick.DefaultCurve(), 10)

	require.NotEmpty(t, lines)
	assert.True(t, utf8.ValidString(lines[0]))
	assert.Contains(t, lines[0], "Ωmeg")
	assert.NotContains(t, lines[0], "Ωmega")
}

func TestTruncRaw(t *testing.T) {
	assert.Equal(t, "héllo w", truncRaw("héllo wörld", 7))
	assert.Equal(t, "ab  ", truncRaw("ab", 4))
	assert.Equal(t, "abcd", truncRaw("abcd", 4))
}

func TestRenderSlotsPanelEmpty(t *testing.T) {
	out := RenderSlotsPanel(nil, stick.DefaultCurve(), 40, 10)
	assert.Contains(t, out, "Waiting for engine")
}

func TestRenderButtons(t *testing.T) {
	s := telemetry.Slot{Connected: true, Buttons: []int{0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}}
	out := renderButtons(s)
	assert.Contains(t, out, "1")
	assert.Contains(t, out, "E")
	assert.Equal(t, 13, strings.Count(out, "."))
}

func TestBars(t *testing.T) {
	menu := RenderMenuBar(80, MenuState{Connected: false, Demo: true})
	assert.Contains(t, menu, "NO ENGINE")
	assert.Contains(t, menu, "estart engine")
	assert.Equal(t, 80, lipgloss.Width(menu))

	menu = RenderMenuBar(80, MenuState{Connected: true, Paused: true})
	assert.Contains(t, menu, "LINKED")
	assert.Contains(t, menu, "PAUSED")
	assert.NotContains(t, menu, "estart")

	status := RenderStatusBar(100, StatusInfo{
		SocketPath: "/tmp/xace.sock",
		Connected:  true,
		Reconnects: 3,
		SessionID:  "0123456789abcdef",
	})
	assert.Contains(t, status, "/tmp/xace.sock")
	assert.Contains(t, status, "Reconnects: 3")
	assert.Contains(t, status, "Session: 01234567 ")
	assert.Equal(t, 100, lipgloss.Width(status))
}

func TestComposeLayout(t *testing.T) {
	out := ComposeLayout("menu", "a\nb", "c\nd", "status")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "menu"))
	assert.Equal(t, "ac", strings.TrimRight(lines[1], " "))
	assert.True(t, strings.HasPrefix(lines[3], "status"))
}
