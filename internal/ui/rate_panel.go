package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"groundlink.klederson.com/internal/telemetry"
)

// RateView is the slice of processor state the rate panel shows.
type RateView struct {
	FrequencyHz     float64
	TargetHz        float64
	Accuracy        float64
	Jitter          float64
	Heartbeat       uint64
	Late            uint64
	Phase           telemetry.Phase
	SettleRemaining int
	Updates         uint64
}

// RenderRatePanel renders engine timing: frequency, accuracy and jitter bars,
// counters and the frequency history.
func RenderRatePanel(v RateView, width, height int, history []float64) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}

	lines := []string{
		StylePanelTitle.Render("ENGINE RATE"),
		StyleSeparator.Render(strings.Repeat("-", innerW)),
		"",
	}

	phase := v.Phase.String()
	if v.Phase == telemetry.PhaseSettling {
		phase = fmt.Sprintf("%s (%d)", phase, v.SettleRemaining)
	}

	fields := []struct{ label, value string }{
		{"Frequency", fmt.Sprintf("%.1f Hz / %.0f Hz", v.FrequencyHz, v.TargetHz)},
		{"Heartbeat", fmt.Sprintf("%d", v.Heartbeat)},
		{"Late", fmt.Sprintf("%d", v.Late)},
		{"Phase", phase},
		{"Updates", fmt.Sprintf("%d", v.Updates)},
	}
	for _, f := range fields {
		lines = append(lines, StyleLabel.Render(fmt.Sprintf("  %-11s", f.label))+StyleValue.Render(f.value))
	}

	lines = append(lines, "")

	barWidth := innerW - 24
	if barWidth < 10 {
		barWidth = 10
	}
	lines = append(lines,
		StyleLabel.Render("  Accuracy   ")+renderBar(v.Accuracy, barWidth, levelColor(v.Accuracy))+
			StyleValue.Render(fmt.Sprintf(" %5.1f%%", v.Accuracy)),
		StyleLabel.Render("  Jitter     ")+renderBar(v.Jitter, barWidth, levelColor(100-v.Jitter))+
			StyleValue.Render(fmt.Sprintf(" %5.1f%%", v.Jitter)),
	)

	lines = append(lines, "")

	if len(history) > 0 {
		sparkW := innerW - 4
		if sparkW < 10 {
			sparkW = 10
		}
		lines = append(lines, StyleLabel.Render("  Frequency History:"))
		lines = append(lines, "  "+StyleSparkline.Render(renderSparkline(history, sparkW)))
	}

	return fitPanel(StylePanelActive, lines, width, height)
}

// renderBar draws a bracketed bar filled to pct percent.
func renderBar(pct float64, width int, color lipgloss.Color) string {
	ratio := pct / 100
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(math.Round(ratio * float64(width)))

	filledPart := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("|", filled))
	emptyPart := lipgloss.NewStyle().Foreground(ColorDimGreen).Render(strings.Repeat("-", width-filled))
	return StyleHelp.Render("[") + filledPart + emptyPart + StyleHelp.Render("]")
}

func renderSparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}

	chars := []byte{'_', '.', '-', '~', '^'}

	// Take last `width` values
	if len(values) > width {
		values = values[len(values)-width:]
	}

	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	rng := maxV - minV
	if rng < 1 {
		rng = 1
	}

	var sb strings.Builder
	for _, v := range values {
		idx := int((v - minV) / rng * float64(len(chars)-1))
		idx = min(max(idx, 0), len(chars)-1)
		sb.WriteByte(chars[idx])
	}
	return sb.String()
}

// fitPanel borders the lines and clamps the result to exactly height rows.
// lipgloss Height() only sets a minimum; it won't truncate overflow.
func fitPanel(style lipgloss.Style, lines []string, width, height int) string {
	innerH := height - 2
	if innerH < 1 {
		innerH = 1
	}
	if len(lines) > innerH {
		lines = lines[:innerH]
	}

	rendered := style.Width(width - 2).Height(innerH).Render(strings.Join(lines, "\n"))

	out := strings.Split(rendered, "\n")
	if len(out) > height {
		out = out[:height]
	}
	for len(out) < height {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}
