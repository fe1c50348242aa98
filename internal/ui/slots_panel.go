package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"groundlink.klederson.com/internal/config"
	"groundlink.klederson.com/internal/stick"
	"groundlink.klederson.com/internal/telemetry"
)

const linesPerSlot = 5 // 4 content + 1 blank

// RenderSlotsPanel renders one entry per controller slot with shaped stick
// output, trigger travel and the pressed buttons.
func RenderSlotsPanel(slots []telemetry.Slot, curve stick.Curve, width, height int) string {
	innerW := width - 4
	if innerW < 10 {
		innerW = 10
	}

	connected := 0
	for _, s := range slots {
		if s.Connected {
			connected++
		}
	}

	lines := []string{
		StylePanelTitle.Render(fmt.Sprintf("SLOTS [%d/%d]", connected, len(slots))),
		StyleSeparator.Render(strings.Repeat("-", innerW)),
	}

	if len(slots) == 0 {
		lines = append(lines, "", StyleHelp.Render(" No telemetry..."), StyleHelp.Render(" Waiting for engine"))
	}
	for _, s := range slots {
		lines = append(lines, renderSlot(s, curve, innerW)...)
	}

	return fitPanel(StylePanelBorder, lines, width, height)
}

func renderSlot(s telemetry.Slot, curve stick.Curve, maxW int) []string {
	if !s.Connected {
		head := truncRaw(fmt.Sprintf(" #%d  -- empty --", s.ID), maxW)
		blank := make([]string, linesPerSlot-1)
		return append([]string{StyleSlotEmpty.Render(head)}, blank...)
	}

	name := s.Name
	if name == "" {
		name = "Unknown"
	}
	nameMax := maxW - 6
	if nameMax < 4 {
		nameMax = 4
	}
	name = ansi.Truncate(name, nameMax, "")

	shaped := func(i int) float64 { return curve.Shape(float64(s.Axis(i))) }

	sticks := truncRaw(fmt.Sprintf("   LS %+.2f %+.2f   RS %+.2f %+.2f",
		shaped(0), shaped(1), shaped(2), shaped(3)), maxW)
	triggers := truncRaw(fmt.Sprintf("   LT %4.2f        RT %4.2f",
		trigger(s.Axis(4), curve), trigger(s.Axis(5), curve)), maxW)

	return []string{
		fmt.Sprintf(" #%d  %s", s.ID, StyleSlotName.Render(name)),
		StyleValue.Render(sticks),
		StyleLabel.Render(triggers),
		"   " + renderButtons(s),
		"",
	}
}

// renderButtons shows buttons as hex digits, lit when pressed.
func renderButtons(s telemetry.Slot) string {
	var sb strings.Builder
	for i := 0; i < config.ButtonsPerSlot; i++ {
		label := fmt.Sprintf("%X", i)
		if s.Pressed(i) {
			sb.WriteString(StyleButtonOn.Render(label))
		} else {
			sb.WriteString(StyleButtonOff.Render("."))
		}
	}
	return sb.String()
}

func trigger(raw int, curve stick.Curve) float64 {
	v := curve.Normalize(float64(raw))
	if v < 0 {
		return 0
	}
	return v
}

// truncRaw pads or truncates a raw string to exactly w cells.
func truncRaw(s string, w int) string {
	s = ansi.Truncate(s, w, "")
	if n := ansi.StringWidth(s); n < w {
		s += strings.Repeat(" ", w-n)
	}
	return s
}
