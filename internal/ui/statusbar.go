package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo feeds the bottom status bar.
type StatusInfo struct {
	SocketPath string
	Connected  bool
	Reconnects int
	SessionID  string
	Malformed  uint64
	LastError  string
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, info StatusInfo) string {
	var link string
	if info.Connected {
		link = StyleLinkUp.Render("[UP]")
	} else {
		link = StyleLinkDown.Render("[DOWN]")
	}

	session := info.SessionID
	if session == "" {
		session = "-"
	} else if len(session) > 8 {
		session = session[:8]
	}

	text := fmt.Sprintf(" Socket: %s  Reconnects: %d  Session: %s  Malformed: %d",
		info.SocketPath, info.Reconnects, session, info.Malformed)
	if !info.Connected && info.LastError != "" {
		text += "  " + info.LastError
	}

	content := link + StyleStatusBar.Foreground(ColorGreen).Render(text)

	gap := width - StyleStatusBar.GetHorizontalFrameSize() - lipgloss.Width(content)
	if gap < 0 {
		gap = 0
	}

	return StyleStatusBar.Width(width).Render(content + strings.Repeat(" ", gap))
}
