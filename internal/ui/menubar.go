package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"groundlink.klederson.com/internal/config"
)

// MenuState is what the menu bar needs to know about the app.
type MenuState struct {
	Connected bool
	Paused    bool
	Demo      bool
}

// RenderMenuBar renders the top menu bar.
func RenderMenuBar(width int, st MenuState) string {
	title := fmt.Sprintf(" %s v%s ", config.AppName, config.AppVersion)

	keys := []struct{ key, label string }{
		{"P", "ause"},
		{"Q", "uit"},
	}
	if st.Demo {
		keys = append([]struct{ key, label string }{{"R", "estart engine"}}, keys...)
	}

	menu := ""
	for _, k := range keys {
		menu += "  " + StyleMenuKey.Render("["+k.key+"]") + StyleMenuLabel.Render(k.label)
	}

	var status string
	if st.Connected {
		status = StyleLinkUp.Render("LINKED")
	} else {
		status = StyleLinkDown.Render("NO ENGINE")
	}
	if st.Paused {
		status = StylePaused.Render("PAUSED") + "  " + status
	}
	if st.Demo {
		status += "  " + StyleMenuLabel.Render("demo")
	}

	left := StyleMenuKey.Render(title) + menu
	right := status + " "

	gap := width - StyleMenuBar.GetHorizontalFrameSize() - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	return StyleMenuBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}
