package ui

import "github.com/charmbracelet/lipgloss"

// ComposeLayout joins the rate panel and slots panel horizontally,
// with menu bar on top and status bar on bottom.
func ComposeLayout(menuBar, ratePanel, slotsPanel, statusBar string) string {
	middle := lipgloss.JoinHorizontal(lipgloss.Top, ratePanel, slotsPanel)
	return lipgloss.JoinVertical(lipgloss.Left, menuBar, middle, statusBar)
}
