// Package tui provides the terminal overlay for ghostbar.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Style variables (rebuilt when the theme changes)
var (
	headerStyle    lipgloss.Style
	titleStyle     lipgloss.Style
	subtitleStyle  lipgloss.Style
	hintStyle      lipgloss.Style
	attachedStyle  lipgloss.Style
	separatorStyle lipgloss.Style

	messagesAreaStyle lipgloss.Style

	userLabelStyle      lipgloss.Style
	userTextStyle       lipgloss.Style
	assistantLabelStyle lipgloss.Style
	assistantTextStyle  lipgloss.Style
	typingCursorStyle   lipgloss.Style

	inputPanelStyle lipgloss.Style
	inputLabelStyle lipgloss.Style
	loadingStyle    lipgloss.Style

	statusBarStyle  lipgloss.Style
	statusKeyStyle  lipgloss.Style
	statusDescStyle lipgloss.Style
	noticeStyle     lipgloss.Style
	errorStyle      lipgloss.Style

	welcomeTitleStyle lipgloss.Style
	welcomeStyle      lipgloss.Style
)

func init() {
	rebuildStyles()
}

// rebuildStyles creates all lipgloss styles from the current theme
func rebuildStyles() {
	t := currentTheme

	headerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	subtitleStyle = lipgloss.NewStyle().
		Foreground(t.TextDim)

	hintStyle = lipgloss.NewStyle().
		Foreground(t.TextMute).
		Italic(true)

	attachedStyle = lipgloss.NewStyle().
		Foreground(t.Accent)

	separatorStyle = lipgloss.NewStyle().
		Foreground(t.TextMute)

	messagesAreaStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)

	userLabelStyle = lipgloss.NewStyle().
		Foreground(t.Secondary).
		Bold(true)

	userTextStyle = lipgloss.NewStyle().
		Foreground(t.Text).
		PaddingLeft(2)

	assistantLabelStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	assistantTextStyle = lipgloss.NewStyle().
		Foreground(t.Text).
		PaddingLeft(2)

	typingCursorStyle = lipgloss.NewStyle().
		Foreground(t.Accent)

	inputPanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)

	inputLabelStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	loadingStyle = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	statusBarStyle = lipgloss.NewStyle().
		Foreground(t.TextMute)

	statusKeyStyle = lipgloss.NewStyle().
		Foreground(t.TextDim).
		Bold(true)

	statusDescStyle = lipgloss.NewStyle().
		Foreground(t.TextMute)

	noticeStyle = lipgloss.NewStyle().
		Foreground(t.Secondary).
		Italic(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(t.Error).
		Bold(true)

	welcomeTitleStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Align(lipgloss.Center)

	welcomeStyle = lipgloss.NewStyle().
		Foreground(t.TextDim).
		Align(lipgloss.Center)
}
