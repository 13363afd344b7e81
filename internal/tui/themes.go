package tui

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme of the overlay
type Theme struct {
	Name        string
	Description string

	Border    lipgloss.Color
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Error     lipgloss.Color

	Text     lipgloss.Color
	TextDim  lipgloss.Color
	TextMute lipgloss.Color
}

// DefaultTheme is used when no theme is configured
const DefaultTheme = "ghost"

var themes = map[string]Theme{
	"ghost": {
		Name:        "ghost",
		Description: "Muted greys with a violet accent",
		Border:      lipgloss.Color("#3a3d4a"),
		Primary:     lipgloss.Color("#a99cf0"),
		Secondary:   lipgloss.Color("#8fc7b4"),
		Accent:      lipgloss.Color("#e2b86b"),
		Error:       lipgloss.Color("#ef7a85"),
		Text:        lipgloss.Color("#d8dae3"),
		TextDim:     lipgloss.Color("#7d8194"),
		TextMute:    lipgloss.Color("#4d5163"),
	},
	"nord": {
		Name:        "nord",
		Description: "Arctic blues",
		Border:      lipgloss.Color("#4c566a"),
		Primary:     lipgloss.Color("#88c0d0"),
		Secondary:   lipgloss.Color("#a3be8c"),
		Accent:      lipgloss.Color("#b48ead"),
		Error:       lipgloss.Color("#bf616a"),
		Text:        lipgloss.Color("#eceff4"),
		TextDim:     lipgloss.Color("#7b88a1"),
		TextMute:    lipgloss.Color("#4c566a"),
	},
	"paper": {
		Name:        "paper",
		Description: "Light background",
		Border:      lipgloss.Color("#c9c9c9"),
		Primary:     lipgloss.Color("#3d5afe"),
		Secondary:   lipgloss.Color("#2e7d32"),
		Accent:      lipgloss.Color("#8e24aa"),
		Error:       lipgloss.Color("#c62828"),
		Text:        lipgloss.Color("#212121"),
		TextDim:     lipgloss.Color("#616161"),
		TextMute:    lipgloss.Color("#9e9e9e"),
	},
}

var currentTheme = themes[DefaultTheme]

// SetTheme activates a theme by name and reports whether it exists
func SetTheme(name string) bool {
	theme, ok := themes[name]
	if !ok {
		return false
	}
	currentTheme = theme
	rebuildStyles()
	return true
}

// CurrentTheme returns the active theme
func CurrentTheme() Theme {
	return currentTheme
}

// ThemeNames returns the available theme names, sorted
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
