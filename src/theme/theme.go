// Package theme holds the console color palette.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme is a console color palette.
type Theme struct {
	Primary   lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

// CurrentTheme is used by Styles.
var CurrentTheme = Theme{
	Primary:   lipgloss.Color("#00afff"),
	Text:      lipgloss.Color("#ffffff"),
	TextMuted: lipgloss.Color("#808080"),
	Success:   lipgloss.Color("#00d75f"),
	Warning:   lipgloss.Color("#ffaf00"),
	Error:     lipgloss.Color("#ff5f5f"),
}

// SetTheme sets the current theme
func SetTheme(t Theme) {
	CurrentTheme = t
}

// Styles are the text styles derived from a Theme.
type Styles struct {
	Title   lipgloss.Style
	Text    lipgloss.Style
	Muted   lipgloss.Style
	Tool    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles derives styles from the current theme.
func NewStyles() Styles {
	t := CurrentTheme
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Text:    lipgloss.NewStyle().Foreground(t.Text),
		Muted:   lipgloss.NewStyle().Foreground(t.TextMuted),
		Tool:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Success: lipgloss.NewStyle().Foreground(t.Success),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}
