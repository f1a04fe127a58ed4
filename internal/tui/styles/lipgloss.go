package styles

import "github.com/charmbracelet/lipgloss"

// Styles contains lipgloss styles derived from theme tokens.
type Styles struct {
	Theme         Theme
	Title         lipgloss.Style
	Text          lipgloss.Style
	Muted         lipgloss.Style
	Accent        lipgloss.Style
	Panel         lipgloss.Style
	FocusedPanel  lipgloss.Style
	Focus         lipgloss.Style
	Label         lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	StatusIdle    lipgloss.Style
	StatusPending lipgloss.Style
	StatusError   lipgloss.Style
}

// DefaultStyles builds styles from the default theme.
func DefaultStyles() Styles {
	return BuildStyles(DefaultTheme)
}

// BuildStyles converts theme tokens into lipgloss styles.
func BuildStyles(theme Theme) Styles {
	tokens := theme.Tokens
	panel := lipgloss.NewStyle().
		Foreground(lipgloss.Color(tokens.Text)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(tokens.Border)).
		Padding(0, 1)

	return Styles{
		Theme:         theme,
		Title:         lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Text)).Bold(true),
		Text:          lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Text)),
		Muted:         lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.TextMuted)),
		Accent:        lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Accent)),
		Panel:         panel,
		FocusedPanel:  panel.Copy().BorderForeground(lipgloss.Color(tokens.Focus)),
		Focus:         lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Focus)).Bold(true),
		Label:         lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Info)),
		Warning:       lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Warning)),
		Error:         lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Error)),
		StatusIdle:    lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Success)),
		StatusPending: lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Warning)),
		StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Error)),
	}
}
