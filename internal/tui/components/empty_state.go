// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/affandhia/simple-template-string/internal/tui/styles"
)

// EmptyState is a placeholder message with optional suggestions.
type EmptyState struct {
	Title       string
	Subtitle    string
	Suggestions []Suggestion
}

// Suggestion pairs a key or command with what it does.
type Suggestion struct {
	Command     string
	Description string
}

// Render renders the empty state with the given styles.
func (e EmptyState) Render(styleSet styles.Styles) string {
	lines := []string{styleSet.Muted.Render(e.Title)}
	if e.Subtitle != "" {
		lines = append(lines, styleSet.Muted.Render(e.Subtitle))
	}
	for _, s := range e.Suggestions {
		line := fmt.Sprintf("  %s", styleSet.Accent.Render(s.Command))
		if s.Description != "" {
			line += styleSet.Muted.Render(fmt.Sprintf("  # %s", s.Description))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// RenderCompact renders a single-line empty state.
func (e EmptyState) RenderCompact(styleSet styles.Styles) string {
	line := e.Title
	if len(e.Suggestions) > 0 {
		line += fmt.Sprintf(" Try: %s", e.Suggestions[0].Command)
	}
	return styleSet.Muted.Render(line)
}

// EmptyVariables is shown when the template has no placeholders.
func EmptyVariables() EmptyState {
	return EmptyState{
		Title:    "No variables yet",
		Subtitle: "Placeholders such as {{name}} in the template become inputs here.",
		Suggestions: []Suggestion{
			{Command: "ctrl+p", Description: "start from a library template"},
		},
	}
}

// EmptyTemplates is shown when the template library is empty.
func EmptyTemplates(query string) EmptyState {
	if strings.TrimSpace(query) != "" {
		return EmptyState{
			Title:    fmt.Sprintf("No templates match '%s'", query),
			Subtitle: "Backspace to edit the filter.",
		}
	}
	return EmptyState{
		Title:    "No templates found",
		Subtitle: "Add YAML templates to .tplstr/templates or ~/.config/tplstr/templates.",
	}
}
