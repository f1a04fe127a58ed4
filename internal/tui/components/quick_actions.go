package components

import (
	"fmt"
	"strings"

	"github.com/affandhia/simple-template-string/internal/tui/styles"
)

// QuickAction is a keyboard-triggered action.
type QuickAction struct {
	Key     string
	Label   string
	Enabled bool
}

// RenderQuickActionBar renders enabled actions as "key:Label" pairs.
func RenderQuickActionBar(styleSet styles.Styles, actions []QuickAction) string {
	var parts []string
	for _, action := range actions {
		if !action.Enabled {
			continue
		}
		keyStyle := styleSet.Accent.Copy().Bold(true)
		parts = append(parts, fmt.Sprintf("%s:%s", keyStyle.Render(action.Key), styleSet.Muted.Render(action.Label)))
	}
	return strings.Join(parts, "  ")
}

// EditorQuickActions returns the actions of the editor screen.
func EditorQuickActions(hasVariables, hasLibrary bool) []QuickAction {
	return []QuickAction{
		{Key: "tab", Label: "Next field", Enabled: true},
		{Key: "ctrl+l", Label: "Clear values", Enabled: hasVariables},
		{Key: "ctrl+x", Label: "Clear template", Enabled: true},
		{Key: "ctrl+p", Label: "Templates", Enabled: hasLibrary},
		{Key: "esc", Label: "Quit", Enabled: true},
	}
}

// PaletteQuickActions returns the actions of the open template palette.
func PaletteQuickActions() []QuickAction {
	return []QuickAction{
		{Key: "enter", Label: "Use template", Enabled: true},
		{Key: "up/down", Label: "Move", Enabled: true},
		{Key: "esc", Label: "Close", Enabled: true},
	}
}
