package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/affandhia/simple-template-string/internal/session"
	"github.com/affandhia/simple-template-string/internal/tui/styles"
)

// RenderStateBadge renders the commit state of a snapshot.
func RenderStateBadge(styleSet styles.Styles, snap session.Snapshot) string {
	icon, label, style := stateDescriptor(styleSet, snap)
	return style.Render(fmt.Sprintf("%s %s", icon, label))
}

func stateDescriptor(styleSet styles.Styles, snap session.Snapshot) (string, string, lipgloss.Style) {
	switch {
	case snap.State == session.StatePending:
		return "~", "Pending", styleSet.StatusPending
	case snap.ParseError != nil:
		return "ERR", "Invalid", styleSet.StatusError
	case snap.RenderError != "":
		return "!", "Fallback", styleSet.Warning
	default:
		return "OK", "Synced", styleSet.StatusIdle
	}
}
