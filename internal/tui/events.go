package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/affandhia/simple-template-string/internal/session"
)

// SnapshotMsg carries a session snapshot into the program.
type SnapshotMsg session.Snapshot

// SessionClosedMsg reports that the session stopped publishing.
type SessionClosedMsg struct{}

// EditErrorMsg reports an edit the session rejected.
type EditErrorMsg struct {
	Err error
}

// waitForSnapshot delivers the next snapshot from updates. Update re-issues
// it after each SnapshotMsg so the program keeps following the session.
func waitForSnapshot(updates <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return SessionClosedMsg{}
		}
		return SnapshotMsg(snap)
	}
}
