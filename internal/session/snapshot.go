package session

import (
	"time"

	"github.com/affandhia/simple-template-string/internal/templates"
)

// State reports whether commits are outstanding.
type State string

const (
	// StateIdle means the snapshot reflects every edit.
	StateIdle State = "idle"
	// StatePending means at least one debounced commit is scheduled.
	StatePending State = "pending"
)

// InvalidVariableMessage prefixes the validation message shown for a
// template that cannot be parsed.
const InvalidVariableMessage = "There is an invalid variable"

// Snapshot is an immutable view of a session.
type Snapshot struct {
	SessionID string `json:"session_id"`

	// Text is the latest template text, committed or not.
	Text string `json:"text"`
	// CommittedText is the text the variables and output derive from.
	CommittedText string `json:"committed_text"`

	Variables []string        `json:"variables"`
	Values    templates.Store `json:"values"`
	Rendered  string          `json:"rendered"`

	// ParseError is set while the committed text does not parse. Variables
	// and Values then still describe the last valid template.
	ParseError  *templates.ParseError `json:"parse_error,omitempty"`
	RenderError string                `json:"render_error,omitempty"`

	State     State     `json:"state"`
	Revision  uint64    `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Value returns the committed value of a variable.
func (s Snapshot) Value(name string) string {
	return s.Values.Value(name)
}

// Validation returns the user-facing message for a parse error, or "".
func (s Snapshot) Validation() string {
	if s.ParseError == nil {
		return ""
	}
	return InvalidVariableMessage + ": " + s.ParseError.Error()
}
