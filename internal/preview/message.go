package preview

import (
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/affandhia/simple-template-string/internal/session"
)

// Message is the payload pushed to browsers for each snapshot.
type Message struct {
	Revision   uint64    `json:"revision"`
	State      string    `json:"state"`
	Variables  []string  `json:"variables"`
	Rendered   string    `json:"rendered"`
	HTML       string    `json:"html,omitempty"`
	Validation string    `json:"validation,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// newMessage converts a snapshot. With policy set, the rendered output is
// also offered as sanitized markup.
func newMessage(snap session.Snapshot, policy *bluemonday.Policy) Message {
	msg := Message{
		Revision:   snap.Revision,
		State:      string(snap.State),
		Variables:  snap.Variables,
		Rendered:   snap.Rendered,
		Validation: snap.Validation(),
		UpdatedAt:  snap.UpdatedAt,
	}
	if msg.Variables == nil {
		msg.Variables = []string{}
	}
	if policy != nil {
		msg.HTML = policy.Sanitize(snap.Rendered)
	}
	return msg
}
