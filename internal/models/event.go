// Package models defines the persisted data types.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType categorizes events in the system.
type EventType string

const (
	// Session events
	EventTypeSessionStarted EventType = "session.started"
	EventTypeSessionStopped EventType = "session.stopped"

	// Template events
	EventTypeTemplateCommitted   EventType = "template.committed"
	EventTypeTemplateParseFailed EventType = "template.parse_failed"

	// Value events
	EventTypeValueCommitted EventType = "value.committed"
	EventTypeValuesCleared  EventType = "values.cleared"

	// Render events
	EventTypeRenderFallback EventType = "render.fallback"

	// Draft events
	EventTypeDraftSaved   EventType = "draft.saved"
	EventTypeDraftDeleted EventType = "draft.deleted"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypeSession EntityType = "session"
	EntityTypeDraft   EntityType = "draft"
)

// Event represents an append-only log entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity.
	EntityID string `json:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the event is valid.
func (e *Event) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(string(e.Type)) == "" {
		validation.AddMessage("type", "event type is required")
	}
	if strings.TrimSpace(string(e.EntityType)) == "" {
		validation.AddMessage("entity_type", "entity_type is required")
	}
	if strings.TrimSpace(e.EntityID) == "" {
		validation.AddMessage("entity_id", "entity_id is required")
	}
	return validation.Err()
}

// SessionPayload is the payload for session.started and session.stopped events.
type SessionPayload struct {
	DraftKey string `json:"draft_key,omitempty"`
}

// TemplateCommittedPayload is the payload for template.committed events.
type TemplateCommittedPayload struct {
	Variables []string `json:"variables"`
	Added     []string `json:"added,omitempty"`
	Removed   []string `json:"removed,omitempty"`
}

// ParseFailedPayload is the payload for template.parse_failed events.
type ParseFailedPayload struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// ValueCommittedPayload is the payload for value.committed events.
// Values themselves are not recorded.
type ValueCommittedPayload struct {
	Name   string `json:"name"`
	Length int    `json:"length"`
}

// ValuesClearedPayload is the payload for values.cleared events.
type ValuesClearedPayload struct {
	Count int `json:"count"`
}

// RenderFallbackPayload is the payload for render.fallback events.
type RenderFallbackPayload struct {
	Error string `json:"error"`
}

// DraftPayload is the payload for draft events.
type DraftPayload struct {
	Length int `json:"length"`
}
