package models

import (
	"strings"
	"time"
)

// Draft is the persisted template text of an editing session.
type Draft struct {
	// Key identifies the draft. Sessions share a draft by key.
	Key string `json:"key"`

	// Text is the raw template text.
	Text string `json:"text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the draft is valid.
func (d *Draft) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(d.Key) == "" {
		validation.AddMessage("key", "draft key is required")
	}
	return validation.Err()
}
