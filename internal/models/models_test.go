package models

import (
	"strings"
	"testing"
)

func TestEventValidate(t *testing.T) {
	event := &Event{}
	err := event.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"type", "entity_type", "entity_id"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("expected %s in %q", field, err.Error())
		}
	}

	event = &Event{Type: EventTypeTemplateCommitted, EntityType: EntityTypeSession, EntityID: "s-1"}
	if err := event.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDraftValidate(t *testing.T) {
	if err := (&Draft{Key: "  "}).Validate(); err == nil {
		t.Fatal("expected error for blank key")
	}
	if err := (&Draft{Key: "simple-te:textraw"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
