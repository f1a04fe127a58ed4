// Package events provides helper functions for recording session events.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/affandhia/simple-template-string/internal/models"
)

// Repository is the minimal interface needed to write events.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
}

// LogSessionStarted records that an editing session attached to a draft.
func LogSessionStarted(ctx context.Context, repo Repository, sessionID, draftKey string) error {
	return emit(ctx, repo, models.EventTypeSessionStarted, models.EntityTypeSession, sessionID,
		models.SessionPayload{DraftKey: draftKey})
}

// LogSessionStopped records that an editing session ended.
func LogSessionStopped(ctx context.Context, repo Repository, sessionID, draftKey string) error {
	return emit(ctx, repo, models.EventTypeSessionStopped, models.EntityTypeSession, sessionID,
		models.SessionPayload{DraftKey: draftKey})
}

// LogTemplateCommitted records a committed template and how its variable set changed.
func LogTemplateCommitted(ctx context.Context, repo Repository, sessionID string, variables, previous []string) error {
	added, removed := diffNames(previous, variables)
	return emit(ctx, repo, models.EventTypeTemplateCommitted, models.EntityTypeSession, sessionID,
		models.TemplateCommittedPayload{Variables: variables, Added: added, Removed: removed})
}

// LogParseFailed records a template commit that could not be parsed.
func LogParseFailed(ctx context.Context, repo Repository, sessionID string, line int, message string) error {
	return emit(ctx, repo, models.EventTypeTemplateParseFailed, models.EntityTypeSession, sessionID,
		models.ParseFailedPayload{Line: line, Message: message})
}

// LogValueCommitted records a committed variable value. Only its length is kept.
func LogValueCommitted(ctx context.Context, repo Repository, sessionID, name, value string) error {
	if name == "" {
		return fmt.Errorf("variable name is required")
	}
	return emit(ctx, repo, models.EventTypeValueCommitted, models.EntityTypeSession, sessionID,
		models.ValueCommittedPayload{Name: name, Length: len(value)})
}

// LogValuesCleared records that every value was reset.
func LogValuesCleared(ctx context.Context, repo Repository, sessionID string, count int) error {
	return emit(ctx, repo, models.EventTypeValuesCleared, models.EntityTypeSession, sessionID,
		models.ValuesClearedPayload{Count: count})
}

// LogRenderFallback records a render that returned the template verbatim.
func LogRenderFallback(ctx context.Context, repo Repository, sessionID string, renderErr error) error {
	msg := ""
	if renderErr != nil {
		msg = renderErr.Error()
	}
	return emit(ctx, repo, models.EventTypeRenderFallback, models.EntityTypeSession, sessionID,
		models.RenderFallbackPayload{Error: msg})
}

// LogDraftSaved records a draft write.
func LogDraftSaved(ctx context.Context, repo Repository, key, text string) error {
	return emit(ctx, repo, models.EventTypeDraftSaved, models.EntityTypeDraft, key,
		models.DraftPayload{Length: len(text)})
}

// LogDraftDeleted records a draft removal.
func LogDraftDeleted(ctx context.Context, repo Repository, key string) error {
	return emit(ctx, repo, models.EventTypeDraftDeleted, models.EntityTypeDraft, key, nil)
}

func emit(ctx context.Context, repo Repository, eventType models.EventType, entityType models.EntityType, entityID string, payload any) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if entityID == "" {
		return fmt.Errorf("%s id is required", entityType)
	}

	event := &models.Event{
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		event.Payload = data
	}

	return repo.Create(ctx, event)
}

func diffNames(before, after []string) (added, removed []string) {
	prev := make(map[string]struct{}, len(before))
	for _, name := range before {
		prev[name] = struct{}{}
	}
	next := make(map[string]struct{}, len(after))
	for _, name := range after {
		next[name] = struct{}{}
		if _, ok := prev[name]; !ok {
			added = append(added, name)
		}
	}
	for _, name := range before {
		if _, ok := next[name]; !ok {
			removed = append(removed, name)
		}
	}
	return added, removed
}
