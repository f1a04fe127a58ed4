package cli

import (
	"context"

	"github.com/affandhia/simple-template-string/internal/db"
	"github.com/affandhia/simple-template-string/internal/logging"
	"github.com/affandhia/simple-template-string/internal/session"
)

// sessionConfig builds the coordinator settings from the editor and render sections.
func sessionConfig() session.Config {
	cfg := GetConfig()
	return session.Config{
		TemplateDebounce: cfg.Editor.TemplateDebounce,
		ValueDebounce:    cfg.Editor.ValueDebounce,
		DefaultTemplate:  cfg.Editor.DefaultTemplate,
		DraftKey:         cfg.Editor.DraftKey,
		Renderer:         cfg.Renderer(),
	}
}

// startDraftSession starts a coordinator persisted to the draft store and
// recording to the event log.
func startDraftSession(ctx context.Context, database *db.DB, key string) (*session.Coordinator, error) {
	config := sessionConfig()
	if key != "" {
		config.DraftKey = key
	}
	coordinator := session.New(config, db.NewDraftStore(database, config.DraftKey),
		session.WithEvents(db.NewEventRepository(database)),
		session.WithLogger(logging.Component("session")),
	)
	if err := coordinator.Start(ctx); err != nil {
		return nil, err
	}
	return coordinator, nil
}

// startMemorySession starts a coordinator that keeps its text in memory.
func startMemorySession(ctx context.Context, text string) (*session.Coordinator, error) {
	coordinator := session.New(sessionConfig(), session.NewMemoryPersistence(text),
		session.WithLogger(logging.Component("session")),
	)
	if err := coordinator.Start(ctx); err != nil {
		return nil, err
	}
	return coordinator, nil
}

// applyValues queues values for the variables of the committed template and
// commits them without waiting for the debounce.
func applyValues(ctx context.Context, coordinator *session.Coordinator, values map[string]string) error {
	for name, value := range values {
		if err := coordinator.EditValue(name, value); err != nil {
			return err
		}
	}
	return coordinator.Flush(ctx)
}
