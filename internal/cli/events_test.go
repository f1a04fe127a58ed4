package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affandhia/simple-template-string/internal/db"
	"github.com/affandhia/simple-template-string/internal/events"
	"github.com/affandhia/simple-template-string/internal/models"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background()))
	t.Cleanup(func() { database.Close() })
	return database
}

// recordEditingSession writes the events of a short session: the template
// gains a variable after a value was typed, then values are cleared.
func recordEditingSession(t *testing.T, repo *db.EventRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, events.LogSessionStarted(ctx, repo, "s1", "simple-te:textraw"))
	require.NoError(t, events.LogTemplateCommitted(ctx, repo, "s1", []string{"name"}, nil))
	require.NoError(t, events.LogValueCommitted(ctx, repo, "s1", "name", "Ada"))
	require.NoError(t, events.LogTemplateCommitted(ctx, repo, "s1", []string{"name", "place"}, []string{"name"}))
	require.NoError(t, events.LogValuesCleared(ctx, repo, "s1", 2))
}

func decodeLines(t *testing.T, data []byte) []models.Event {
	t.Helper()
	var out []models.Event
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var event models.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event), "line %q", scanner.Text())
		out = append(out, event)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestEventStreamer_ReplaysSessionPayloads(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))
	recordEditingSession(t, repo)

	var buf bytes.Buffer
	config := DefaultStreamConfig()
	config.PollInterval = 5 * time.Millisecond
	config.IncludeExisting = true

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, NewEventStreamer(repo, &buf, config).Stream(ctx))

	streamed := decodeLines(t, buf.Bytes())
	require.Len(t, streamed, 5)

	types := make([]models.EventType, len(streamed))
	for i, e := range streamed {
		types[i] = e.Type
	}
	assert.Equal(t, []models.EventType{
		models.EventTypeSessionStarted,
		models.EventTypeTemplateCommitted,
		models.EventTypeValueCommitted,
		models.EventTypeTemplateCommitted,
		models.EventTypeValuesCleared,
	}, types)

	var grown models.TemplateCommittedPayload
	require.NoError(t, json.Unmarshal(streamed[3].Payload, &grown))
	assert.Equal(t, []string{"name", "place"}, grown.Variables)
	assert.Equal(t, []string{"place"}, grown.Added)
	assert.Empty(t, grown.Removed)

	var value models.ValueCommittedPayload
	require.NoError(t, json.Unmarshal(streamed[2].Payload, &value))
	assert.Equal(t, models.ValueCommittedPayload{Name: "name", Length: 3}, value)
	assert.NotContains(t, buf.String(), "Ada", "value text must not reach the event log")
}

func TestEventStreamer_PollFollowsInsertionOrder(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))
	ctx := context.Background()

	// Timestamps run backwards; the cursor must still follow insertion order.
	base := time.Now().UTC()
	var want []string
	for i := 0; i < 5; i++ {
		event := &models.Event{
			Type:       models.EventTypeValueCommitted,
			EntityType: models.EntityTypeSession,
			EntityID:   "s1",
			Timestamp:  base.Add(-time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, event))
		want = append(want, event.ID)
	}

	config := DefaultStreamConfig()
	config.BatchSize = 2
	streamer := NewEventStreamer(repo, &bytes.Buffer{}, config)

	var got []string
	cursor := ""
	for batches := 0; ; batches++ {
		require.Less(t, batches, 5, "cursor did not advance")
		page, next, err := streamer.poll(ctx, cursor, nil)
		require.NoError(t, err)
		if len(page) == 0 {
			assert.Equal(t, cursor, next, "an empty poll keeps the cursor")
			break
		}
		for _, e := range page {
			got = append(got, e.ID)
		}
		cursor = next
	}
	assert.Equal(t, want, got)
}

func TestEventStreamer_FiltersByType(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))
	recordEditingSession(t, repo)

	config := DefaultStreamConfig()
	config.Types = eventTypes([]string{" value.committed ", "values.cleared", ""})
	streamer := NewEventStreamer(repo, &bytes.Buffer{}, config)

	page, _, err := streamer.poll(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, models.EventTypeValueCommitted, page[0].Type)
	assert.Equal(t, models.EventTypeValuesCleared, page[1].Type)
}

func TestEventStreamer_SkipsExistingByDefault(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))
	ctx := context.Background()
	require.NoError(t, events.LogDraftSaved(ctx, repo, "old", "text"))

	var mu sync.Mutex
	var buf bytes.Buffer
	config := DefaultStreamConfig()
	config.PollInterval = 5 * time.Millisecond
	connected := make(chan struct{})
	config.Reconnect.OnStatusChange = func(status ConnectionStatus, attempt int, nextRetry time.Duration, err error) {
		if status == ConnectionStatusConnected {
			close(connected)
		}
	}

	streamer := NewEventStreamer(repo, &lockedWriter{mu: &mu, w: &buf}, config)
	streamCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- streamer.Stream(streamCtx) }()

	<-connected
	require.NoError(t, events.LogDraftSaved(ctx, repo, "fresh", "text"))
	require.NoError(t, <-done)

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	assert.NotContains(t, out, `"entity_id":"old"`)
	assert.Contains(t, out, `"entity_id":"fresh"`)
}

func TestEventStreamer_MultipleEntityTypes(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))
	ctx := context.Background()

	for _, e := range []*models.Event{
		{Type: models.EventTypeSessionStarted, EntityType: models.EntityTypeSession, EntityID: "s"},
		{Type: models.EventTypeDraftSaved, EntityType: models.EntityTypeDraft, EntityID: "d"},
		{Type: "other.thing", EntityType: "other", EntityID: "o"},
	} {
		require.NoError(t, repo.Create(ctx, e))
	}

	config := DefaultStreamConfig()
	config.EntityTypes = []models.EntityType{models.EntityTypeSession, models.EntityTypeDraft}
	streamer := NewEventStreamer(repo, &bytes.Buffer{}, config)

	page, cursor, err := streamer.poll(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	// The filtered-out event still moves the cursor.
	rest, next, err := streamer.poll(ctx, cursor, nil)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, cursor, next)
}

func TestEventStreamer_CancelIsNotAnError(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))

	var mu sync.Mutex
	var statuses []ConnectionStatus
	config := DefaultStreamConfig()
	config.PollInterval = 5 * time.Millisecond
	config.Reconnect.OnStatusChange = func(status ConnectionStatus, attempt int, nextRetry time.Duration, err error) {
		mu.Lock()
		statuses = append(statuses, status)
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	require.NoError(t, NewEventStreamer(repo, &bytes.Buffer{}, config).Stream(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ConnectionStatus{ConnectionStatusConnected, ConnectionStatusDisconnected}, statuses)
}

func TestEventStreamer_UnreachableDatabase(t *testing.T) {
	database := setupTestDB(t)
	require.NoError(t, database.Close())
	repo := db.NewEventRepository(database)

	t.Run("retries then gives up", func(t *testing.T) {
		retries := 0
		config := DefaultStreamConfig()
		config.Reconnect = ReconnectConfig{
			Enabled:           true,
			MaxAttempts:       2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        4 * time.Millisecond,
			BackoffMultiplier: 2,
			OnStatusChange: func(status ConnectionStatus, attempt int, nextRetry time.Duration, err error) {
				if status == ConnectionStatusReconnecting {
					retries++
				}
			},
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err := NewEventStreamer(repo, &bytes.Buffer{}, config).Stream(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max reconnection attempts")
		assert.Equal(t, 2, retries)
	})

	t.Run("fails at once without reconnect", func(t *testing.T) {
		config := DefaultStreamConfig()
		config.Reconnect.Enabled = false

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err := NewEventStreamer(repo, &bytes.Buffer{}, config).Stream(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "poll events")
	})
}

func TestFollowRequiresJSONLines(t *testing.T) {
	origFollow, origJSONL := followMode, jsonlOutput
	t.Cleanup(func() { followMode, jsonlOutput = origFollow, origJSONL })

	followMode, jsonlOutput = true, false
	assert.Error(t, MustBeJSONLForWatch())

	jsonlOutput = true
	assert.NoError(t, MustBeJSONLForWatch())
}

func TestParseSince(t *testing.T) {
	got, err := ParseSince("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	for input, age := range map[string]time.Duration{
		"90m":  90 * time.Minute,
		"2d":   48 * time.Hour,
		"0.5d": 12 * time.Hour,
	} {
		got, err := ParseSince(input)
		require.NoError(t, err, input)
		assert.WithinDuration(t, time.Now().Add(-age), *got, time.Minute, input)
	}

	got, err = ParseSince("2026-03-01T09:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC), *got)

	got, err = ParseSince("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *got)

	for _, bad := range []string{"yesterday", "3x", "d"} {
		_, err := ParseSince(bad)
		assert.Error(t, err, bad)
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
