package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affandhia/simple-template-string/internal/models"
)

type fakeEvents struct {
	mu     sync.Mutex
	events []*models.Event
}

func (f *fakeEvents) Create(ctx context.Context, event *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) count(t models.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type failingStore struct{}

func (failingStore) LoadTemplateText(context.Context) (string, bool, error) {
	return "", false, errors.New("disk gone")
}

func (failingStore) SaveTemplateText(context.Context, string) error {
	return errors.New("disk gone")
}

// slowConfig keeps timers from firing so tests drive commits with Flush.
func slowConfig() Config {
	cfg := DefaultConfig()
	cfg.TemplateDebounce = time.Hour
	cfg.ValueDebounce = time.Hour
	return cfg
}

func startSession(t *testing.T, cfg Config, store Persistence, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	c := New(cfg, store, opts...)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func flush(t *testing.T, c *Coordinator) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))
	return c.Snapshot()
}

func TestStartUsesDefaultTemplate(t *testing.T) {
	c := startSession(t, slowConfig(), nil)

	snap := c.Snapshot()
	assert.Equal(t, "\n{{hello}}\n", snap.Text)
	assert.Equal(t, []string{"hello"}, snap.Variables)
	assert.Equal(t, "\n{{hello}}\n", snap.Rendered)
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Validation())
}

func TestStartRestoresPersistedText(t *testing.T) {
	c := startSession(t, slowConfig(), NewMemoryPersistence("{{a}} {{b}}"))

	snap := c.Snapshot()
	assert.Equal(t, []string{"a", "b"}, snap.Variables)
	assert.Equal(t, "{{a}} {{b}}", snap.CommittedText)
}

func TestStartFailsWhenPersistenceFails(t *testing.T) {
	c := New(slowConfig(), failingStore{}, WithLogger(zerolog.Nop()))
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestEditTemplateShowsTextBeforeCommit(t *testing.T) {
	store := NewMemoryPersistence("{{hello}}")
	c := startSession(t, slowConfig(), store)

	require.NoError(t, c.EditTemplate("{{name}}"))
	require.Eventually(t, func() bool {
		return c.Snapshot().Text == "{{name}}"
	}, time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, StatePending, snap.State)
	assert.Equal(t, []string{"hello"}, snap.Variables, "variables wait for the commit")
	assert.Equal(t, 1, store.Saves(), "text is persisted immediately")

	snap = flush(t, c)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, []string{"name"}, snap.Variables)
	assert.Equal(t, "{{name}}", snap.Rendered)
}

func TestDebouncedCommitsFireOnTheirOwn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TemplateDebounce = 10 * time.Millisecond
	cfg.ValueDebounce = 10 * time.Millisecond
	c := startSession(t, cfg, NewMemoryPersistence("{{hello}}"))

	require.NoError(t, c.EditValue("hello", "world"))
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Rendered == "world" && snap.State == StateIdle
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRapidEditsCommitOnce(t *testing.T) {
	recorder := &fakeEvents{}
	c := startSession(t, slowConfig(), NewMemoryPersistence(""), WithEvents(recorder))

	for _, text := range []string{"{", "{{", "{{a", "{{a}", "{{a}}"} {
		require.NoError(t, c.EditTemplate(text))
	}
	snap := flush(t, c)

	assert.Equal(t, []string{"a"}, snap.Variables)
	assert.Nil(t, snap.ParseError, "intermediate invalid texts are never committed")
	assert.Equal(t, 2, recorder.count(models.EventTypeTemplateCommitted), "initial commit plus one")
	assert.Equal(t, 0, recorder.count(models.EventTypeTemplateParseFailed))
}

func TestValuesSurviveTemplateEdits(t *testing.T) {
	c := startSession(t, slowConfig(), NewMemoryPersistence("{{a}} {{b}}"))

	require.NoError(t, c.EditValue("a", "1"))
	require.NoError(t, c.EditValue("b", "2"))
	snap := flush(t, c)
	assert.Equal(t, "1 2", snap.Rendered)

	require.NoError(t, c.EditTemplate("{{b}} {{c}}"))
	snap = flush(t, c)

	assert.Equal(t, []string{"b", "c"}, snap.Variables)
	assert.Equal(t, map[string]string{"b": "2", "c": ""}, snap.Values.Map())
	assert.Equal(t, "2 {{c}}", snap.Rendered)
}

func TestParseErrorKeepsPreviousStore(t *testing.T) {
	recorder := &fakeEvents{}
	c := startSession(t, slowConfig(), NewMemoryPersistence("{{a}}"), WithEvents(recorder))

	require.NoError(t, c.EditValue("a", "kept"))
	flush(t, c)

	require.NoError(t, c.EditTemplate("{{unterminated"))
	snap := flush(t, c)

	require.NotNil(t, snap.ParseError)
	assert.Contains(t, snap.Validation(), InvalidVariableMessage)
	assert.Equal(t, []string{"a"}, snap.Variables)
	assert.Equal(t, "kept", snap.Value("a"))
	assert.Equal(t, "{{unterminated", snap.Rendered)
	assert.Equal(t, 1, recorder.count(models.EventTypeTemplateParseFailed))

	require.NoError(t, c.EditTemplate("{{a}}!"))
	snap = flush(t, c)
	assert.Nil(t, snap.ParseError)
	assert.Equal(t, "kept!", snap.Rendered)
}

func TestClearValuesCancelsPendingEdits(t *testing.T) {
	c := startSession(t, slowConfig(), NewMemoryPersistence("{{a}} {{b}}"))

	require.NoError(t, c.EditValue("a", "1"))
	flush(t, c)

	require.NoError(t, c.EditValue("b", "pending"))
	require.NoError(t, c.ClearValues())
	snap := flush(t, c)

	assert.Equal(t, map[string]string{"a": "", "b": ""}, snap.Values.Map())
	assert.Equal(t, "{{a}} {{b}}", snap.Rendered)
}

func TestValueForRemovedVariableIsDropped(t *testing.T) {
	c := startSession(t, slowConfig(), NewMemoryPersistence("{{a}}"))

	require.NoError(t, c.EditValue("a", "late"))
	require.NoError(t, c.EditTemplate("{{b}}"))
	snap := flush(t, c)

	assert.Equal(t, []string{"b"}, snap.Variables)
	assert.False(t, snap.Values.Has("a"))
}

func TestValueForNewVariableAppliesAfterTemplate(t *testing.T) {
	c := startSession(t, slowConfig(), NewMemoryPersistence("{{a}}"))

	require.NoError(t, c.EditTemplate("{{a}} {{b}}"))
	require.NoError(t, c.EditValue("b", "new"))
	snap := flush(t, c)

	assert.Equal(t, "new", snap.Value("b"))
}

func TestClearTemplateEmptiesStore(t *testing.T) {
	c := startSession(t, slowConfig(), NewMemoryPersistence("{{a}}"))

	require.NoError(t, c.ClearTemplate())
	snap := flush(t, c)

	assert.Empty(t, snap.Variables)
	assert.Equal(t, 0, snap.Values.Len())
	assert.Equal(t, "", snap.Rendered)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	c := startSession(t, slowConfig(), NewMemoryPersistence("{{a}}"))

	updates, cancel := c.Subscribe()
	defer cancel()

	first := <-updates
	assert.Equal(t, []string{"a"}, first.Variables)

	require.NoError(t, c.EditValue("a", "x"))
	flush(t, c)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Rendered == "x" {
				assert.Greater(t, snap.Revision, first.Revision)
				return
			}
		case <-deadline:
			t.Fatal("did not receive committed snapshot")
		}
	}
}

func TestLifecycleErrors(t *testing.T) {
	c := New(slowConfig(), nil, WithLogger(zerolog.Nop()))

	assert.ErrorIs(t, c.EditTemplate("x"), ErrNotRunning)
	assert.ErrorIs(t, c.Stop(), ErrNotRunning)

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	updates, _ := c.Subscribe()
	require.NoError(t, c.Stop())
	assert.ErrorIs(t, c.EditValue("hello", "x"), ErrNotRunning)

	for range updates {
	}
}

func TestStopDropsPendingCommits(t *testing.T) {
	recorder := &fakeEvents{}
	cfg := DefaultConfig()
	cfg.TemplateDebounce = 20 * time.Millisecond
	c := New(cfg, NewMemoryPersistence("{{a}}"), WithLogger(zerolog.Nop()), WithEvents(recorder))
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.EditTemplate("{{b}}"))
	require.NoError(t, c.Stop())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, recorder.count(models.EventTypeTemplateCommitted))
	assert.Equal(t, 1, recorder.count(models.EventTypeSessionStopped))
}
