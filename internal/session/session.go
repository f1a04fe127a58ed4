// Package session coordinates an editing session: debounced template and
// value edits are committed through extraction, reconciliation and rendering
// on a single loop goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/affandhia/simple-template-string/internal/debounce"
	"github.com/affandhia/simple-template-string/internal/events"
	"github.com/affandhia/simple-template-string/internal/logging"
	"github.com/affandhia/simple-template-string/internal/templates"
)

// Session errors.
var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrNotRunning     = errors.New("session not running")
)

// DefaultTemplate is the text of a fresh draft.
const DefaultTemplate = "\n{{hello}}\n"

const templateKey = "template"

// Config configures a Coordinator.
type Config struct {
	// TemplateDebounce is the quiet period before a template edit is committed.
	TemplateDebounce time.Duration

	// ValueDebounce is the quiet period before a value edit is committed.
	// Each variable has its own timer.
	ValueDebounce time.Duration

	// DefaultTemplate is used when persistence holds no text.
	DefaultTemplate string

	// DraftKey labels the persisted draft in events.
	DraftKey string

	// Renderer extracts and renders with a shared rule.
	Renderer templates.Renderer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TemplateDebounce: 500 * time.Millisecond,
		ValueDebounce:    500 * time.Millisecond,
		DefaultTemplate:  DefaultTemplate,
	}
}

// Persistence stores the raw template text between sessions.
type Persistence interface {
	LoadTemplateText(ctx context.Context) (text string, found bool, err error)
	SaveTemplateText(ctx context.Context, text string) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithEvents records session events to repo.
func WithEvents(repo events.Repository) Option {
	return func(c *Coordinator) { c.events = repo }
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithID sets the session ID used for events.
func WithID(id string) Option {
	return func(c *Coordinator) { c.id = id }
}

type requestKind int

const (
	reqEditTemplate requestKind = iota
	reqEditValue
	reqClearValues
	reqFlush
	reqCommitTemplate
	reqCommitValue
)

type request struct {
	kind  requestKind
	text  string
	name  string
	value string
	gen   uint64
	done  chan struct{}
}

// Coordinator owns the template text and variable store of one session.
// Public methods enqueue requests; the loop goroutine applies them in order.
type Coordinator struct {
	config    Config
	store     Persistence
	events    events.Repository
	logger    zerolog.Logger
	id        string
	extractor templates.Extractor

	mu          sync.RWMutex
	running     bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	snapshot    Snapshot
	subscribers map[int]chan Snapshot
	nextSubID   int

	requests chan request

	// Loop-owned state.
	text          string
	committed     string
	vars          templates.Store
	parseErr      *templates.ParseError
	rendered      string
	renderErr     error
	pendingValues map[string]string
	revision      uint64
	textTimer     *debounce.Debouncer
	valueTimers   *debounce.Debouncer
}

// New creates a Coordinator. store may be nil for an unpersisted session.
func New(config Config, store Persistence, opts ...Option) *Coordinator {
	if config.TemplateDebounce < 0 {
		config.TemplateDebounce = 0
	}
	if config.ValueDebounce < 0 {
		config.ValueDebounce = 0
	}
	if store == nil {
		store = &MemoryPersistence{}
	}

	c := &Coordinator{
		config:        config,
		store:         store,
		logger:        logging.Component("session"),
		id:            uuid.New().String(),
		extractor:     templates.Extractor{Rule: config.Renderer.Rule},
		subscribers:   make(map[int]chan Snapshot),
		requests:      make(chan request, 64),
		pendingValues: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the session ID.
func (c *Coordinator) ID() string {
	return c.id
}

// Start loads the persisted template, commits it immediately and starts the
// loop. The loop stops when ctx is cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}

	text, found, err := c.store.LoadTemplateText(ctx)
	if err != nil {
		return fmt.Errorf("load template text: %w", err)
	}
	if !found {
		text = c.config.DefaultTemplate
	}

	for len(c.requests) > 0 {
		<-c.requests
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.textTimer = debounce.New(c.config.TemplateDebounce, c.onTimer(reqCommitTemplate))
	c.valueTimers = debounce.New(c.config.ValueDebounce, c.onTimer(reqCommitValue))
	c.pendingValues = make(map[string]string)

	c.text = text
	c.applyTemplate()
	c.snapshot = c.buildSnapshot()

	c.logger.Info().
		Str("session_id", c.id).
		Bool("restored", found).
		Dur("template_debounce", c.config.TemplateDebounce).
		Dur("value_debounce", c.config.ValueDebounce).
		Msg("session starting")
	c.record(func(ctx context.Context, repo events.Repository) error {
		return events.LogSessionStarted(ctx, repo, c.id, c.config.DraftKey)
	})

	c.wg.Add(1)
	go c.runLoop()

	return nil
}

// Stop cancels pending commits and waits for the loop to exit.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	c.textTimer.Stop()
	c.valueTimers.Stop()

	c.mu.Lock()
	for id, ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, id)
	}
	c.mu.Unlock()

	c.record(func(ctx context.Context, repo events.Repository) error {
		return events.LogSessionStopped(ctx, repo, c.id, c.config.DraftKey)
	})
	c.logger.Info().Str("session_id", c.id).Msg("session stopped")
	return nil
}

// EditTemplate replaces the template text. The text is shown and persisted
// at once; extraction and rendering follow after the template debounce.
func (c *Coordinator) EditTemplate(text string) error {
	return c.enqueue(request{kind: reqEditTemplate, text: text})
}

// ClearTemplate empties the template text.
func (c *Coordinator) ClearTemplate() error {
	return c.EditTemplate("")
}

// EditValue sets the value of a variable after the value debounce.
// Values for names that are not variables when the commit runs are dropped.
func (c *Coordinator) EditValue(name, value string) error {
	return c.enqueue(request{kind: reqEditValue, name: name, value: value})
}

// ClearValues resets every value immediately and discards pending value edits.
func (c *Coordinator) ClearValues() error {
	return c.enqueue(request{kind: reqClearValues})
}

// Flush commits all pending edits now and waits until the resulting
// snapshot is published.
func (c *Coordinator) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := c.enqueue(request{kind: reqFlush, done: done}); err != nil {
		return err
	}
	c.mu.RLock()
	loopDone := c.ctx.Done()
	c.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-loopDone:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest published state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Subscribe returns a channel that receives the current snapshot and every
// later one. Slow readers only see the newest snapshot. The channel is
// closed by cancel or when the session stops.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	if c.running {
		ch <- c.snapshot
	}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				close(sub)
				delete(c.subscribers, id)
			}
		})
	}
	return ch, cancel
}

func (c *Coordinator) enqueue(req request) error {
	c.mu.RLock()
	running := c.running
	ctx := c.ctx
	c.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	select {
	case c.requests <- req:
		return nil
	case <-ctx.Done():
		return ErrNotRunning
	}
}

func (c *Coordinator) onTimer(kind requestKind) debounce.FireFunc {
	return func(key string, gen uint64) {
		c.mu.RLock()
		ctx := c.ctx
		c.mu.RUnlock()

		select {
		case c.requests <- request{kind: kind, name: key, gen: gen}:
		case <-ctx.Done():
		}
	}
}

func (c *Coordinator) runLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case req := <-c.requests:
			c.handle(req)
		}
	}
}

func (c *Coordinator) handle(req request) {
	switch req.kind {
	case reqEditTemplate:
		c.text = req.text
		if err := c.store.SaveTemplateText(c.ctx, req.text); err != nil {
			c.logger.Warn().Err(err).Msg("failed to persist template text")
		}
		c.textTimer.Trigger(templateKey)

	case reqEditValue:
		c.pendingValues[req.name] = req.value
		c.valueTimers.Trigger(req.name)

	case reqClearValues:
		c.valueTimers.CancelAll()
		c.pendingValues = make(map[string]string)
		c.vars = c.vars.Cleared()
		c.render()
		count := c.vars.Len()
		c.record(func(ctx context.Context, repo events.Repository) error {
			return events.LogValuesCleared(ctx, repo, c.id, count)
		})

	case reqCommitTemplate:
		if !c.textTimer.Claim(req.name, req.gen) {
			return
		}
		c.applyTemplate()

	case reqCommitValue:
		if !c.valueTimers.Claim(req.name, req.gen) {
			return
		}
		c.applyValue(req.name)

	case reqFlush:
		if len(c.textTimer.Flush()) > 0 {
			c.applyTemplate()
		}
		for _, name := range c.valueTimers.Flush() {
			c.applyValue(name)
		}
	}

	c.publish()
	if req.done != nil {
		close(req.done)
	}
}

func (c *Coordinator) applyTemplate() {
	c.committed = c.text
	names, err := c.extractor.Extract(c.committed)
	if err != nil {
		var parseErr *templates.ParseError
		if !errors.As(err, &parseErr) {
			parseErr = &templates.ParseError{Message: err.Error()}
		}
		c.parseErr = parseErr
		c.logger.Debug().Err(err).Msg("template commit kept previous variables")
		c.record(func(ctx context.Context, repo events.Repository) error {
			return events.LogParseFailed(ctx, repo, c.id, parseErr.Line, parseErr.Message)
		})
		c.render()
		return
	}

	previous := c.vars.Names()
	c.vars = templates.Reconcile(names, c.vars)
	c.parseErr = nil
	c.record(func(ctx context.Context, repo events.Repository) error {
		return events.LogTemplateCommitted(ctx, repo, c.id, names, previous)
	})
	c.render()
}

func (c *Coordinator) applyValue(name string) {
	value, ok := c.pendingValues[name]
	if !ok {
		return
	}
	delete(c.pendingValues, name)

	if !c.vars.Has(name) {
		c.logger.Debug().Str("variable", name).Msg("dropped value for unknown variable")
		return
	}
	next := c.vars.With(name, value)
	if next.Equal(c.vars) {
		return
	}
	c.vars = next
	c.record(func(ctx context.Context, repo events.Repository) error {
		return events.LogValueCommitted(ctx, repo, c.id, name, value)
	})
	c.render()
}

func (c *Coordinator) render() {
	out, err := c.config.Renderer.Render(c.committed, c.vars)
	c.rendered = out
	c.renderErr = err
	if err != nil && c.parseErr == nil {
		c.logger.Debug().Err(err).Msg("render fell back to template text")
		c.record(func(ctx context.Context, repo events.Repository) error {
			return events.LogRenderFallback(ctx, repo, c.id, err)
		})
	}
}

func (c *Coordinator) record(fn func(ctx context.Context, repo events.Repository) error) {
	if c.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fn(ctx, c.events); err != nil {
		c.logger.Warn().Err(err).Msg("failed to record session event")
	}
}

func (c *Coordinator) publish() {
	snap := c.buildSnapshot()

	c.mu.Lock()
	c.snapshot = snap
	subs := make([]chan Snapshot, 0, len(c.subscribers))
	for _, ch := range c.subscribers {
		subs = append(subs, ch)
	}
	// Non-blocking sends under the lock; cancel closes subscriber channels.
	for _, ch := range subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
	c.mu.Unlock()
}

func (c *Coordinator) buildSnapshot() Snapshot {
	c.revision++
	state := StateIdle
	if c.textTimer.Pending() > 0 || c.valueTimers.Pending() > 0 {
		state = StatePending
	}
	renderErr := ""
	if c.renderErr != nil {
		renderErr = c.renderErr.Error()
	}
	return Snapshot{
		SessionID:     c.id,
		Text:          c.text,
		CommittedText: c.committed,
		Variables:     c.vars.Names(),
		Values:        c.vars,
		Rendered:      c.rendered,
		ParseError:    c.parseErr,
		RenderError:   renderErr,
		State:         state,
		Revision:      c.revision,
		UpdatedAt:     time.Now().UTC(),
	}
}
