package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/affandhia/simple-template-string/internal/db"
	"github.com/affandhia/simple-template-string/internal/models"
)

var (
	followMode     bool
	eventsLimit    int
	eventsTypes    []string
	eventsEntity   string
	eventsSince    string
	eventsOlder    string
	eventsPruneDry bool
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsPruneCmd)

	flags := eventsCmd.Flags()
	flags.BoolVarP(&followMode, "follow", "F", false, "stream new events as JSON lines (requires --jsonl)")
	flags.IntVarP(&eventsLimit, "limit", "n", 50, "maximum number of events to list")
	flags.StringSliceVar(&eventsTypes, "type", nil, "only events of these types")
	flags.StringVar(&eventsEntity, "entity", "", "only events of this entity type (session, draft)")
	flags.StringVar(&eventsSince, "since", "", "only events after a duration ago (1h, 7d) or a timestamp")

	eventsPruneCmd.Flags().StringVar(&eventsOlder, "older-than", "30d", "delete events older than this duration")
	eventsPruneCmd.Flags().BoolVar(&eventsPruneDry, "dry-run", false, "only report the cutoff")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List or follow the session event log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if followMode {
			if err := MustBeJSONLForWatch(); err != nil {
				return err
			}
		}

		since, err := ParseSince(eventsSince)
		if err != nil {
			return err
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()
		repo := db.NewEventRepository(database)

		config := DefaultStreamConfig()
		config.Since = since
		config.Types = eventTypes(eventsTypes)
		if eventsEntity != "" {
			config.EntityTypes = []models.EntityType{models.EntityType(eventsEntity)}
		}

		if followMode {
			config.IncludeExisting = since != nil
			return NewEventStreamer(repo, os.Stdout, config).Stream(cmd.Context())
		}

		config.BatchSize = eventsLimit
		streamer := NewEventStreamer(repo, os.Stdout, config)
		events, _, err := streamer.poll(cmd.Context(), "", since)
		if err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, events)
		}
		if len(events) == 0 {
			fmt.Println("No events.")
			return nil
		}
		rows := make([][]string, 0, len(events))
		for _, e := range events {
			rows = append(rows, []string{
				e.Timestamp.Local().Format(time.DateTime),
				string(e.Type),
				string(e.EntityType) + ":" + shortID(e.EntityID),
				truncateCell(string(e.Payload), 60),
			})
		}
		return writeTable(os.Stdout, []string{"TIME", "TYPE", "ENTITY", "PAYLOAD"}, rows)
	},
}

var eventsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		age, err := parseDurationWithDays(eventsOlder)
		if err != nil {
			return fmt.Errorf("invalid --older-than: %w", err)
		}
		cutoff := time.Now().UTC().Add(-age)
		if eventsPruneDry {
			fmt.Printf("Would delete events before %s\n", cutoff.Format(time.RFC3339))
			return nil
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		deleted, err := db.NewEventRepository(database).DeleteOlderThan(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, map[string]any{"deleted": deleted, "before": cutoff})
		}
		fmt.Printf("Deleted %d events\n", deleted)
		return nil
	},
}

// ConnectionStatus reports the health of an event stream.
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusReconnecting ConnectionStatus = "reconnecting"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// ReconnectConfig controls retries after a failed poll.
type ReconnectConfig struct {
	Enabled           bool
	MaxAttempts       int // 0 retries forever
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	OnStatusChange    func(status ConnectionStatus, attempt int, nextRetry time.Duration, err error)
}

// DefaultReconnectConfig retries forever with exponential backoff.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Enabled:           true,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// StreamConfig configures an EventStreamer.
type StreamConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	IncludeExisting bool
	Since           *time.Time
	Types           []models.EventType
	EntityTypes     []models.EntityType
	Reconnect       ReconnectConfig
}

// DefaultStreamConfig returns the streaming defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval: 500 * time.Millisecond,
		BatchSize:    100,
		Reconnect:    DefaultReconnectConfig(),
	}
}

// EventStreamer writes events from the log as JSON lines.
type EventStreamer struct {
	repo   *db.EventRepository
	out    io.Writer
	config StreamConfig
}

// NewEventStreamer creates a streamer over repo.
func NewEventStreamer(repo *db.EventRepository, out io.Writer, config StreamConfig) *EventStreamer {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	return &EventStreamer{repo: repo, out: out, config: config}
}

// Stream polls for events until ctx is done. Cancellation is not an error.
func (s *EventStreamer) Stream(ctx context.Context) error {
	var (
		cursor  string
		started bool
		attempt int
		backoff time.Duration
	)

	for {
		var events []*models.Event
		var err error
		if !started {
			cursor, err = s.startCursor(ctx)
		} else {
			events, cursor, err = s.poll(ctx, cursor, s.config.Since)
		}

		if err != nil {
			if ctx.Err() != nil {
				s.status(ConnectionStatusDisconnected, 0, 0, nil)
				return nil
			}
			if !s.config.Reconnect.Enabled {
				s.status(ConnectionStatusDisconnected, 0, 0, err)
				return fmt.Errorf("poll events: %w", err)
			}
			attempt++
			if max := s.config.Reconnect.MaxAttempts; max > 0 && attempt > max {
				s.status(ConnectionStatusDisconnected, attempt, 0, err)
				return fmt.Errorf("max reconnection attempts (%d) exceeded: %w", max, err)
			}
			backoff = s.calculateBackoff(attempt, backoff)
			s.status(ConnectionStatusReconnecting, attempt, backoff, err)
			if !sleepContext(ctx, backoff) {
				s.status(ConnectionStatusDisconnected, 0, 0, nil)
				return nil
			}
			continue
		}

		if !started || attempt > 0 {
			started = true
			attempt, backoff = 0, 0
			s.status(ConnectionStatusConnected, 0, 0, nil)
		}

		for _, event := range events {
			if err := s.writeEvent(event); err != nil {
				return err
			}
		}
		if len(events) == s.config.BatchSize {
			continue
		}

		if !sleepContext(ctx, s.config.PollInterval) {
			s.status(ConnectionStatusDisconnected, 0, 0, nil)
			return nil
		}
	}
}

// startCursor positions the stream: at the beginning when replaying,
// otherwise after the newest event.
func (s *EventStreamer) startCursor(ctx context.Context) (string, error) {
	if s.config.IncludeExisting {
		return "", nil
	}
	newest, err := s.repo.Recent(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(newest) == 0 {
		return "", nil
	}
	return newest[0].ID, nil
}

// poll fetches one batch after cursor and returns the cursor to continue from.
func (s *EventStreamer) poll(ctx context.Context, cursor string, since *time.Time) ([]*models.Event, string, error) {
	query := db.EventQuery{
		Types:  s.config.Types,
		Since:  since,
		Cursor: cursor,
		Limit:  s.config.BatchSize,
	}
	if len(s.config.EntityTypes) == 1 {
		entityType := s.config.EntityTypes[0]
		query.EntityType = &entityType
	}

	page, err := s.repo.Query(ctx, query)
	if err != nil {
		return nil, cursor, err
	}
	if len(page.Events) == 0 {
		return nil, cursor, nil
	}

	next := page.Events[len(page.Events)-1].ID
	if len(s.config.EntityTypes) <= 1 {
		return page.Events, next, nil
	}

	filtered := make([]*models.Event, 0, len(page.Events))
	for _, event := range page.Events {
		for _, entityType := range s.config.EntityTypes {
			if event.EntityType == entityType {
				filtered = append(filtered, event)
				break
			}
		}
	}
	return filtered, next, nil
}

func (s *EventStreamer) writeEvent(event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	data = append(data, '\n')
	_, err = s.out.Write(data)
	return err
}

func (s *EventStreamer) calculateBackoff(attempt int, current time.Duration) time.Duration {
	cfg := s.config.Reconnect
	if attempt <= 1 || current <= 0 {
		return cfg.InitialBackoff
	}
	next := time.Duration(float64(current) * cfg.BackoffMultiplier)
	if cfg.MaxBackoff > 0 && next > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return next
}

func (s *EventStreamer) status(status ConnectionStatus, attempt int, nextRetry time.Duration, err error) {
	if s.config.Reconnect.OnStatusChange != nil {
		s.config.Reconnect.OnStatusChange(status, attempt, nextRetry, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// ParseSince parses a relative duration ("1h", "7d") or an absolute
// timestamp into a UTC time. An empty string yields nil.
func ParseSince(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if d, err := parseDurationWithDays(value); err == nil {
		t := time.Now().UTC().Add(-d)
		return &t, nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return &t, nil
	}

	return nil, fmt.Errorf("invalid --since %q: use a duration (30m, 1h, 7d) or a timestamp (2024-01-15T10:30:00Z)", value)
}

// parseDurationWithDays extends time.ParseDuration with a "d" suffix.
func parseDurationWithDays(value string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	return time.ParseDuration(value)
}

func eventTypes(values []string) []models.EventType {
	if len(values) == 0 {
		return nil
	}
	out := make([]models.EventType, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, models.EventType(v))
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
