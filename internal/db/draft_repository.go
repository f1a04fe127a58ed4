package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/affandhia/simple-template-string/internal/models"
)

// ErrDraftNotFound is returned when no draft exists for a key.
var ErrDraftNotFound = errors.New("draft not found")

// DraftRepository handles draft persistence.
type DraftRepository struct {
	db *DB
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(db *DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Get retrieves the draft stored under key.
func (r *DraftRepository) Get(ctx context.Context, key string) (*models.Draft, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT key, text, created_at, updated_at FROM drafts WHERE key = ?
	`, key)

	var draft models.Draft
	var createdAt, updatedAt string
	if err := row.Scan(&draft.Key, &draft.Text, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to scan draft: %w", err)
	}
	draft.CreatedAt = parseTime(createdAt)
	draft.UpdatedAt = parseTime(updatedAt)
	return &draft, nil
}

// Save inserts or replaces the draft text, keeping the original creation time.
func (r *DraftRepository) Save(ctx context.Context, draft *models.Draft) error {
	if draft == nil {
		return fmt.Errorf("draft is required")
	}
	draft.Key = strings.TrimSpace(draft.Key)
	if err := draft.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drafts (key, text, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at
	`, draft.Key, draft.Text, formatTime(draft.CreatedAt), formatTime(draft.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Delete removes the draft stored under key.
func (r *DraftRepository) Delete(ctx context.Context, key string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// List returns all drafts, most recently updated first.
func (r *DraftRepository) List(ctx context.Context) ([]*models.Draft, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, text, created_at, updated_at FROM drafts ORDER BY updated_at DESC, key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*models.Draft
	for rows.Next() {
		var draft models.Draft
		var createdAt, updatedAt string
		if err := rows.Scan(&draft.Key, &draft.Text, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		draft.CreatedAt = parseTime(createdAt)
		draft.UpdatedAt = parseTime(updatedAt)
		drafts = append(drafts, &draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}
	return drafts, nil
}

// DraftStore persists the template text of one draft key. It satisfies the
// session persistence contract.
type DraftStore struct {
	repo *DraftRepository
	key  string
}

// NewDraftStore binds a draft key to the database.
func NewDraftStore(db *DB, key string) *DraftStore {
	return &DraftStore{repo: NewDraftRepository(db), key: key}
}

// Key returns the bound draft key.
func (s *DraftStore) Key() string {
	return s.key
}

// LoadTemplateText returns the stored text and whether a draft exists.
func (s *DraftStore) LoadTemplateText(ctx context.Context) (string, bool, error) {
	draft, err := s.repo.Get(ctx, s.key)
	if errors.Is(err, ErrDraftNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return draft.Text, true, nil
}

// SaveTemplateText stores text under the bound key.
func (s *DraftStore) SaveTemplateText(ctx context.Context, text string) error {
	return s.repo.Save(ctx, &models.Draft{Key: s.key, Text: text})
}
