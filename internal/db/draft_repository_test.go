package db

import (
	"context"
	"errors"
	"testing"

	"github.com/affandhia/simple-template-string/internal/models"
)

func TestDraftRepositorySaveAndGet(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	repo := NewDraftRepository(database)

	if _, err := repo.Get(ctx, "simple-te:textraw"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected ErrDraftNotFound, got %v", err)
	}

	if err := repo.Save(ctx, &models.Draft{Key: "simple-te:textraw", Text: "{{a}}"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	first, err := repo.Get(ctx, "simple-te:textraw")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first.Text != "{{a}}" {
		t.Fatalf("unexpected text %q", first.Text)
	}

	if err := repo.Save(ctx, &models.Draft{Key: "simple-te:textraw", Text: "{{b}}"}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	second, err := repo.Get(ctx, "simple-te:textraw")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if second.Text != "{{b}}" {
		t.Fatalf("expected overwrite, got %q", second.Text)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Fatalf("updated_at went backwards")
	}
}

func TestDraftRepositoryRejectsBlankKey(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	if err := NewDraftRepository(database).Save(context.Background(), &models.Draft{Key: " "}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDraftRepositoryDeleteAndList(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	repo := NewDraftRepository(database)
	for _, key := range []string{"a", "b"} {
		if err := repo.Save(ctx, &models.Draft{Key: key, Text: key}); err != nil {
			t.Fatalf("save %s: %v", key, err)
		}
	}

	drafts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "a"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected ErrDraftNotFound, got %v", err)
	}
}

func TestDraftStore(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	store := NewDraftStore(database, "notes")

	text, found, err := store.LoadTemplateText(ctx)
	if err != nil || found || text != "" {
		t.Fatalf("expected empty miss, got %q %v %v", text, found, err)
	}

	if err := store.SaveTemplateText(ctx, ""); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	text, found, err = store.LoadTemplateText(ctx)
	if err != nil || !found || text != "" {
		t.Fatalf("expected stored empty text, got %q %v %v", text, found, err)
	}
}
