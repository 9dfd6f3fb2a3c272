package wiki

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("change-%d", p.next), nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "wiki.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Page{}, &PageChange{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	store, err := NewStore(StoreConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1700000000, 0) },
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store
}

func TestCreatePagePersistsRecordAndAudit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreatePage(ctx, "editor-1", PageFields{
		Slug:    "regole",
		Title:   "Regole",
		Content: "Benvenuto",
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if created.BannerVerticalOffset != DefaultBannerVerticalOffset {
		t.Fatalf("expected default banner offset, got %d", created.BannerVerticalOffset)
	}

	loaded, err := store.GetPageBySlug(ctx, "regole")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.Title != "Regole" {
		t.Fatalf("unexpected title %q", loaded.Title)
	}

	changes, err := store.ListChanges(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected audit error: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(changes))
	}
	if changes[0].Operation != ChangeOperationCreate || changes[0].EditorID != "editor-1" {
		t.Fatalf("unexpected audit record: %+v", changes[0])
	}
}

func TestCreatePageRejectsInvalidFieldsBeforePersistence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		fields PageFields
	}{
		{name: "missing-title", fields: PageFields{Slug: "valid-slug"}},
		{name: "missing-slug", fields: PageFields{Title: "Valid"}},
		{name: "bad-slug", fields: PageFields{Slug: "Not A Slug!", Title: "Valid"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.CreatePage(ctx, "editor-1", tt.fields); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation failure, got %v", err)
			}
		})
	}

	pages, err := store.ListPages(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("nothing should be persisted after validation failures, got %d pages", len(pages))
	}
}

func TestUpdatePageAppliesFieldsAndClampsOffset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreatePage(ctx, "editor-1", PageFields{Slug: "magia", Title: "Magia"})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	offset := 250
	updated, err := store.UpdatePage(ctx, "editor-2", created.ID, PageFields{
		Slug:                 "magia",
		Title:                "Magia Arcana",
		DisplayOrder:         intPtr(3),
		Content:              "contenuto",
		StaffOnly:            true,
		BannerVerticalOffset: &offset,
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Title != "Magia Arcana" || !updated.StaffOnly {
		t.Fatalf("fields were not applied: %+v", updated)
	}
	if updated.BannerVerticalOffset != 100 {
		t.Fatalf("expected offset clamped to 100, got %d", updated.BannerVerticalOffset)
	}

	changes, err := store.ListChanges(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected audit error: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected create and update audit records, got %d", len(changes))
	}
}

func TestUpdatePageMissingIDYieldsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpdatePage(context.Background(), "editor-1", 12345, PageFields{Slug: "x", Title: "X"})
	if !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestGetPageBySlugMissingYieldsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPageBySlug(context.Background(), "missing")
	if !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
