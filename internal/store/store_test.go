package store

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/reader/dbopen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(schema))
	return &Store{db: db}
}

func TestInsertAndRecordsInRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	records := []CrawledRecord{
		{ID: "a", CreatedAt: base, SnapshotPath: "snapshots/a"},
		{ID: "b", CreatedAt: base.Add(time.Hour), SnapshotPath: "snapshots/b"},
		{ID: "c", CreatedAt: base.Add(48 * time.Hour), SnapshotPath: "snapshots/c"},
	}
	for _, r := range records {
		if err := s.Insert(ctx, r); err != nil {
			t.Fatalf("Insert(%s): %v", r.ID, err)
		}
	}

	got, err := s.RecordsInRange(ctx, base, base.Add(24*time.Hour), 0, 10)
	if err != nil {
		t.Fatalf("RecordsInRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records in range, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("unexpected order: %+v", got)
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Errorf("expected CreatedAt %v, got %v", base, got[0].CreatedAt)
	}
}

func TestRecordsInRange_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		r := CrawledRecord{ID: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Minute), SnapshotPath: "p"}
		if err := s.Insert(ctx, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	page, err := s.RecordsInRange(ctx, base, base.Add(time.Hour), 2, 2)
	if err != nil {
		t.Fatalf("RecordsInRange: %v", err)
	}
	if len(page) != 2 || page[0].ID != "c" || page[1].ID != "d" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestRecordsInRange_Empty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	got, err := s.RecordsInRange(ctx, base, base.Add(time.Hour), 0, 10)
	if err != nil {
		t.Fatalf("RecordsInRange: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestInsert_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := CrawledRecord{ID: "dup", CreatedAt: time.Now().UTC(), SnapshotPath: "p"}
	if err := s.Insert(ctx, r); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if err := s.Insert(ctx, r); err == nil {
		t.Error("expected error inserting duplicate ID")
	}
}
