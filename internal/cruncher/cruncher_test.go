package cruncher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hazyhaar/reader/dbopen"
	"github.com/hazyhaar/reader/internal/format"
	"github.com/hazyhaar/reader/internal/objectstore"
	"github.com/hazyhaar/reader/internal/store"
)

func TestBatchFilename_ZeroOffset(t *testing.T) {
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	got := batchFilename("crunch", 1, day, 0)
	want := "crunch/r1/2026-03-05-00000.jsonl"
	if got != want {
		t.Errorf("batchFilename() = %q, want %q", got, want)
	}
}

func TestBatchFilename_NonZeroOffset(t *testing.T) {
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	got := batchFilename("crunch", 1, day, 10000)
	want := "crunch/r1/2026-03-05-10000.jsonl"
	if got != want {
		t.Errorf("batchFilename() = %q, want %q", got, want)
	}
}

func TestConfig_Defaults(t *testing.T) {
	c := Config{}
	c.defaults()
	if c.TMinus != 31 {
		t.Errorf("TMinus = %d, want 31", c.TMinus)
	}
	if c.BatchSize != 10000 {
		t.Errorf("BatchSize = %d, want 10000", c.BatchSize)
	}
}

func TestConfig_DefaultsPreserveExplicitValues(t *testing.T) {
	c := Config{TMinus: 7, BatchSize: 500}
	c.defaults()
	if c.TMinus != 7 || c.BatchSize != 500 {
		t.Errorf("defaults() overwrote explicit values: %+v", c)
	}
}

// TestWriteBatch_PreservesRecordOrder guards against writeBatch's per-record
// fetch+format goroutines racing each other onto the output stream: the
// .jsonl line order must follow RecordsInRange's createdAt-ascending order,
// not whichever goroutine happens to finish its objectstore.Read first. Runs
// against the GCS emulator like internal/objectstore's own tests; skips
// without STORAGE_EMULATOR_HOST.
func TestWriteBatch_PreservesRecordOrder(t *testing.T) {
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set; skipping cruncher integration test")
	}
	ctx := context.Background()

	obj, err := objectstore.New(ctx, "reader-test-bucket")
	if err != nil {
		t.Fatalf("objectstore.New: %v", err)
	}

	dbPath := t.TempDir() + "/cruncher-order.db"
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	const n = 12
	var records []store.CrawledRecord
	for i := 0; i < n; i++ {
		href := fmt.Sprintf("https://example.test/page%02d", i)
		snapPath := fmt.Sprintf("snapshots/order-%02d", i)
		if err := obj.WriteSnapshot(ctx, fmt.Sprintf("order-%02d", i), []byte(fmt.Sprintf(`{"href":%q,"html":"<p>x</p>"}`, href))); err != nil {
			t.Fatalf("WriteSnapshot(%d): %v", i, err)
		}
		rec := store.CrawledRecord{
			ID:           fmt.Sprintf("order-%02d", i),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			SnapshotPath: snapPath,
		}
		if err := st.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		records = append(records, rec)
	}

	c := New(Config{Prefix: "crunch-order-test", Rev: 1}, st, obj, format.New())
	filename := batchFilename(c.cfg.Prefix, c.cfg.Rev, base, 0)
	if err := c.writeBatch(ctx, filename, records); err != nil {
		t.Fatalf("writeBatch: %v", err)
	}

	data, err := obj.Read(ctx, filename)
	if err != nil {
		t.Fatalf("Read back batch: %v", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	var got []string
	for sc.Scan() {
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		got = append(got, l.URL)
	}
	if len(got) != n {
		t.Fatalf("expected %d lines, got %d", n, len(got))
	}
	for i, url := range got {
		want := fmt.Sprintf("https://example.test/page%02d", i)
		if url != want {
			t.Errorf("line %d: url = %q, want %q (batch not in record order)", i, url, want)
		}
	}
}
