package cruncher

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hazyhaar/reader/internal/errs"
	"github.com/hazyhaar/reader/internal/format"
	"github.com/hazyhaar/reader/internal/objectstore"
	"github.com/hazyhaar/reader/internal/snapshot"
	"github.com/hazyhaar/reader/internal/store"
)

// maxInFlight bounds concurrent fetch+format tasks per spec.md §4.7's
// "≤100 concurrent fetches via a semaphore".
const maxInFlight = 100

// EventKind classifies one Event on the progress channel.
type EventKind string

const (
	EventStart EventKind = "start"
	EventFile  EventKind = "file"
	EventEnd   EventKind = "end"
)

// Event is one progress notification, forwarded to the HTTP layer as an
// SSE "data" frame: one per filename plus start/end sentinels.
type Event struct {
	Kind     EventKind
	Filename string
}

// Config configures a Cruncher.
type Config struct {
	Prefix    string // object-storage key prefix, e.g. "crunch"
	Rev       int    // schema revision, appears as "r<rev>" in filenames
	TMinus    int    // days to look back from today; default 31
	BatchSize int    // records per batch file; default 10000
}

func (c *Config) defaults() {
	if c.TMinus <= 0 {
		c.TMinus = 31
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10000
	}
}

// Cruncher archives CrawledRecords into day-partitioned .jsonl files.
type Cruncher struct {
	cfg   Config
	store *store.Store
	obj   *objectstore.Store
	fmt   *format.Formatter
}

// New builds a Cruncher.
func New(cfg Config, st *store.Store, obj *objectstore.Store, formatter *format.Formatter) *Cruncher {
	cfg.defaults()
	return &Cruncher{cfg: cfg, store: st, obj: obj, fmt: formatter}
}

// line is one entry of the output .jsonl archive.
type line struct {
	URL     string `json:"url"`
	HTML    string `json:"html"`
	Content string `json:"content"`
}

// Crunch iterates days from now-TMinus up to (excluding) today, archiving
// each day's CrawledRecords in batches of cfg.BatchSize. Progress events are
// sent to progress, which Crunch closes before returning.
func (c *Cruncher) Crunch(ctx context.Context, progress chan<- Event) error {
	defer close(progress)

	sendEvent(ctx, progress, Event{Kind: EventStart})

	today := time.Now().UTC().Truncate(24 * time.Hour)
	day := today.AddDate(0, 0, -c.cfg.TMinus)

	for day.Before(today) {
		if err := c.crunchDay(ctx, day, progress); err != nil {
			return fmt.Errorf("cruncher: day %s: %w", day.Format("2006-01-02"), err)
		}
		day = day.AddDate(0, 0, 1)
	}

	sendEvent(ctx, progress, Event{Kind: EventEnd})
	return nil
}

func (c *Cruncher) crunchDay(ctx context.Context, day time.Time, progress chan<- Event) error {
	nextDay := day.AddDate(0, 0, 1)

	for offset := 0; ; offset += c.cfg.BatchSize {
		records, err := c.store.RecordsInRange(ctx, day, nextDay, offset, c.cfg.BatchSize)
		if err != nil {
			return errs.Wrap(errs.StorageFailure, "query records", err)
		}
		if len(records) == 0 {
			return nil // advance day, reset counter (the caller's loop does both)
		}

		filename := batchFilename(c.cfg.Prefix, c.cfg.Rev, day, offset)

		exists, err := c.obj.Exists(ctx, filename)
		if err != nil {
			return errs.Wrap(errs.StorageFailure, "check existing batch", err)
		}
		if exists {
			continue // idempotence: already archived, move to the next offset
		}

		if err := c.writeBatch(ctx, filename, records); err != nil {
			return err
		}
		sendEvent(ctx, progress, Event{Kind: EventFile, Filename: filename})
	}
}

// batchFilename implements spec.md §4.7's
// "<prefix>/r<rev>/YYYY-MM-DD-<offset-label>.jsonl", where offset-label is
// "00000" for offset 0, else the plain decimal offset.
func batchFilename(prefix string, rev int, day time.Time, offset int) string {
	label := "00000"
	if offset != 0 {
		label = fmt.Sprintf("%d", offset)
	}
	return fmt.Sprintf("%s/r%d/%s-%s.jsonl", prefix, rev, day.Format("2006-01-02"), label)
}

// writeBatch fetches, formats, and appends every record to a temp file
// under a bounded semaphore, then uploads the completed file.
func (c *Cruncher) writeBatch(ctx context.Context, filename string, records []store.CrawledRecord) error {
	tmp, err := os.CreateTemp("", "cruncher-batch-*.jsonl")
	if err != nil {
		return errs.Wrap(errs.Internal, "create temp file", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	w := bufio.NewWriter(tmp)

	// Fetches run concurrently, but results land in a slot indexed by the
	// record's position so the written .jsonl preserves RecordsInRange's
	// createdAt order regardless of which fetch finishes first.
	lines := make([][]byte, len(records))

	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup

	for i, rec := range records {
		i, rec := i, rec
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			l, err := c.formatRecord(ctx, rec)
			if err != nil {
				// Snapshot-parse failures are logged and the record is
				// skipped; the batch continues (spec.md §7).
				slog.Warn("cruncher: skipping record", "record", rec.ID, "error", err)
				return
			}

			b, err := json.Marshal(l)
			if err != nil {
				return
			}
			lines[i] = append(b, '\n')
		}()
	}
	wg.Wait()

	for _, b := range lines {
		if b == nil {
			continue
		}
		if _, err := w.Write(b); err != nil {
			return errs.Wrap(errs.StorageFailure, "write batch", err)
		}
	}

	if err := w.Flush(); err != nil {
		return errs.Wrap(errs.Internal, "flush batch", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.Internal, "close batch", err)
	}

	f, err := os.Open(tmp.Name())
	if err != nil {
		return errs.Wrap(errs.Internal, "reopen batch", err)
	}
	defer f.Close()

	_, err = c.obj.Upload(ctx, &objectstore.UploadRequest{
		ObjectName:  filename,
		Content:     f,
		ContentType: "application/jsonl",
	})
	if err != nil {
		return errs.Wrap(errs.StorageFailure, "upload batch", err)
	}
	return nil
}

func (c *Cruncher) formatRecord(ctx context.Context, rec store.CrawledRecord) (line, error) {
	raw, err := c.obj.Read(ctx, rec.SnapshotPath)
	if err != nil {
		return line{}, fmt.Errorf("cruncher: read snapshot %s: %w", rec.SnapshotPath, err)
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return line{}, fmt.Errorf("cruncher: parse snapshot %s: %w", rec.SnapshotPath, err)
	}

	page, err := c.fmt.FormatSnapshot(format.ModeDefault, snap, "")
	if err != nil {
		return line{}, fmt.Errorf("cruncher: format %s: %w", rec.SnapshotPath, err)
	}
	if page.Content == "" {
		page, err = c.fmt.FormatSnapshot(format.ModeMarkdown, snap, "")
		if err != nil {
			return line{}, fmt.Errorf("cruncher: format markdown fallback %s: %w", rec.SnapshotPath, err)
		}
	}

	return line{URL: snap.Href, HTML: snap.HTML, Content: page.Content}, nil
}

func sendEvent(ctx context.Context, out chan<- Event, ev Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
