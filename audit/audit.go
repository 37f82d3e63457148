// Package audit provides a lightweight, SQLite-backed audit trail for
// operation-level calls (tool invocations, interrogator turns, cruncher
// batches). Entries can be written synchronously or buffered and flushed
// in the background.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hazyhaar/reader/idgen"
	"github.com/hazyhaar/reader/kit"
)

// Entry is one audit record.
type Entry struct {
	EntryID      string
	Timestamp    int64
	Action       string
	Parameters   string
	Result       string
	Status       string // "success" or "error"; filled in by Log if empty
	Transport    string
	UserID       string
	RequestID    string
	Error        string // non-empty marks the entry as a failure
	ErrorMessage string
	DurationMs   int64
}

const batchThreshold = 32

// SQLiteLogger writes Entry rows to an `audit_log` table, synchronously or
// via a background flusher for LogAsync calls.
type SQLiteLogger struct {
	db    *sql.DB
	newID idgen.Generator

	mu      sync.Mutex
	buf     []*Entry
	flushCh chan struct{}
	done    chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

// Option configures a SQLiteLogger.
type Option func(*SQLiteLogger)

// WithIDGenerator overrides the entry ID generator. Default: idgen.Default.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *SQLiteLogger) { l.newID = gen }
}

// NewSQLiteLogger creates a logger backed by db. Call Init before first use.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{
		db:      db,
		newID:   idgen.Default,
		flushCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	l.wg.Add(1)
	go l.loop()
	return l
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	entry_id       TEXT PRIMARY KEY,
	timestamp      INTEGER NOT NULL,
	action         TEXT NOT NULL,
	parameters     TEXT,
	result         TEXT,
	status         TEXT NOT NULL,
	transport      TEXT,
	user_id        TEXT,
	request_id     TEXT,
	error_message  TEXT,
	duration_ms    INTEGER
);
CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action, timestamp DESC);
`

// Init creates the audit_log table if it doesn't exist.
func (l *SQLiteLogger) Init() error {
	_, err := l.db.Exec(schema)
	return err
}

func (l *SQLiteLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
	if e.ErrorMessage == "" {
		e.ErrorMessage = e.Error
	}
}

// Log writes an entry synchronously, filling in defaults in place.
func (l *SQLiteLogger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	return l.insert(ctx, e)
}

func (l *SQLiteLogger) insert(ctx context.Context, e *Entry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			entry_id, timestamp, action, parameters, result, status,
			transport, user_id, request_id, error_message, duration_ms
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp, e.Action, e.Parameters, e.Result, e.Status,
		e.Transport, e.UserID, e.RequestID, e.ErrorMessage, e.DurationMs)
	return err
}

// LogAsync fills defaults and queues the entry for background flush.
// The entry is flushed when the buffer reaches batchThreshold, on the
// background loop's 50 ms tick, or on Close.
func (l *SQLiteLogger) LogAsync(e *Entry) {
	l.fillDefaults(e)

	l.mu.Lock()
	l.buf = append(l.buf, e)
	n := len(l.buf)
	l.mu.Unlock()

	if n >= batchThreshold {
		select {
		case l.flushCh <- struct{}{}:
		default:
		}
	}
}

func (l *SQLiteLogger) loop() {
	defer l.wg.Done()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-l.flushCh:
			l.flush()
		case <-ticker.C:
			l.flush()
		case <-l.done:
			l.flush()
			return
		}
	}
}

func (l *SQLiteLogger) flush() {
	l.mu.Lock()
	pending := l.buf
	l.buf = nil
	l.mu.Unlock()

	for _, e := range pending {
		if err := l.insert(context.Background(), e); err != nil {
			continue
		}
	}
}

// Close flushes any buffered entries and stops the background flusher.
func (l *SQLiteLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()
	return nil
}

// Endpoint is the generic request/response handler shape wrapped by Middleware.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint, recording one audit entry per call with
// user/transport/request metadata pulled from the kit context keys.
func Middleware(logger *SQLiteLogger, action string) func(Endpoint) Endpoint {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			entry := &Entry{
				Action:     action,
				Parameters: marshalParams(req),
				UserID:     kit.GetUserID(ctx),
				Transport:  kit.GetTransport(ctx),
				RequestID:  kit.GetRequestID(ctx),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Result = fmt.Sprintf("%v", resp)
			}
			logger.LogAsync(entry)

			return resp, err
		}
	}
}

func marshalParams(req any) string {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Sprintf("%v", req)
	}
	return string(b)
}
