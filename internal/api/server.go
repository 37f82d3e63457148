package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/reader/audit"
	"github.com/hazyhaar/reader/auth"
	"github.com/hazyhaar/reader/internal/browserpool"
	"github.com/hazyhaar/reader/internal/cruncher"
	"github.com/hazyhaar/reader/internal/format"
	"github.com/hazyhaar/reader/internal/llmclient"
	"github.com/hazyhaar/reader/internal/objectstore"
	"github.com/hazyhaar/reader/internal/store"
	"github.com/hazyhaar/reader/internal/tools"
	"github.com/hazyhaar/reader/observability"
	"github.com/hazyhaar/reader/shield"
)

// Server holds every collaborator the HTTP surface dispatches to. It owns
// no lifecycle of its own beyond routing: Pool, Cruncher and friends are
// started and stopped by cmd/reader/main.go.
type Server struct {
	Pool      *browserpool.Manager
	Formatter *format.Formatter
	LLM       *llmclient.Client
	Tools     *tools.Registry
	Store     *store.Store
	Objects   *objectstore.Store
	Cruncher  *cruncher.Cruncher

	// Audit and Metrics are optional SQLite-backed observability sinks; nil
	// disables the corresponding recording.
	Audit   *observability.AuditLogger
	Metrics *observability.MetricsManager

	// ToolAudit, if set, is passed to every interrogator.Chat call so each
	// tool invocation gets its own operation-level audit row, distinct from
	// Audit's per-request entries.
	ToolAudit *audit.SQLiteLogger

	// AuthSecret enables the JWT ambient auth surface: when set, auth.HorosClaims
	// are parsed from the "token" cookie or an Authorization Bearer header
	// on every request, and a Bearer header that fails validation is
	// rejected with Unauthenticated. Empty disables auth entirely; this
	// service has no login endpoint of its own and treats tokens as
	// optionally supplied by an upstream caller.
	AuthSecret []byte

	Logger *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// NewRouter builds the chi router with the same middleware ordering the
// teacher's DefaultBOStack uses (head normalisation, security headers, body
// limit, tracing) plus rate limiting backed by the crawl-record database,
// since this API is public-facing like the teacher's FO service.
func (s *Server) NewRouter(db *sql.DB) *chi.Mux {
	r := chi.NewRouter()

	r.Use(shield.HeadToGet)
	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
	r.Use(shield.MaxFormBody(1 << 20))
	r.Use(shield.TraceID)
	r.Use(s.auditMiddleware)
	if len(s.AuthSecret) > 0 {
		r.Use(auth.Middleware(s.AuthSecret))
		r.Use(s.requireValidBearer)
	}
	if db != nil {
		rl := shield.NewRateLimiter(db, "/healthz")
		r.Use(rl.Middleware)
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/interrogate", s.handleInterrogate)
	r.Post("/chatWithReader", s.handleChatWithReader)
	r.Get("/crawl", s.handleCrawl)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}
