package api

import (
	"net/http"
	"time"

	"github.com/hazyhaar/reader/kit"
	"github.com/hazyhaar/reader/observability"
)

// auditMiddleware records one audit entry and one duration metric per
// request, keyed by the trace ID shield.TraceID already put in the
// context. Both collaborators are optional; a nil Audit or Metrics on the
// Server disables the corresponding recording with no other effect.
func (s *Server) auditMiddleware(next http.Handler) http.Handler {
	if s.Audit == nil && s.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		dur := time.Since(start)

		if s.Metrics != nil {
			s.Metrics.RecordSimple("api.request.duration_ms", float64(dur.Milliseconds()), "milliseconds")
		}
		if s.Audit != nil {
			entry := s.Audit.NewAuditEntry("api", r.URL.Path, r.URL.Query(), nil, nil, dur)
			entry.RequestID = kit.GetTraceID(r.Context())
			entry.Status = auditStatus(rec.status)
			s.Audit.LogAsync(entry)
		}
	})
}

func auditStatus(code int) string {
	if code >= 500 {
		return "error"
	}
	if code >= 400 {
		return "rejected"
	}
	return "success"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
