package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazyhaar/reader/auth"
)

func testAuthSecret() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func withAuthChain(s *Server, next http.Handler) http.Handler {
	return auth.Middleware(s.AuthSecret)(s.requireValidBearer(next))
}

func TestRequireValidBearer_NoToken(t *testing.T) {
	s := &Server{AuthSecret: testAuthSecret()}
	called := false
	h := withAuthChain(s, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("expected the request to reach the handler when no token is presented")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d", rec.Code)
	}
}

func TestRequireValidBearer_ValidToken(t *testing.T) {
	s := &Server{AuthSecret: testAuthSecret()}
	tok, err := auth.GenerateToken(s.AuthSecret, &auth.HorosClaims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	called := false
	h := withAuthChain(s, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("expected the request to reach the handler with a valid token")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d", rec.Code)
	}
}

func TestRequireValidBearer_InvalidToken(t *testing.T) {
	s := &Server{AuthSecret: testAuthSecret()}
	called := false
	h := withAuthChain(s, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer garbage.not.a.jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Error("expected the handler not to run for an invalid bearer token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireValidBearer_Disabled(t *testing.T) {
	s := &Server{} // no AuthSecret configured
	called := false
	h := s.requireValidBearer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer garbage.not.a.jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("expected requireValidBearer to be a no-op when AuthSecret is unset")
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", ""}, // case-sensitive per RFC 6750
		{"Basic abc123", ""},
		{"", ""},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		if got := bearerToken(req); got != c.want {
			t.Errorf("bearerToken(%q) = %q, want %q", c.header, got, c.want)
		}
	}
}
