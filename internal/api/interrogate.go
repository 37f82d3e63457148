package api

import (
	"net/http"
	"strings"

	"github.com/hazyhaar/reader/chunk"
	"github.com/hazyhaar/reader/internal/errs"
	"github.com/hazyhaar/reader/internal/format"
	"github.com/hazyhaar/reader/internal/interrogator"
	"github.com/hazyhaar/reader/internal/llmclient"
)

const (
	defaultModel          = "gpt-3.5-turbo"
	maxQuestionTokens     = 2048
	defaultMaxAddlTurns   = 5
	defaultChatMaxTokens  = 4096
)

// handleInterrogate implements spec.md §6's interrogate endpoint: fetch a
// page, ask one question about it, return either a plain-text answer or an
// SSE stream of the interrogator's event vocabulary.
func (s *Server) handleInterrogate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	target, err := validatedURL(q.Get("url"))
	if err != nil {
		writeError(w, err)
		return
	}

	question := strings.TrimSpace(q.Get("question"))
	if question == "" {
		writeError(w, errs.New(errs.InvalidArgument, "missing question parameter"))
		return
	}
	if n := chunk.EstimateTokens(question); n > maxQuestionTokens {
		writeError(w, errs.New(errs.InvalidArgument, "question exceeds 2048 token limit"))
		return
	}

	model := q.Get("model")
	if model == "" {
		model = defaultModel
	}

	page, err := s.fetchPage(r.Context(), target.String(), format.ModeDefault, r.Header)
	if err != nil {
		writeError(w, err)
		return
	}

	messages := []llmclient.Message{
		{Role: "system", Content: "Answer the user's question using only the page content below."},
		{Role: "user", Content: "Page content:\n\n" + page.Content + "\n\nQuestion: " + question},
	}

	opts := interrogator.Options{
		Model:               model,
		MaxAdditionalTurns:  0,
		MaxTokens:           defaultChatMaxTokens,
		Client:              s.LLM,
	}

	events := interrogator.Chat(r.Context(), opts, messages)

	if wantsSSE(r) {
		s.streamInterrogation(w, events)
		return
	}

	var answer strings.Builder
	for ev := range events {
		switch ev.Kind {
		case interrogator.EventChunk:
			answer.WriteString(ev.Text)
		case interrogator.EventError:
			writeError(w, errs.Wrap(errs.UpstreamModelFailure, "interrogate", ev.Err))
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(answer.String() + "\n"))
}

func (s *Server) streamInterrogation(w http.ResponseWriter, events <-chan interrogator.Event) {
	sw, ok := newSSEWriter(w)
	if !ok {
		writeError(w, errs.New(errs.Internal, "response writer does not support streaming"))
		return
	}
	for ev := range events {
		if ev.Kind == interrogator.EventError {
			sw.send("error", errs.ToEnvelope(ev.Err))
			return
		}
		sw.send(string(ev.Kind), ev)
	}
}

func wantsSSE(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
