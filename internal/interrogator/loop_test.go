package interrogator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazyhaar/reader/internal/llmclient"
	"github.com/hazyhaar/reader/internal/tools"
)

func sseServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func collect(t *testing.T, events <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out collecting events")
		}
	}
}

func TestChat_PlainTextNoTools(t *testing.T) {
	srv := sseServer(t,
		`{"choices":[{"delta":{"content":"The answer "}}]}`,
		`{"choices":[{"delta":{"content":"is 42."}}]}`,
	)
	defer srv.Close()

	opts := Options{Model: "gpt-4", Client: llmclient.New(srv.URL, "")}
	events := Chat(context.Background(), opts, []llmclient.Message{{Role: "user", Content: "hi"}})
	got := collect(t, events, 2*time.Second)

	var text string
	var sawHistory bool
	for _, ev := range got {
		if ev.Kind == EventChunk {
			text += ev.Text
		}
		if ev.Kind == EventHistory {
			sawHistory = true
		}
		if ev.Kind == EventError {
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}
	if text != "The answer is 42." {
		t.Errorf("got text %q", text)
	}
	if !sawHistory {
		t.Error("expected a terminal history event")
	}
}

func TestChat_SoftwareFunctionCalling(t *testing.T) {
	registry := tools.New()
	called := false
	registry.Register(tools.Descriptor{Name: "echo", Description: "echoes input"}, func(ctx context.Context, args map[string]any) (any, error) {
		called = true
		return args["text"], nil
	})

	callCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		callCount++
		if callCount == 1 {
			fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"{\"intention\":\"USE_TOOLS\",\"tools\":[{\"name\":\"echo\",\"id\":\"1\",\"arguments\":{\"text\":\"hi\"}}]}"}}]}`+"\n\n")
		} else {
			fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"done"}}]}`+"\n\n")
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	opts := Options{
		Model:              "gpt-4",
		Client:             llmclient.New(srv.URL, ""),
		Tools:              registry,
		MaxAdditionalTurns: 5,
	}
	events := Chat(context.Background(), opts, []llmclient.Message{{Role: "user", Content: "echo hi"}})
	got := collect(t, events, 2*time.Second)

	if !called {
		t.Error("expected the echo tool to be invoked")
	}
	var sawCall, sawReturn bool
	for _, ev := range got {
		if ev.Kind == EventCall {
			sawCall = true
		}
		if ev.Kind == EventReturn {
			sawReturn = true
		}
	}
	if !sawCall || !sawReturn {
		t.Errorf("expected call and return events, got %+v", got)
	}
	if callCount != 2 {
		t.Errorf("expected 2 model turns, got %d", callCount)
	}
}

func TestChat_SoftwareFunctionCalling_SingleTurnCap(t *testing.T) {
	registry := tools.New()
	called := false
	registry.Register(tools.Descriptor{Name: "browse", Description: "fetches a page"}, func(ctx context.Context, args map[string]any) (any, error) {
		called = true
		return "page content", nil
	})

	callCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		callCount++
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"{\"intention\":\"USE_TOOLS\",\"tools\":[{\"name\":\"browse\",\"id\":\"T1\",\"arguments\":{\"url\":\"https://x.test\"}}]}"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	opts := Options{
		Model:              "gpt-4",
		Client:             llmclient.New(srv.URL, ""),
		Tools:              registry,
		MaxAdditionalTurns: 1,
	}
	events := Chat(context.Background(), opts, []llmclient.Message{{Role: "user", Content: "browse x.test"}})
	got := collect(t, events, 2*time.Second)

	if !called {
		t.Error("expected the browse tool to be invoked even with a single additional turn")
	}
	var sawStructured, sawCall, sawReturn, sawHistory int
	var sawCallID string
	for _, ev := range got {
		switch ev.Kind {
		case EventStructured:
			sawStructured++
		case EventCall:
			sawCall++
			sawCallID = ev.Call.ID
		case EventReturn:
			sawReturn++
		case EventHistory:
			sawHistory++
		}
	}
	if sawStructured != 1 || sawCall != 1 || sawReturn != 1 || sawHistory != 1 {
		t.Fatalf("expected exactly one each of structured/call/return/history, got structured=%d call=%d return=%d history=%d (%+v)",
			sawStructured, sawCall, sawReturn, sawHistory, got)
	}
	if sawCallID != "T1" {
		t.Errorf("expected call id %q, got %q", "T1", sawCallID)
	}
	if callCount != 1 {
		t.Errorf("expected exactly one model turn with maxAdditionalTurns=1, got %d", callCount)
	}
}

func TestChat_StreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := Options{Model: "gpt-4", Client: llmclient.New(srv.URL, "")}
	events := Chat(context.Background(), opts, []llmclient.Message{{Role: "user", Content: "hi"}})
	got := collect(t, events, 2*time.Second)

	if len(got) != 1 || got[0].Kind != EventError {
		t.Fatalf("expected a single error event, got %+v", got)
	}
}

func TestTrimMessages(t *testing.T) {
	msgs := []llmclient.Message{
		{Role: "user", Content: "one two three four five"},
		{Role: "assistant", Content: "six seven eight nine ten"},
		{Role: "user", Content: "eleven"},
	}
	trimmed := trimMessages(msgs, 0)
	if len(trimmed) != 1 || trimmed[0].Content != "eleven" {
		t.Errorf("expected only the last message with zero budget, got %+v", trimmed)
	}

	all := trimMessages(msgs, 1<<20)
	if len(all) != len(msgs) {
		t.Errorf("expected all messages kept with a huge budget, got %d", len(all))
	}
}
