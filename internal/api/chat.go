package api

import (
	"encoding/json"
	"net/http"

	"github.com/hazyhaar/reader/internal/errs"
	"github.com/hazyhaar/reader/internal/interrogator"
	"github.com/hazyhaar/reader/internal/llmclient"
)

// chatRequest is the standard chat-completions-shaped body spec.md §6
// describes for chatWithReader. Stream is always forced true regardless of
// what the caller sends.
type chatRequest struct {
	Model              string             `json:"model"`
	MaxAdditionalTurns *int               `json:"maxAdditionalTurns"`
	Messages           []llmclient.Message `json:"messages"`
	System             string             `json:"system"`
	MaxTokens          int                `json:"max_tokens"`
	Temperature        float64            `json:"temperature"`
	TopP               float64            `json:"top_p"`
	Stop               []string           `json:"stop"`
	Functions          []json.RawMessage  `json:"functions"`
}

// handleChatWithReader implements spec.md §6's chatWithReader endpoint: a
// multi-turn chat completion driven by C4's InterrogatorLoop, with the
// reader's built-in tools (browse, searchWeb) available for the model to
// call. The response is always an SSE stream, per the "stream forced true"
// rule.
func (s *Server) handleChatWithReader(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.InvalidArgument, "decode request body", err))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, errs.New(errs.InvalidArgument, "messages must be non-empty"))
		return
	}

	model := req.Model
	if model == "" {
		model = defaultModel
	}

	maxTurns := defaultMaxAddlTurns
	if req.MaxAdditionalTurns != nil {
		maxTurns = *req.MaxAdditionalTurns
	}
	if maxTurns < 0 || maxTurns > 50 {
		writeError(w, errs.New(errs.InvalidArgument, "maxAdditionalTurns must be in [0, 50]"))
		return
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultChatMaxTokens
	}

	messages := req.Messages
	if req.System != "" {
		messages = append([]llmclient.Message{{Role: "system", Content: req.System}}, messages...)
	}

	opts := interrogator.Options{
		Model:                 model,
		MaxAdditionalTurns:    maxTurns,
		MaxTokens:             maxTokens,
		Temperature:           req.Temperature,
		TopP:                  req.TopP,
		Stop:                  req.Stop,
		NativeFunctionCalling: len(req.Functions) > 0,
		Tools:                 s.Tools,
		Client:                s.LLM,
		Audit:                 s.ToolAudit,
	}

	events := interrogator.Chat(r.Context(), opts, messages)
	s.streamChatCompletion(w, model, events)
}

// openAIChunk is the minimal chat-completion-chunk shape this service
// speaks for plain content deltas, alongside the augmented interrogator
// events (structured/call/return/injectHistory/history) emitted as their
// own named SSE events.
type openAIChunk struct {
	Object  string            `json:"object"`
	Model   string            `json:"model"`
	Choices []openAIChoice    `json:"choices"`
}

type openAIChoice struct {
	Index int               `json:"index"`
	Delta openAIChoiceDelta `json:"delta"`
}

type openAIChoiceDelta struct {
	Content string `json:"content,omitempty"`
}

func (s *Server) streamChatCompletion(w http.ResponseWriter, model string, events <-chan interrogator.Event) {
	sw, ok := newSSEWriter(w)
	if !ok {
		writeError(w, errs.New(errs.Internal, "response writer does not support streaming"))
		return
	}

	for ev := range events {
		switch ev.Kind {
		case interrogator.EventChunk:
			sw.send("message", openAIChunk{
				Object: "chat.completion.chunk",
				Model:  model,
				Choices: []openAIChoice{{Delta: openAIChoiceDelta{Content: ev.Text}}},
			})
		case interrogator.EventError:
			sw.send("error", errs.ToEnvelope(ev.Err))
			return
		default:
			sw.send(string(ev.Kind), ev)
		}
	}
	sw.send("done", struct{}{})
}
