package interrogator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/reader/audit"
	"github.com/hazyhaar/reader/chunk"
	"github.com/hazyhaar/reader/internal/jsonstream"
	"github.com/hazyhaar/reader/internal/llmclient"
	"github.com/hazyhaar/reader/internal/tools"
)

// Options configures one Chat call.
type Options struct {
	Model              string
	MaxAdditionalTurns int // validated 0..50
	WindowTokens       int // total context budget; default 8000
	MaxTokens          int // response token budget, subtracted from window; default 4096
	Temperature        float64
	TopP               float64
	Stop               []string

	// NativeFunctionCalling indicates the model accepts the Tools field of
	// llmclient.Request directly. When false and tools are registered,
	// softwareFC kicks in: the teaching system prompt is prepended and
	// tool-call intent is parsed out of the JSON body instead.
	NativeFunctionCalling bool

	Tools      *tools.Registry
	PinnedTool string

	Client *llmclient.Client

	// Audit, if set, records one operation-level entry per tool call —
	// distinct from internal/api's per-request audit trail, this is the
	// finer-grained "what did the model actually invoke" history.
	Audit *audit.SQLiteLogger
}

func (o *Options) defaults() {
	if o.WindowTokens <= 0 {
		o.WindowTokens = 8000
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	if o.MaxAdditionalTurns < 0 {
		o.MaxAdditionalTurns = 0
	}
	if o.MaxAdditionalTurns > 50 {
		o.MaxAdditionalTurns = 50
	}
}

// Chat implements spec.md §4.4's chat(model, options, initialMessages,
// maxAdditionalTurns) → event stream. The returned channel is closed when
// the loop terminates (normal completion, turn cap, or error).
func Chat(ctx context.Context, opts Options, initialMessages []llmclient.Message) <-chan Event {
	opts.defaults()
	out := make(chan Event)
	go run(ctx, opts, initialMessages, out)
	return out
}

func run(ctx context.Context, opts Options, initialMessages []llmclient.Message, out chan<- Event) {
	defer close(out)

	base := append([]llmclient.Message{}, initialMessages...)
	var tail []llmclient.Message

	turnsLeft := opts.MaxAdditionalTurns

	for {
		budget := opts.WindowTokens - opts.MaxTokens
		if budget < 0 {
			budget = 0
		}
		messages := append(trimMessages(base, budget), tail...)

		softwareFC := false
		var nativeTools []llmclient.ToolDescriptor
		// Tools are offered through the last allowed turn: turnsLeft == 1 must
		// still dispatch a call before the cap ends the loop below, per spec
		// §8 scenario 2 (maxAdditionalTurns=1 still yields one call/return).
		if opts.Tools != nil && turnsLeft >= 1 {
			if opts.NativeFunctionCalling {
				nativeTools = wireTools(opts.Tools)
			} else {
				softwareFC = true
				prompt, err := opts.Tools.SystemPrompt(opts.PinnedTool)
				if err == nil {
					messages = append([]llmclient.Message{{Role: "system", Content: prompt}}, messages...)
				}
			}
		}

		req := llmclient.Request{
			Model:       opts.Model,
			Messages:    messages,
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			Stop:        opts.Stop,
			Tools:       nativeTools,
		}

		deltas, err := opts.Client.StreamChat(ctx, req)
		if err != nil {
			emit(ctx, out, Event{Kind: EventError, Err: fmt.Errorf("interrogator: open stream: %w", err)})
			return
		}

		js := jsonstream.New()
		var rawText string
		nativeCalls := map[int]*nativeCallAccum{}
		var nativeOrder []int

		streamErr := error(nil)
		for d := range deltas {
			if d.Err != nil {
				streamErr = d.Err
				break
			}
			if d.Done {
				break
			}
			if d.Content != "" {
				rawText += d.Content
				if !emit(ctx, out, Event{Kind: EventChunk, Text: d.Content}) {
					return
				}
				for _, ev := range js.Write(d.Content) {
					if !emitStreamEvent(ctx, out, ev) {
						return
					}
				}
			}
			for _, tc := range d.ToolCalls {
				acc, ok := nativeCalls[tc.Index]
				if !ok {
					acc = &nativeCallAccum{}
					nativeCalls[tc.Index] = acc
					nativeOrder = append(nativeOrder, tc.Index)
				}
				if tc.ID != "" {
					acc.id = tc.ID
				}
				acc.name += tc.Name
				acc.args += tc.Arguments
			}
		}

		if streamErr != nil {
			emit(ctx, out, Event{Kind: EventError, Err: fmt.Errorf("interrogator: stream: %w", streamErr)})
			return
		}

		finalEvents := js.Close()
		var finalValue any
		for _, ev := range finalEvents {
			if ev.Kind == jsonstream.EventFinal {
				finalValue = ev.Value
			}
		}

		toolCalled := false

		// Step 5: native function-call events, handled without the
		// assistant-JSON push (the native channel already records the call).
		if len(nativeOrder) > 0 {
			assistantMsg := llmclient.Message{Role: "assistant", Content: rawText}
			base = append(base, assistantMsg)
			for _, idx := range nativeOrder {
				acc := nativeCalls[idx]
				args, _ := jsonstream.ParseLenient(acc.args)
				argMap, _ := args.(map[string]any)
				toolCalled = true
				if !dispatchTool(ctx, opts, out, acc.id, acc.name, argMap, &tail) {
					return
				}
			}
		} else if softwareFC && finalValue != nil {
			// Step 4: pseudo-function-calling via JSON envelope.
			obj, _ := finalValue.(map[string]any)
			if !emit(ctx, out, Event{Kind: EventStructured, JSON: finalValue}) {
				return
			}
			if intention, _ := obj["intention"].(string); intention == "USE_TOOLS" {
				if rawTools, ok := obj["tools"].([]any); ok {
					b, _ := json.Marshal(finalValue)
					tail = append(tail, llmclient.Message{Role: "assistant", Content: string(b)})
					for _, t := range rawTools {
						tm, ok := t.(map[string]any)
						if !ok {
							continue
						}
						name, _ := tm["name"].(string)
						id, _ := tm["id"].(string)
						argMap, _ := tm["arguments"].(map[string]any)
						toolCalled = true
						if !dispatchTool(ctx, opts, out, id, name, argMap, &tail) {
							return
						}
					}
				}
			}
		} else if finalValue != nil {
			if !emit(ctx, out, Event{Kind: EventStructured, JSON: finalValue}) {
				return
			}
		}

		if !toolCalled {
			if !emit(ctx, out, Event{Kind: EventHistory, History: append(append([]llmclient.Message{}, base...), tail...)}) {
				return
			}
			return
		}

		turnsLeft--
		if turnsLeft <= 0 {
			emit(ctx, out, Event{Kind: EventHistory, History: append(append([]llmclient.Message{}, base...), tail...)})
			return
		}
	}
}

type nativeCallAccum struct {
	id   string
	name string
	args string
}

// dispatchTool executes one tool call and emits call/return/injectHistory.
// Returns false if the consumer disconnected.
func dispatchTool(ctx context.Context, opts Options, out chan<- Event, id, name string, args map[string]any, tail *[]llmclient.Message) bool {
	if !emit(ctx, out, Event{Kind: EventCall, Call: &ToolCallEvent{ID: id, Name: name, Arguments: args}}) {
		return false
	}

	start := time.Now()
	result, err := opts.Tools.Call(ctx, name, args)
	duration := time.Since(start)
	ret := &ToolReturnEvent{ID: id, Result: result}
	resultText := fmt.Sprintf("%v", result)
	if err != nil {
		ret.Error = err.Error()
		resultText = err.Error()
	}
	if opts.Audit != nil {
		argsJSON, _ := json.Marshal(args)
		entry := &audit.Entry{
			Action:     "interrogator.tool." + name,
			Parameters: string(argsJSON),
			Result:     resultText,
			DurationMs: duration.Milliseconds(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		opts.Audit.LogAsync(entry)
	}
	if !emit(ctx, out, Event{Kind: EventReturn, Return: ret}) {
		return false
	}

	var msg llmclient.Message
	if id != "" {
		msg = llmclient.Message{Role: "tool", Content: resultText, ToolCallID: id}
	} else {
		msg = llmclient.Message{Role: "function", Content: resultText, Name: name}
	}
	*tail = append(*tail, msg)
	return emit(ctx, out, Event{Kind: EventInjectHistory, Message: &msg})
}

// emit sends ev on out, returning false if ctx was cancelled mid-send.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func emitStreamEvent(ctx context.Context, out chan<- Event, ev jsonstream.Event) bool {
	switch ev.Kind {
	case jsonstream.EventN1:
		return emit(ctx, out, Event{Kind: EventN1, Text: ev.Preamble})
	case jsonstream.EventN2:
		return emit(ctx, out, Event{Kind: EventN2, Text: ev.Preamble})
	case jsonstream.EventSnapshot:
		return emit(ctx, out, Event{Kind: EventSnapshot, JSON: ev.Value})
	}
	return true
}

// trimMessages drops oldest messages until the estimated token total fits
// budget, always keeping at least the last message. Uses chunk.EstimateTokens
// per spec.md §4.4 step 1's "trim(baseMessages, windowSize - maxTokens)".
func trimMessages(msgs []llmclient.Message, budget int) []llmclient.Message {
	if budget <= 0 || len(msgs) == 0 {
		if len(msgs) > 0 {
			return msgs[len(msgs)-1:]
		}
		return nil
	}
	total := 0
	for _, m := range msgs {
		total += chunk.EstimateTokens(m.Content)
	}
	start := 0
	for total > budget && start < len(msgs)-1 {
		total -= chunk.EstimateTokens(msgs[start].Content)
		start++
	}
	return msgs[start:]
}

func wireTools(r *tools.Registry) []llmclient.ToolDescriptor {
	descs := r.Descriptors()
	out := make([]llmclient.ToolDescriptor, 0, len(descs))
	for _, d := range descs {
		out = append(out, llmclient.ToolDescriptor{
			Type: "function",
			Function: map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  d.Parameters,
			},
		})
	}
	return out
}
