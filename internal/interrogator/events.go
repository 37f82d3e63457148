// Package interrogator implements C4 InterrogatorLoop: a multi-turn
// streaming LLM driver that parses the model's output through C6's
// incremental JSON parser, detects tool-call intent (native or
// pseudo-function-calling), dispatches tools via C5, and re-enters the
// loop until completion.
//
// The delta-accumulation-then-flush shape (stream -> per-turn state ->
// emit events) is grounded on haowjy-meridian's
// llm.TurnExecutor/BlockAccumulator pair, adapted from that file's
// multi-client SSE broadcast + database persistence down to a single
// output channel per Chat call — C4 has exactly one consumer per turn.
package interrogator

import "github.com/hazyhaar/reader/internal/llmclient"

// EventKind is one of the event vocabulary entries from spec.md §4.4.
type EventKind string

const (
	EventChunk         EventKind = "chunk"
	EventN1            EventKind = "n1"
	EventN2            EventKind = "n2"
	EventSnapshot      EventKind = "snapshot"
	EventStructured    EventKind = "structured"
	EventCall          EventKind = "call"
	EventReturn        EventKind = "return"
	EventInjectHistory EventKind = "injectHistory"
	EventHistory       EventKind = "history"
	EventError         EventKind = "error"
)

// ToolCallEvent is the payload of an EventCall.
type ToolCallEvent struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolReturnEvent is the payload of an EventReturn.
type ToolReturnEvent struct {
	ID     string
	Result any
	Error  string // non-empty if the tool call failed
}

// Event is one emission on the stream Chat returns.
type Event struct {
	Kind EventKind

	Text string // chunk text, or the n1/n2 preamble
	JSON any    // snapshot/structured parsed value

	Call   *ToolCallEvent
	Return *ToolReturnEvent

	Message *llmclient.Message   // injectHistory
	History []llmclient.Message // history (terminal)

	Err error // error
}
