// Package tools implements C5 ToolRegistry: a read-only-after-startup map
// of named callables, their JSON-schema descriptors, and the teaching
// system prompt that instructs models lacking native function-calling to
// emit a JSON tool-call envelope.
//
// Grounded on the teacher's MCP tool surface
// (modelcontextprotocol/go-sdk usage elsewhere in the pack, no longer a
// dependency here) for the descriptor shape, generalised to use
// google/jsonschema-go's *jsonschema.Schema directly as C5's parameter
// type, since that library is already part of this module's dependency
// graph and needs no adaptation.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"text/template"

	"github.com/google/jsonschema-go/jsonschema"
)

// Handler executes a tool call and returns its result (any JSON-marshalable
// value) or an error. Call returns execution errors unchanged; the
// interrogator loop converts them to string results per spec.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Descriptor is the machine-readable shape of a registered tool.
type Descriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

type entry struct {
	desc    Descriptor
	handler Handler
}

// Registry is read-only after Register calls complete at startup; Call is
// safe for concurrent use across requests.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool. Registering a name twice replaces the prior entry;
// callers are expected to do all registration before serving traffic.
func (r *Registry) Register(desc Descriptor, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[desc.Name] = entry{desc: desc, handler: h}
}

// Descriptors returns the full list of registered tool descriptors, in no
// particular order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	return out
}

// Call dispatches args to the named tool's handler.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tools: no such tool %q", name)
	}
	return e.handler(ctx, args)
}

const teachingPromptTmpl = `You can use tools to help answer the user. When you need to use one or more
tools, respond with *only* a single JSON object of this exact shape and
nothing else:

{"intention": "USE_TOOLS", "thoughts": "<your brief reasoning>", "tools": [{"name": "<tool name>", "arguments": {...}, "id": "<a short unique id>"}]}

Available tools:
{{.DescriptorsJSON}}
{{if .PinnedTool}}
You MUST invoke the tool "{{.PinnedTool}}" in this turn.
{{end}}`

// SystemPrompt renders the teaching system prompt described in spec.md
// §4.5: bit-identical across requests except for the embedded descriptor
// JSON and an optional pinned-tool enforcement clause.
func (r *Registry) SystemPrompt(pinnedTool string) (string, error) {
	descs := r.Descriptors()
	b, err := json.Marshal(descs)
	if err != nil {
		return "", fmt.Errorf("tools: marshal descriptors: %w", err)
	}

	tmpl, err := template.New("teaching").Parse(teachingPromptTmpl)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = tmpl.Execute(&out, struct {
		DescriptorsJSON string
		PinnedTool      string
	}{DescriptorsJSON: string(b), PinnedTool: pinnedTool})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
