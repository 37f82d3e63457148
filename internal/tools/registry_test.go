package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func TestRegisterAndCall(t *testing.T) {
	r := New()
	r.Register(Descriptor{Name: "echo", Description: "echoes input"}, func(ctx context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	})

	got, err := r.Call(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "hi" {
		t.Errorf("got %v, want %q", got, "hi")
	}
}

func TestCall_UnknownTool(t *testing.T) {
	r := New()
	if _, err := r.Call(context.Background(), "missing", nil); err == nil {
		t.Error("expected an error calling an unregistered tool")
	}
}

func TestRegister_ReplacesExisting(t *testing.T) {
	r := New()
	r.Register(Descriptor{Name: "echo"}, func(ctx context.Context, args map[string]any) (any, error) {
		return "v1", nil
	})
	r.Register(Descriptor{Name: "echo"}, func(ctx context.Context, args map[string]any) (any, error) {
		return "v2", nil
	})

	if descs := r.Descriptors(); len(descs) != 1 {
		t.Fatalf("expected a single descriptor after re-registering the same name, got %d", len(descs))
	}
	got, err := r.Call(context.Background(), "echo", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "v2" {
		t.Errorf("expected the second registration to win, got %v", got)
	}
}

func TestDescriptors(t *testing.T) {
	r := New()
	r.Register(Descriptor{Name: "browse", Description: "fetch a page"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})
	r.Register(Descriptor{Name: "searchWeb", Description: "search the web"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})

	descs := r.Descriptors()
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}
	names := map[string]bool{}
	for _, d := range descs {
		names[d.Name] = true
	}
	if !names["browse"] || !names["searchWeb"] {
		t.Errorf("unexpected descriptor names: %+v", descs)
	}
}

func TestSystemPrompt_IncludesDescriptorsAndPinnedTool(t *testing.T) {
	r := New()
	r.Register(Descriptor{
		Name:        "browse",
		Description: "fetch a page",
		Parameters: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"url": {Type: "string"}},
			Required:   []string{"url"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) { return nil, nil })

	prompt, err := r.SystemPrompt("")
	if err != nil {
		t.Fatalf("SystemPrompt: %v", err)
	}
	if !strings.Contains(prompt, "USE_TOOLS") {
		t.Error("expected the teaching envelope shape in the prompt")
	}
	if !strings.Contains(prompt, `"browse"`) {
		t.Error("expected the browse descriptor to be embedded in the prompt")
	}
	if strings.Contains(prompt, "You MUST invoke") {
		t.Error("expected no pinned-tool clause when none is given")
	}

	pinned, err := r.SystemPrompt("browse")
	if err != nil {
		t.Fatalf("SystemPrompt(pinned): %v", err)
	}
	if !strings.Contains(pinned, `You MUST invoke the tool "browse"`) {
		t.Error("expected the pinned-tool enforcement clause")
	}
}

func TestSystemPrompt_Empty(t *testing.T) {
	r := New()
	prompt, err := r.SystemPrompt("")
	if err != nil {
		t.Fatalf("SystemPrompt: %v", err)
	}
	if !strings.Contains(prompt, "[]") {
		t.Errorf("expected an empty descriptor array with no tools registered, got %q", prompt)
	}
}
