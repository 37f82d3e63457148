package jsonstream

import "testing"

func TestStream_N1Preamble(t *testing.T) {
	s := New()
	events := s.Write(`hello {"a":1}`)
	var gotN1 bool
	for _, e := range events {
		if e.Kind == EventN1 {
			gotN1 = true
			if e.Preamble != "hello " {
				t.Fatalf("preamble = %q, want %q", e.Preamble, "hello ")
			}
		}
	}
	if !gotN1 {
		t.Fatal("expected n1 event")
	}
}

func TestStream_SnapshotGrows(t *testing.T) {
	s := New()
	s.Write(`{"a":1`)
	events := s.Write(`,"b":2}`)

	var snap map[string]any
	for _, e := range events {
		if e.Kind == EventSnapshot {
			snap = e.Value.(map[string]any)
		}
	}
	if snap == nil {
		t.Fatal("expected snapshot event")
	}
	if snap["a"] != float64(1) || snap["b"] != float64(2) {
		t.Fatalf("snapshot = %v", snap)
	}
}

func TestStream_AbruptTermination(t *testing.T) {
	// Spec scenario 6: `{"intention":"USE_TOOLS","tools":[{"name":"x"` then EOF.
	s := New()
	s.Write(`{"intention":"USE_TOOLS","tools":[{"name":"x"`)
	events := s.Close()
	if len(events) != 1 || events[0].Kind != EventFinal {
		t.Fatalf("expected exactly one final event, got %v", events)
	}

	obj, ok := events[0].Value.(map[string]any)
	if !ok {
		t.Fatalf("final value not an object: %#v", events[0].Value)
	}
	if obj["intention"] != "USE_TOOLS" {
		t.Fatalf("intention = %v", obj["intention"])
	}
	tools, ok := obj["tools"].([]any)
	if !ok || len(tools) != 1 {
		t.Fatalf("tools = %#v", obj["tools"])
	}
	tool, ok := tools[0].(map[string]any)
	if !ok || tool["name"] != "x" {
		t.Fatalf("tools[0] = %#v", tools[0])
	}
}

func TestStream_FinalOnlyOnce(t *testing.T) {
	s := New()
	s.Write(`{"a":1}`)
	first := s.Close()
	second := s.Close()
	if len(first) != 1 {
		t.Fatalf("first close = %v", first)
	}
	if len(second) != 0 {
		t.Fatalf("second close should be empty, got %v", second)
	}
}

func TestStream_NoOpeningBraceNeverFinal(t *testing.T) {
	s := New()
	s.Write("just some prose, no json here")
	if events := s.Close(); len(events) != 0 {
		t.Fatalf("expected no final event, got %v", events)
	}
}

func TestStream_CasingVariants(t *testing.T) {
	s := New()
	s.Write(`{"ok":True,"bad":FALSE}`)
	events := s.Close()
	if len(events) != 1 {
		t.Fatalf("expected final event, got %v", events)
	}
	obj := events[0].Value.(map[string]any)
	if obj["ok"] != true || obj["bad"] != false {
		t.Fatalf("obj = %v", obj)
	}
}

func TestStream_N2SecondTopLevelObject(t *testing.T) {
	s := New()
	events := s.Write(`prose {"a":1} more {"b":2}`)
	var gotN2 bool
	for _, e := range events {
		if e.Kind == EventN2 {
			gotN2 = true
		}
	}
	if !gotN2 {
		t.Fatal("expected n2 event for second top-level object")
	}
}
