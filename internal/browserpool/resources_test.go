package browserpool

import "testing"

func TestShouldBlock(t *testing.T) {
	blockSet := map[string]bool{"images": true, "stylesheets": true}

	cases := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"image", true},
		{"Stylesheet", true},
		{"Font", false},
		{"Media", false},
		{"Document", false},
		{"XHR", false},
	}
	for _, c := range cases {
		if got := shouldBlock(blockSet, c.resType); got != c.want {
			t.Errorf("shouldBlock(%q) = %v, want %v", c.resType, got, c.want)
		}
	}
}

func TestShouldBlock_EmptySet(t *testing.T) {
	if shouldBlock(map[string]bool{}, "image") {
		t.Error("expected no blocking with an empty block set")
	}
}

func TestShouldBlock_FallsBackToRawLowercaseName(t *testing.T) {
	blockSet := map[string]bool{"websocket": true}
	if !shouldBlock(blockSet, "WebSocket") {
		t.Error("expected the raw lowercased resource type to be consulted when it isn't one of the named cases")
	}
}
