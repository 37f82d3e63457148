package format

import "testing"

func TestExpandMarkdown_NoImages(t *testing.T) {
	parts := ExpandMarkdown("just plain text", nil)
	if len(parts) != 1 || parts[0].Text != "just plain text" {
		t.Fatalf("parts = %+v", parts)
	}
}

func TestExpandMarkdown_HTTPImage(t *testing.T) {
	parts := ExpandMarkdown("see ![a](https://example.com/x.png) here", nil)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %+v", len(parts), parts)
	}
	if parts[0].Text != "see " {
		t.Fatalf("part0 = %+v", parts[0])
	}
	if parts[1].URL == nil || parts[1].URL.String() != "https://example.com/x.png" {
		t.Fatalf("part1 = %+v", parts[1])
	}
	if parts[2].Text != "![a](https://example.com/x.png) here" {
		t.Fatalf("part2 = %+v", parts[2])
	}
}

func TestExpandMarkdown_FileResolution(t *testing.T) {
	files := map[string]UploadedFile{
		"/a.png": {Name: "a.png", Data: []byte("PNGDATA")},
	}
	parts := ExpandMarkdown("![alt](file:///a.png)", files)
	var gotBytes bool
	for _, p := range parts {
		if p.Bytes != nil {
			gotBytes = true
			if string(p.Bytes) != "PNGDATA" {
				t.Fatalf("bytes = %q", p.Bytes)
			}
		}
	}
	if !gotBytes {
		t.Fatalf("expected a bytes part, got %+v", parts)
	}
}

func TestExpandMarkdown_UnresolvedFileFallsBackToToken(t *testing.T) {
	parts := ExpandMarkdown("![alt](file:///missing.png)", nil)
	if len(parts) != 1 || parts[0].Text != "![alt](file:///missing.png)" {
		t.Fatalf("parts = %+v", parts)
	}
}
