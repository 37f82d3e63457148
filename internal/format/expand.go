package format

import (
	"net/url"
	"regexp"
)

// imageToken matches markdown image syntax: ![alt](url).
var imageToken = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)

// ExpandMarkdown walks ![alt](url) tokens in input, in order, and produces
// a heterogeneous prompt sequence of text / URL / bytes parts per
// spec.md §4.3: file:// URLs resolve against files (tried raw,
// percent-decoded, percent-encoded, in that order); other schemes pass
// through as a URL part; unparseable URLs fall back to the raw token text.
// The image token is appended again (as text) after its resolved form so
// the model sees both the inline asset and its textual reference.
// Consecutive text parts are merged.
func ExpandMarkdown(input string, files map[string]UploadedFile) []PromptPart {
	var parts []PromptPart
	last := 0

	appendText := func(s string) {
		if s == "" {
			return
		}
		if n := len(parts); n > 0 && parts[n-1].URL == nil && parts[n-1].Bytes == nil {
			parts[n-1].Text += s
			return
		}
		parts = append(parts, PromptPart{Text: s})
	}

	for _, loc := range imageToken.FindAllStringSubmatchIndex(input, -1) {
		tokenStart, tokenEnd := loc[0], loc[1]
		urlStart, urlEnd := loc[2], loc[3]

		appendText(input[last:tokenStart])

		raw := input[urlStart:urlEnd]
		token := input[tokenStart:tokenEnd]

		u, err := url.Parse(raw)
		if err != nil {
			appendText(token)
			last = tokenEnd
			continue
		}

		if u.Scheme == "file" {
			if f, ok := resolveFile(u, files); ok {
				parts = append(parts, PromptPart{Bytes: f.Data})
			} else {
				appendText(token)
				last = tokenEnd
				continue
			}
		} else {
			parts = append(parts, PromptPart{URL: u})
		}

		// The token is appended again so the model sees both forms.
		appendText(token)
		last = tokenEnd
	}

	appendText(input[last:])
	return parts
}

// resolveFile tries raw, percent-decoded, then percent-encoded forms of
// the file:// URL's path/opaque component against the files map.
func resolveFile(u *url.URL, files map[string]UploadedFile) (UploadedFile, bool) {
	candidates := []string{u.Path}
	if u.Opaque != "" {
		candidates = append(candidates, u.Opaque)
	}
	if decoded, err := url.PathUnescape(u.Path); err == nil && decoded != u.Path {
		candidates = append(candidates, decoded)
	}
	candidates = append(candidates, url.PathEscape(u.Path))

	for _, key := range candidates {
		if f, ok := files[key]; ok {
			return f, true
		}
	}
	return UploadedFile{}, false
}
