// Package format implements C3 Formatter: converts a snapshot.Snapshot into
// one of {default, markdown, html, text, screenshot}, and walks expanded
// markdown image tokens into a prompt sequence for the interrogator.
//
// The markdown conversion pipeline (sanitize then convert) follows
// haowjy-meridian's docsystem/converter + sanitizer split; the converter
// itself is the teacher's own html-to-markdown/v2 usage
// (veille/internal/pipeline/pipeline.go's mdConverter), not the
// enrichment repo's v1 dependency.
package format

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/reader/extract"
	"github.com/hazyhaar/reader/internal/snapshot"
)

// Mode selects which FormattedPage view formatSnapshot produces.
type Mode string

const (
	ModeDefault    Mode = "default"
	ModeMarkdown   Mode = "markdown"
	ModeHTML       Mode = "html"
	ModeText       Mode = "text"
	ModeScreenshot Mode = "screenshot"
)

// FormattedPage is the client-facing rendering of one PageResult.
type FormattedPage struct {
	URL          string
	Title        string
	Content      string // markdown, for default/markdown modes
	HTML         string // raw html, for html mode
	ScreenshotURL string
	mode         Mode
	text         string
}

// String renders the page in whichever format its Mode selected.
func (p FormattedPage) String() string {
	switch p.mode {
	case ModeHTML:
		return p.HTML
	case ModeText:
		return p.text
	case ModeScreenshot:
		return p.ScreenshotURL
	default:
		return p.Content
	}
}

// Formatter converts snapshots to FormattedPages. It holds the
// markdown converter and sanitizer, both expensive to construct, so
// callers should build one Formatter and reuse it.
type Formatter struct {
	md  *converter.Converter
	san *sanitizer
}

// New builds a Formatter.
func New() *Formatter {
	return &Formatter{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		san: newSanitizer(),
	}
}

// FormatSnapshot implements spec.md §4.3's formatSnapshot(mode, snapshot).
// For ModeDefault, if the readability result has no content, the caller is
// expected to retry with ModeMarkdown — this function does not itself fall
// back.
func (f *Formatter) FormatSnapshot(mode Mode, s snapshot.Snapshot, screenshotURL string) (FormattedPage, error) {
	page := FormattedPage{URL: s.Href, Title: s.Title, mode: mode}

	switch mode {
	case ModeDefault:
		md, err := f.toMarkdown(s.Content)
		if err != nil {
			return page, err
		}
		page.Content = md
		return page, nil

	case ModeMarkdown:
		html := s.Content
		if strings.TrimSpace(html) == "" {
			// Full-page extraction fallback per spec: "regardless of
			// readability success".
			if res, err := extract.Extract([]byte(s.HTML), extract.Options{Mode: "auto"}); err == nil {
				html = res.HTML
			}
		}
		md, err := f.toMarkdown(html)
		if err != nil {
			return page, err
		}
		page.Content = md
		return page, nil

	case ModeHTML:
		page.HTML = s.HTML
		return page, nil

	case ModeText:
		page.text = s.TextContent
		return page, nil

	case ModeScreenshot:
		page.ScreenshotURL = screenshotURL
		return page, nil

	default:
		return page, fmt.Errorf("format: unknown mode %q", mode)
	}
}

func (f *Formatter) toMarkdown(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	clean := f.san.Sanitize(html)
	md, err := f.md.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("format: convert to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// PromptPart is one piece of the heterogeneous sequence expandMarkdown
// produces: exactly one of Text, a resolved *url.URL, or raw Bytes.
type PromptPart struct {
	Text  string
	URL   *url.URL
	Bytes []byte
}

// UploadedFile is an in-request uploaded file addressable by a raw or
// percent-en/decoded key, per spec.md §4.3's file:// resolution order.
type UploadedFile struct {
	Name string
	Data []byte
}
