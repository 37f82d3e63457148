package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/hazyhaar/reader/internal/browserpool"
	"github.com/hazyhaar/reader/internal/format"
	"github.com/hazyhaar/reader/internal/snapshot"
)

// RegisterBrowse registers the "browse" built-in tool: fetches url via the
// browser pool + snapshot pipeline and returns its markdown content.
func RegisterBrowse(r *Registry, pool *browserpool.Manager, formatter *format.Formatter) {
	r.Register(Descriptor{
		Name:        "browse",
		Description: "Fetch a web page and return its readable content as markdown.",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"url": {Type: "string", Description: "The URL to fetch."},
			},
			Required: []string{"url"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		raw, _ := args["url"].(string)
		if raw == "" {
			return nil, fmt.Errorf("browse: missing url argument")
		}

		bc, err := pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("browse: acquire context: %w", err)
		}

		results, err := snapshot.Scrape(ctx, bc, raw, snapshot.Options{})
		if err != nil {
			bc.Release(ctx)
			return nil, fmt.Errorf("browse: scrape: %w", err)
		}

		var last snapshot.PageResult
		for r := range results {
			last = r
		}
		if last.Snapshot.Href == "" {
			return nil, fmt.Errorf("browse: no content retrieved from %s", raw)
		}

		page, err := formatter.FormatSnapshot(format.ModeDefault, last.Snapshot, "")
		if err != nil {
			return nil, fmt.Errorf("browse: format: %w", err)
		}
		if page.Content == "" {
			page, err = formatter.FormatSnapshot(format.ModeMarkdown, last.Snapshot, "")
			if err != nil {
				return nil, fmt.Errorf("browse: format markdown fallback: %w", err)
			}
		}
		return page.Content, nil
	})
}

// SearchResult is one searchWeb hit.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RegisterSearchWeb registers the "searchWeb" built-in tool against a
// JSON search API at baseURL (expected to accept ?q=<query> and return
// {results: [{url,title,description}]}). No search-engine client library
// is a dependency anywhere in the pack, so this is a direct net/http call
// — standard-library-only and justified on that absence.
func RegisterSearchWeb(r *Registry, baseURL string, client *http.Client) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	r.Register(Descriptor{
		Name:        "searchWeb",
		Description: "Search the web and return a list of {url, title, description} results.",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"text": {Type: "string", Description: "The search query."},
			},
			Required: []string{"text"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		text, _ := args["text"].(string)
		if text == "" {
			return nil, fmt.Errorf("searchWeb: missing text argument")
		}

		u := baseURL + "?q=" + url.QueryEscape(text)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("searchWeb: request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("searchWeb: read response: %w", err)
		}

		var parsed struct {
			Results []SearchResult `json:"results"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("searchWeb: parse response: %w", err)
		}
		return parsed.Results, nil
	})
}
