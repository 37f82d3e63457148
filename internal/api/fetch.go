package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/reader/idgen"
	"github.com/hazyhaar/reader/internal/errs"
	"github.com/hazyhaar/reader/internal/format"
	"github.com/hazyhaar/reader/internal/objectstore"
	"github.com/hazyhaar/reader/internal/snapshot"
	"github.com/hazyhaar/reader/internal/store"
)

// fetchPage drives one full page load through the pool and snapshot
// pipeline, applying the X-Set-Cookie header (if present) before
// navigation, and returns the last (networkIdle-settled) snapshot rendered
// in mode. X-No-Cache is accepted but is a no-op: this service holds no
// cache layer in front of the browser pool, so every request is already
// fresh.
func (s *Server) fetchPage(ctx context.Context, url string, mode format.Mode, h http.Header) (format.FormattedPage, error) {
	bc, err := s.Pool.Acquire(ctx)
	if err != nil {
		return format.FormattedPage{}, errs.Wrap(errs.UpstreamBrowserFailure, "acquire browser context", err)
	}

	if cookies := h.Values("X-Set-Cookie"); len(cookies) > 0 {
		if err := bc.SetCookies(cookies...); err != nil {
			bc.Release(ctx)
			return format.FormattedPage{}, errs.Wrap(errs.UpstreamBrowserFailure, "apply X-Set-Cookie", err)
		}
	}

	results, err := snapshot.Scrape(ctx, bc, url, snapshot.Options{})
	if err != nil {
		bc.Release(ctx)
		return format.FormattedPage{}, errs.Wrap(errs.UpstreamBrowserFailure, "scrape", err)
	}

	var last snapshot.PageResult
	for r := range results {
		last = r
	}
	if last.Snapshot.Href == "" {
		return format.FormattedPage{}, errs.New(errs.UpstreamBrowserFailure, fmt.Sprintf("no content retrieved from %s", url))
	}

	s.persistRecord(ctx, last.Snapshot)

	screenshotURL := ""
	if mode == format.ModeScreenshot && len(last.Screenshot) > 0 && s.Objects != nil {
		res, err := s.Objects.Upload(ctx, &objectstore.UploadRequest{
			ObjectName:  "screenshots/" + idgen.New() + ".png",
			Content:     bytes.NewReader(last.Screenshot),
			ContentType: "image/png",
		})
		if err != nil {
			return format.FormattedPage{}, errs.Wrap(errs.StorageFailure, "upload screenshot", err)
		}
		screenshotURL = res.SignedURL
	}

	page, err := s.Formatter.FormatSnapshot(mode, last.Snapshot, screenshotURL)
	if err != nil {
		return format.FormattedPage{}, errs.Wrap(errs.Internal, "format snapshot", err)
	}
	if mode == format.ModeDefault && page.Content == "" {
		page, err = s.Formatter.FormatSnapshot(format.ModeMarkdown, last.Snapshot, screenshotURL)
		if err != nil {
			return format.FormattedPage{}, errs.Wrap(errs.Internal, "format snapshot markdown fallback", err)
		}
	}
	return page, nil
}

// persistRecord writes the snapshot blob and its CrawledRecord index row,
// the state C7's nightly batch later reads. Failure here does not fail the
// request: the snapshot is already in hand and servable, and a missed
// index row only means that page is absent from the next crunch, not a
// user-facing error.
func (s *Server) persistRecord(ctx context.Context, snap snapshot.Snapshot) {
	if s.Store == nil || s.Objects == nil {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger().Warn("api: marshal snapshot for persistence", "error", err)
		return
	}

	id := idgen.New()
	if err := s.Objects.WriteSnapshot(ctx, id, data); err != nil {
		s.logger().Warn("api: write snapshot blob", "error", err)
		return
	}

	rec := store.CrawledRecord{ID: id, CreatedAt: time.Now().UTC(), SnapshotPath: "snapshots/" + id}
	if err := s.Store.Insert(ctx, rec); err != nil {
		s.logger().Warn("api: insert crawled record", "error", err)
	}
}
