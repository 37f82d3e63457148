package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hazyhaar/reader/internal/errs"
	"github.com/hazyhaar/reader/internal/format"
)

// crawlResponse is the application/json shape returned when the caller asks
// for one of the summary headers; otherwise the formatted page is written
// directly in its native content type.
type crawlResponse struct {
	URL    string                 `json:"url"`
	Title  string                 `json:"title,omitempty"`
	Body   string                 `json:"body"`
	Links  []format.LinkSummary   `json:"links,omitempty"`
	Images []format.ImageSummary  `json:"images,omitempty"`
}

// handleCrawl implements spec.md §6's crawl endpoint: fetch url and return
// the formatted page per X-Respond-With, honouring the X-With-* summary
// headers and X-Set-Cookie/X-Proxy-Url/X-No-Cache.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	target, err := validatedURL(r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := proxyURL(r.Header.Get("X-Proxy-Url")); err != nil {
		writeError(w, err)
		return
	}

	rw, err := parseRespondWith(r.Header.Get("X-Respond-With"))
	if err != nil {
		writeError(w, err)
		return
	}
	mode := format.Mode(rw)

	page, err := s.fetchPage(r.Context(), target.String(), mode, r.Header)
	if err != nil {
		writeError(w, err)
		return
	}

	wantsLinks := r.Header.Get("X-With-Links-Summary") != ""
	wantsImages := r.Header.Get("X-With-Images-Summary") != ""
	wantsAlt := r.Header.Get("X-With-Generated-Alt") != ""

	if wantsLinks || wantsImages || wantsAlt {
		s.writeCrawlSummary(w, page, mode, wantsLinks, wantsImages, wantsAlt)
		return
	}

	switch mode {
	case format.ModeHTML:
		w.Header().Set("Content-Type", "text/html")
	case format.ModeText:
		w.Header().Set("Content-Type", "text/plain")
	case format.ModeScreenshot:
		w.Header().Set("Content-Type", "text/plain")
	default:
		w.Header().Set("Content-Type", "text/markdown")
	}
	w.Write([]byte(page.String()))
}

func (s *Server) writeCrawlSummary(w http.ResponseWriter, page format.FormattedPage, mode format.Mode, wantsLinks, wantsImages, wantsAlt bool) {
	html := page.HTML
	if html == "" {
		html = page.Content
	}
	links, images, err := format.Summarize(html)
	if err != nil {
		writeError(w, errs.Wrap(errs.Internal, "summarize page", err))
		return
	}

	resp := crawlResponse{URL: page.URL, Title: page.Title, Body: page.String()}
	if wantsLinks {
		resp.Links = links
	}
	if wantsImages || wantsAlt {
		if wantsAlt {
			for i := range images {
				if strings.TrimSpace(images[i].Alt) == "" {
					images[i].Alt = format.GeneratedAlt(images[i].Src)
				}
			}
		}
		resp.Images = images
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
