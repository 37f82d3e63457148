package format

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LinkSummary is one anchor found while walking a page's HTML, used by the
// X-With-Links-Summary request header.
type LinkSummary struct {
	Text string
	Href string
}

// ImageSummary is one image found while walking a page's HTML, used by the
// X-With-Images-Summary and X-With-Generated-Alt request headers.
type ImageSummary struct {
	Src string
	Alt string
}

// Summarize walks rawHTML once and collects every link and image, in
// document order. A missing alt attribute is reported as "" — callers
// honouring X-With-Generated-Alt substitute a placeholder built from the
// image's filename, since no captioning model is wired into this service.
func Summarize(rawHTML string) (links []LinkSummary, images []ImageSummary, err error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, nil, nil
	}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, nil, fmt.Errorf("format: parse html for summary: %w", err)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.A:
				links = append(links, LinkSummary{Text: strings.TrimSpace(textOf(n)), Href: attr(n, "href")})
			case atom.Img:
				images = append(images, ImageSummary{Src: attr(n, "src"), Alt: attr(n, "alt")})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, images, nil
}

// GeneratedAlt synthesises a best-effort alt text from an image's src when
// none is present, per X-With-Generated-Alt. This is a filename-derived
// placeholder, not a model-generated caption — captioning is out of scope.
func GeneratedAlt(src string) string {
	name := src
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return "image"
	}
	return name
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}
