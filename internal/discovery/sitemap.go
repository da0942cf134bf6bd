// Package discovery finds seed pages from sitemap.xml files.
package discovery

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"io"
	"strings"
)

// URLEntry is a <url> entry of a sitemap.
type URLEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Sitemap is a sitemap <urlset>.
type Sitemap struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []URLEntry `xml:"url"`
}

// SitemapIndex is a sitemap index file.
type SitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []SitemapEntry `xml:"sitemap"`
}

// SitemapEntry is an entry in a sitemap index.
type SitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// ParseSitemap parses a sitemap or sitemap index body, gzip-compressed or
// not. It returns page locations and nested sitemap locations.
func ParseSitemap(body []byte) (pages, children []string, err error) {
	if len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b {
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, nil, err
		}
		defer gr.Close()
		if body, err = io.ReadAll(gr); err != nil {
			return nil, nil, err
		}
	}

	var index SitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil {
		for _, e := range index.Sitemaps {
			if loc := strings.TrimSpace(e.Loc); loc != "" {
				children = append(children, loc)
			}
		}
		return nil, children, nil
	}

	var sitemap Sitemap
	if err := xml.Unmarshal(body, &sitemap); err != nil {
		return nil, nil, err
	}
	for _, u := range sitemap.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			pages = append(pages, loc)
		}
	}
	return pages, nil, nil
}

// FetchFunc retrieves the body at url.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// SitemapParser follows sitemap indexes to collect page URLs.
type SitemapParser struct {
	fetch    FetchFunc
	maxDepth int
	maxURLs  int
}

// NewSitemapParser creates a parser. maxURLs of 0 means no limit.
func NewSitemapParser(fetch FetchFunc, maxURLs int) *SitemapParser {
	return &SitemapParser{
		fetch:    fetch,
		maxDepth: 3,
		maxURLs:  maxURLs,
	}
}

// Collect returns the page URLs reachable from the given sitemaps.
// Bodies already fetched can be passed in known to avoid refetching.
// Unreadable sitemaps are skipped.
func (p *SitemapParser) Collect(ctx context.Context, sitemaps []string, known map[string][]byte) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range sitemaps {
		out = p.collect(ctx, s, known[s], 0, seen, out)
	}
	return out
}

func (p *SitemapParser) collect(ctx context.Context, sitemapURL string, body []byte, depth int, seen map[string]bool, out []string) []string {
	if depth > p.maxDepth || seen[sitemapURL] || ctx.Err() != nil || p.full(out) {
		return out
	}
	seen[sitemapURL] = true

	if body == nil {
		if p.fetch == nil {
			return out
		}
		var err error
		if body, err = p.fetch(ctx, sitemapURL); err != nil {
			return out
		}
	}

	pages, children, err := ParseSitemap(body)
	if err != nil {
		return out
	}
	for _, page := range pages {
		if p.full(out) {
			break
		}
		out = append(out, page)
	}
	for _, child := range children {
		out = p.collect(ctx, child, nil, depth+1, seen, out)
	}
	return out
}

func (p *SitemapParser) full(out []string) bool {
	return p.maxURLs > 0 && len(out) >= p.maxURLs
}
