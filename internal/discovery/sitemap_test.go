package discovery

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"reflect"
	"testing"
)

const urlset = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc><priority>1.0</priority></url>
  <url><loc> https://example.com/about.html </loc></url>
  <url><loc></loc></url>
</urlset>`

const index = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/pages.xml</loc></sitemap>
  <sitemap><loc>https://example.com/posts.xml.gz</loc></sitemap>
</sitemapindex>`

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte(s))
	gw.Close()
	return buf.Bytes()
}

// =============================================================================
// ParseSitemap Tests
// =============================================================================

func TestParseSitemap(t *testing.T) {
	tests := []struct {
		name         string
		body         []byte
		wantPages    []string
		wantChildren []string
		wantErr      bool
	}{
		{
			name:      "urlset",
			body:      []byte(urlset),
			wantPages: []string{"https://example.com/", "https://example.com/about.html"},
		},
		{
			name:         "index",
			body:         []byte(index),
			wantChildren: []string{"https://example.com/pages.xml", "https://example.com/posts.xml.gz"},
		},
		{
			name:      "gzip",
			body:      gzipped(t, urlset),
			wantPages: []string{"https://example.com/", "https://example.com/about.html"},
		},
		{
			name:    "not xml",
			body:    []byte("<html><body>404</body></html>"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, children, err := ParseSitemap(tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSitemap() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(pages, tt.wantPages) {
				t.Errorf("pages = %v, want %v", pages, tt.wantPages)
			}
			if !reflect.DeepEqual(children, tt.wantChildren) {
				t.Errorf("children = %v, want %v", children, tt.wantChildren)
			}
		})
	}
}

// =============================================================================
// SitemapParser Tests
// =============================================================================

func TestSitemapParser_Collect(t *testing.T) {
	bodies := map[string][]byte{
		"https://example.com/pages.xml": []byte(`<urlset><url><loc>https://example.com/a</loc></url></urlset>`),
		"https://example.com/posts.xml.gz": gzipped(t,
			`<urlset><url><loc>https://example.com/p1</loc></url><url><loc>https://example.com/p2</loc></url></urlset>`),
	}
	var fetched []string
	fetch := func(ctx context.Context, url string) ([]byte, error) {
		fetched = append(fetched, url)
		b, ok := bodies[url]
		if !ok {
			return nil, errors.New("not found")
		}
		return b, nil
	}

	p := NewSitemapParser(fetch, 0)
	got := p.Collect(context.Background(),
		[]string{"https://example.com/sitemap.xml", "https://example.com/missing.xml"},
		map[string][]byte{"https://example.com/sitemap.xml": []byte(index)})

	want := []string{"https://example.com/a", "https://example.com/p1", "https://example.com/p2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Collect() = %v, want %v", got, want)
	}
	for _, f := range fetched {
		if f == "https://example.com/sitemap.xml" {
			t.Error("known sitemap body should not be refetched")
		}
	}
}

func TestSitemapParser_MaxURLs(t *testing.T) {
	p := NewSitemapParser(nil, 1)
	got := p.Collect(context.Background(),
		[]string{"https://example.com/sitemap.xml"},
		map[string][]byte{"https://example.com/sitemap.xml": []byte(urlset)})

	if len(got) != 1 {
		t.Errorf("Collect() = %v, want 1 entry", got)
	}
}

func TestSitemapParser_Cycle(t *testing.T) {
	self := []byte(`<sitemapindex><sitemap><loc>https://example.com/loop.xml</loc></sitemap></sitemapindex>`)
	calls := 0
	fetch := func(ctx context.Context, url string) ([]byte, error) {
		calls++
		return self, nil
	}

	p := NewSitemapParser(fetch, 0)
	if got := p.Collect(context.Background(), []string{"https://example.com/loop.xml"}, nil); len(got) != 0 {
		t.Errorf("Collect() = %v, want none", got)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
}
