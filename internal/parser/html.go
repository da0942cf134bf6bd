// Package parser finds resource references in HTML and CSS documents.
package parser

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/PentesterFlow/OpenMirror/internal/scope"
)

// ParseHTML decodes body to UTF-8 using the Content-Type header and any
// in-document declaration, then parses it. Documents converted from another
// encoding have their charset declaration updated.
func ParseHTML(body []byte, contentType string) (*goquery.Document, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	converted := false
	if name != "utf-8" && (certain || !utf8.Valid(body)) {
		decoded, err := enc.NewDecoder().Bytes(body)
		if err == nil {
			body = decoded
			converted = true
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if converted {
		markUTF8(doc)
	}
	return doc, nil
}

func markUTF8(doc *goquery.Document) {
	doc.Find("meta[charset]").SetAttr("charset", "utf-8")
	doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		if v, _ := s.Attr("http-equiv"); strings.EqualFold(v, "content-type") {
			s.SetAttr("content", "text/html; charset=utf-8")
		}
	})
}

// Walk calls fn for every site in doc that can hold a resource pointer, in
// document order. Extraction and rewriting both enumerate through Walk so
// that every construct found can also be patched.
func Walk(doc *goquery.Document, fn func(Site)) {
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		walkNode(n, fn)
	})
}

func walkNode(n *html.Node, fn func(Site)) {
	emit := func(key string, kind Kind, form Form) {
		if i := attrIndex(n, key); i >= 0 {
			fn(Site{Node: n, Attr: i, Kind: kind, Form: form})
		}
	}

	if n.Namespace == "svg" {
		switch n.Data {
		case "use", "image":
			for i, a := range n.Attr {
				if a.Key == "href" {
					fn(Site{Node: n, Attr: i, Kind: KindInlineSVGUse, Form: FormURL})
				}
			}
		}
		emit("style", KindInlineStyleURL, FormCSS)
		return
	}

	switch n.Data {
	case "link":
		if kind, ok := linkKind(attr(n, "rel")); ok {
			emit("href", kind, FormURL)
		}
	case "script":
		emit("src", KindScriptSrc, FormURL)
	case "img":
		emit("src", KindImageSrc, FormURL)
		emit("srcset", KindImageSrcset, FormSrcset)
		emit("data-src", KindImageSrc, FormURL)
		emit("data-srcset", KindImageSrcset, FormSrcset)
	case "source":
		emit("srcset", KindImageSrcset, FormSrcset)
		emit("src", KindMediaSrc, FormURL)
	case "video", "audio":
		emit("src", KindMediaSrc, FormURL)
		emit("poster", KindMediaSrc, FormURL)
	case "object":
		emit("data", KindObjectData, FormURL)
	case "embed":
		emit("src", KindObjectData, FormURL)
	case "iframe":
		emit("src", KindIframeSrc, FormURL)
	case "meta":
		if p := strings.ToLower(attr(n, "property")); strings.Contains(p, "image") || strings.Contains(p, "url") {
			emit("content", KindMetaContentURL, FormURL)
		}
	case "a", "area":
		emit("href", KindAnchor, FormURL)
	case "style":
		if n.Namespace == "" {
			fn(Site{Node: n, Attr: -1, Kind: KindStyleBlock, Form: FormCSS})
		}
	}

	emit("style", KindInlineStyleURL, FormCSS)
}

// linkKind classifies a <link> by its rel tokens.
func linkKind(rel string) (Kind, bool) {
	tokens := strings.Fields(strings.ToLower(rel))
	for _, t := range tokens {
		if t == "stylesheet" {
			return KindStylesheetLink, true
		}
	}
	for _, t := range tokens {
		for _, s := range []string{"icon", "shortcut", "apple-touch", "manifest"} {
			if strings.Contains(t, s) {
				return KindIconLink, true
			}
		}
	}
	for _, t := range tokens {
		switch t {
		case "preload", "prefetch", "dns-prefetch":
			return KindPreloadLink, true
		}
	}
	return "", false
}

// Extract returns every resource reference of doc resolved against pageURL,
// in document order. Anchors are not resources; see Links. Iframes are kept
// only when inScope accepts them; a nil inScope accepts everything.
func Extract(doc *goquery.Document, pageURL string, inScope func(string) bool) []Reference {
	var out []Reference
	Walk(doc, func(site Site) {
		if site.Kind == KindAnchor {
			return
		}
		value := site.Value()

		switch site.Form {
		case FormURL:
			resolved, ok := scope.Resolve(pageURL, value)
			if !ok {
				return
			}
			if site.Kind == KindIframeSrc && inScope != nil && !inScope(resolved) {
				return
			}
			out = append(out, Reference{Kind: site.Kind, URL: resolved, Raw: value})

		case FormSrcset:
			for _, c := range ParseSrcset(value) {
				if resolved, ok := scope.Resolve(pageURL, c.URL); ok {
					out = append(out, Reference{Kind: site.Kind, URL: resolved, Raw: c.URL})
				}
			}

		case FormCSS:
			for _, ref := range ExtractCSS(value, pageURL) {
				if site.Kind == KindInlineStyleURL {
					ref.Kind = KindInlineStyleURL
				}
				out = append(out, ref)
			}
		}
	})
	return out
}

// Links returns the resolved targets of the anchors in doc, in document order.
func Links(doc *goquery.Document, pageURL string) []string {
	var out []string
	Walk(doc, func(site Site) {
		if site.Kind != KindAnchor {
			return
		}
		if resolved, ok := scope.Resolve(pageURL, site.Value()); ok {
			out = append(out, resolved)
		}
	})
	return out
}

func attrIndex(n *html.Node, key string) int {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return i
		}
	}
	return -1
}

func attr(n *html.Node, key string) string {
	if i := attrIndex(n, key); i >= 0 {
		return n.Attr[i].Val
	}
	return ""
}
