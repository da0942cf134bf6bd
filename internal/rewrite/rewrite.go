// Package rewrite replaces resource references in HTML and CSS with paths
// relative to the rewritten document's own location in the mirror.
package rewrite

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/PentesterFlow/OpenMirror/internal/parser"
	"github.com/PentesterFlow/OpenMirror/internal/pathmap"
	"github.com/PentesterFlow/OpenMirror/internal/scope"
)

// Table resolves canonical URLs to local paths of saved files.
type Table interface {
	Lookup(canonical string) (string, bool)
}

// Result summarizes one rewrite pass.
type Result struct {
	// Rewritten counts references replaced by local paths.
	Rewritten int
	// Pending lists canonical URLs of in-scope anchors whose target has not
	// been saved yet. Those anchors were left absolute.
	Pending []string
}

// Rewriter patches documents against a files table.
type Rewriter struct {
	files   Table
	inScope func(string) bool
}

// New creates a rewriter. inScope decides which anchors belong to the site.
func New(files Table, inScope func(string) bool) *Rewriter {
	return &Rewriter{files: files, inScope: inScope}
}

// HTML rewrites UTF-8 HTML text located at pageURL.
func (r *Rewriter) HTML(text, pageURL string) (string, Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(text)))
	if err != nil {
		return "", Result{}, err
	}
	res := r.Document(doc, pageURL)
	out, err := doc.Html()
	if err != nil {
		return "", Result{}, err
	}
	return out, res, nil
}

// Document rewrites every resource site and anchor of doc in place.
func (r *Rewriter) Document(doc *goquery.Document, pageURL string) Result {
	from := pathmap.Map(canonicalOrRaw(pageURL), false)
	var res Result

	parser.Walk(doc, func(site parser.Site) {
		switch site.Form {
		case parser.FormURL:
			if site.Kind == parser.KindAnchor {
				r.anchor(site, pageURL, from, &res)
				return
			}
			if v, ok := r.ref(site.Value(), pageURL, from); ok {
				site.Set(v)
				res.Rewritten++
			}

		case parser.FormSrcset:
			r.srcset(site, pageURL, from, &res)

		case parser.FormCSS:
			value := site.Value()
			out, n := r.css(value, pageURL, from)
			if n > 0 {
				site.Set(out)
				res.Rewritten += n
			}
		}
	})
	return res
}

// Anchors rewrites the absolute anchors of an already rewritten doc. It is
// used to relink pages saved before their targets; anchors that already
// hold local paths are left alone.
func (r *Rewriter) Anchors(doc *goquery.Document, pageURL string) Result {
	from := pathmap.Map(canonicalOrRaw(pageURL), false)
	var res Result
	parser.Walk(doc, func(site parser.Site) {
		if site.Kind == parser.KindAnchor && isAbsolute(site.Value()) {
			r.anchor(site, pageURL, from, &res)
		}
	})
	return res
}

// Embedded rewrites the non-anchor URL references of an already rewritten
// doc whose canonical target satisfies embedded and is saved. It relinks
// pages that referenced another page as a resource before it was saved.
func (r *Rewriter) Embedded(doc *goquery.Document, pageURL string, embedded func(canonical string) bool) Result {
	from := pathmap.Map(canonicalOrRaw(pageURL), false)
	var res Result
	parser.Walk(doc, func(site parser.Site) {
		if site.Form != parser.FormURL || site.Kind == parser.KindAnchor {
			return
		}
		resolved, ok := scope.Resolve(pageURL, site.Value())
		if !ok {
			return
		}
		canonical, _, err := scope.SplitFragment(resolved)
		if err != nil || !embedded(canonical) {
			return
		}
		if v, ok := r.ref(site.Value(), pageURL, from); ok {
			site.Set(v)
			res.Rewritten++
		}
	})
	return res
}

// CSS rewrites stylesheet text located at cssURL.
func (r *Rewriter) CSS(text, cssURL string) (string, Result) {
	from := pathmap.Map(canonicalOrRaw(cssURL), true)
	out, n := r.css(text, cssURL, from)
	return out, Result{Rewritten: n}
}

func (r *Rewriter) css(text, baseURL, from string) (string, int) {
	n := 0
	out := parser.ReplaceCSS(text, func(ref parser.CSSRef) (string, bool) {
		v, ok := r.ref(ref.Value, baseURL, from)
		if ok {
			n++
		}
		return v, ok
	})
	return out, n
}

func (r *Rewriter) srcset(site parser.Site, pageURL, from string, res *Result) {
	candidates := parser.ParseSrcset(site.Value())
	changed := 0
	for i, c := range candidates {
		if v, ok := r.ref(c.URL, pageURL, from); ok {
			candidates[i].URL = v
			changed++
		}
	}
	if changed > 0 {
		site.Set(parser.FormatSrcset(candidates))
		res.Rewritten += changed
	}
}

func (r *Rewriter) anchor(site parser.Site, pageURL, from string, res *Result) {
	resolved, ok := scope.Resolve(pageURL, site.Value())
	if !ok || (r.inScope != nil && !r.inScope(resolved)) {
		return
	}
	canonical, fragment, err := scope.SplitFragment(resolved)
	if err != nil {
		return
	}
	if local, ok := r.files.Lookup(canonical); ok {
		site.Set(pathmap.Ref(from, local, fragment))
		res.Rewritten++
		return
	}
	site.Set(resolved)
	res.Pending = append(res.Pending, canonical)
}

// ref maps a raw reference to a local relative path when its target is saved.
func (r *Rewriter) ref(raw, baseURL, from string) (string, bool) {
	resolved, ok := scope.Resolve(baseURL, raw)
	if !ok {
		return "", false
	}
	canonical, fragment, err := scope.SplitFragment(resolved)
	if err != nil {
		return "", false
	}
	local, ok := r.files.Lookup(canonical)
	if !ok {
		return "", false
	}
	return pathmap.Ref(from, local, fragment), true
}

func isAbsolute(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func canonicalOrRaw(u string) string {
	if c, err := scope.Canonicalize(u); err == nil {
		return c
	}
	return u
}
