// Package framework recognizes JavaScript application frameworks from a
// page's static markup. Pages built by such frameworks often render their
// content client-side, which a static mirror cannot capture.
package framework

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Type represents a JavaScript framework type.
type Type string

const (
	TypeUnknown   Type = "unknown"
	TypeAngularJS Type = "angularjs" // AngularJS 1.x
	TypeAngular   Type = "angular"   // Angular 2+
	TypeReact     Type = "react"
	TypeVue       Type = "vue"
	TypeEmber     Type = "ember"
	TypeSvelte    Type = "svelte"
	TypeNext      Type = "nextjs"
	TypeNuxt      Type = "nuxt"
	TypeGatsby    Type = "gatsby"
)

// Handler recognizes one framework.
type Handler interface {
	// Type returns the framework type.
	Type() Type

	// Detect checks if this framework is present in the document.
	Detect(doc *goquery.Document) bool
}

// DetectionResult contains the result of framework detection.
type DetectionResult struct {
	Frameworks []Type
	Primary    Type
	// EmptyShell is set when the body holds almost no text outside scripts,
	// the usual sign of client-side rendering.
	EmptyShell bool
}

// IsSPA reports whether the page looks client-rendered.
func (r *DetectionResult) IsSPA() bool {
	return len(r.Frameworks) > 0 && r.EmptyShell
}

// Detector detects frameworks in a document.
type Detector struct {
	handlers []Handler
}

// NewDetector creates a new framework detector with all handlers. Meta
// frameworks come before the libraries they build on so they become Primary.
func NewDetector() *Detector {
	return &Detector{
		handlers: []Handler{
			selectorHandler{TypeNext, []string{"#__next", "script#__NEXT_DATA__", `script[src*="/_next/"]`}},
			selectorHandler{TypeNuxt, []string{"#__nuxt", `script[src*="/_nuxt/"]`}},
			selectorHandler{TypeGatsby, []string{"#___gatsby"}},
			selectorHandler{TypeAngularJS, []string{"[ng-app]", "[data-ng-app]", "[ng-controller]"}},
			selectorHandler{TypeAngular, []string{"[ng-version]", "app-root"}},
			selectorHandler{TypeReact, []string{"[data-reactroot]", "[data-reactid]", `script[src*="react"]`}},
			selectorHandler{TypeVue, []string{"[data-v-app]", "[v-cloak]", `script[src*="vue"]`}},
			selectorHandler{TypeEmber, []string{".ember-application", `meta[name$="/config/environment"]`}},
			classPrefixHandler{TypeSvelte, "svelte-"},
		},
	}
}

// Detect detects all frameworks present in doc.
func (d *Detector) Detect(doc *goquery.Document) *DetectionResult {
	result := &DetectionResult{
		Frameworks: make([]Type, 0),
		Primary:    TypeUnknown,
	}

	for _, handler := range d.handlers {
		if handler.Detect(doc) {
			result.Frameworks = append(result.Frameworks, handler.Type())
			if result.Primary == TypeUnknown {
				result.Primary = handler.Type()
			}
		}
	}

	result.EmptyShell = visibleText(doc) < emptyShellText
	return result
}

// emptyShellText is the visible body text length under which a page is
// treated as an empty application shell.
const emptyShellText = 200

func visibleText(doc *goquery.Document) int {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return len(strings.Join(strings.Fields(body.Text()), " "))
}

// selectorHandler matches when any selector finds an element.
type selectorHandler struct {
	typ       Type
	selectors []string
}

func (h selectorHandler) Type() Type { return h.typ }

func (h selectorHandler) Detect(doc *goquery.Document) bool {
	for _, sel := range h.selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// classPrefixHandler matches scoped class names emitted by a compiler.
type classPrefixHandler struct {
	typ    Type
	prefix string
}

func (h classPrefixHandler) Type() Type { return h.typ }

func (h classPrefixHandler) Detect(doc *goquery.Document) bool {
	found := false
	doc.Find(`[class*="` + h.prefix + `"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		for _, c := range strings.Fields(class) {
			if strings.HasPrefix(c, h.prefix) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
