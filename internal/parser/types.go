package parser

import (
	"strings"

	"golang.org/x/net/html"
)

// Kind names the construct a resource reference was found in.
type Kind string

// Reference kinds.
const (
	KindStylesheetLink Kind = "stylesheet-link"
	KindScriptSrc      Kind = "script-src"
	KindImageSrc       Kind = "image-src"
	KindImageSrcset    Kind = "image-srcset-candidate"
	KindInlineStyleURL Kind = "inline-style-url"
	KindCSSImport      Kind = "css-import"
	KindCSSURL         Kind = "css-url"
	KindInlineSVGUse   Kind = "inline-svg-use"
	KindMediaSrc       Kind = "media-src"
	KindIconLink       Kind = "icon-link"
	KindPreloadLink    Kind = "preload-link"
	KindMetaContentURL Kind = "meta-content-url"
	KindIframeSrc      Kind = "iframe-src"
	KindObjectData     Kind = "object-data"
	KindStyleBlock     Kind = "style-block"
	KindAnchor         Kind = "anchor"
)

// Form is the syntax of the value held by a site.
type Form int

const (
	// FormURL is a single URL.
	FormURL Form = iota
	// FormSrcset is a comma-separated candidate list.
	FormSrcset
	// FormCSS is stylesheet text.
	FormCSS
)

// Reference is a resource pointer resolved against its source document.
type Reference struct {
	Kind Kind
	URL  string // absolute, fragment included
	Raw  string // value as written
}

// Site is a location in a parsed document that holds resource pointers.
// Attr indexes Node.Attr; it is -1 for a <style> element's text content.
type Site struct {
	Node *html.Node
	Attr int
	Kind Kind
	Form Form
}

// Value returns the text currently held by the site.
func (s Site) Value() string {
	if s.Attr >= 0 {
		return s.Node.Attr[s.Attr].Val
	}
	var b strings.Builder
	for c := s.Node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// Set replaces the text held by the site.
func (s Site) Set(v string) {
	if s.Attr >= 0 {
		s.Node.Attr[s.Attr].Val = v
		return
	}
	for c := s.Node.FirstChild; c != nil; {
		next := c.NextSibling
		s.Node.RemoveChild(c)
		c = next
	}
	s.Node.AppendChild(&html.Node{Type: html.TextNode, Data: v})
}
