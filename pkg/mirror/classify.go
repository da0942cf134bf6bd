package mirror

import (
	"mime"
	"net/url"
	"strings"
)

// Classification is how a fetched resource is handled.
type Classification int

const (
	// OpaqueAsset is saved unchanged.
	OpaqueAsset Classification = iota
	// Stylesheet is scanned for child resources and rewritten.
	Stylesheet
	// HTMLDocument is a page: its assets are fetched, it is rewritten and its
	// links are followed.
	HTMLDocument
)

// String returns the log name of the classification.
func (c Classification) String() string {
	switch c {
	case HTMLDocument:
		return "page"
	case Stylesheet:
		return "stylesheet"
	default:
		return "asset"
	}
}

// Classify decides the handling of a resource from its content type and
// canonical URL.
func Classify(contentType, canonicalURL string) Classification {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}

	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return HTMLDocument
	case "text/css":
		return Stylesheet
	}

	if u, err := url.Parse(canonicalURL); err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".css") {
		return Stylesheet
	}
	return OpaqueAsset
}

// forAsset adjusts a classification for a resource fetched as an asset.
// HTML that may not be crawled as a page is saved unchanged.
func (c Classification) forAsset() Classification {
	if c == HTMLDocument {
		return OpaqueAsset
	}
	return c
}
