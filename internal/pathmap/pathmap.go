// Package pathmap maps canonical URLs to file paths inside the mirror root
// and builds the relative references between them.
//
// All paths are slash-separated and relative to the mirror root.
package pathmap

import (
	"net/url"
	"path"
	"strings"
)

// IndexFile is the file name used for directory-like URLs.
const IndexFile = "index.html"

// Map returns the local path for a canonical URL. Pages without an extension
// get index.html (trailing slash) or .html appended. The query is ignored.
// Map is pure: the same input always yields the same path.
func Map(canonical string, isAsset bool) string {
	p := canonical
	if u, err := url.Parse(canonical); err == nil {
		p = decodePath(u.EscapedPath())
	}

	dirLike := p == "" || strings.HasSuffix(p, "/")
	rel := strings.TrimPrefix(path.Clean("/"+p), "/")
	if rel == "" {
		return IndexFile
	}

	if dirLike {
		return rel + "/" + IndexFile
	}
	if !isAsset && path.Ext(rel) == "" {
		return rel + ".html"
	}
	return rel
}

// Rel returns the slash path of target relative to the directory holding from.
func Rel(from, target string) string {
	fromDir := splitSegments(path.Dir(from))
	to := splitSegments(target)

	i := 0
	for i < len(fromDir) && i < len(to)-1 && fromDir[i] == to[i] {
		i++
	}

	parts := make([]string, 0, len(fromDir)-i+len(to)-i)
	for range fromDir[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	return strings.Join(parts, "/")
}

// Ref returns a URL reference from the document at from to the file at
// target, percent-escaped, with fragment re-attached when non-empty.
func Ref(from, target, fragment string) string {
	rel := Rel(from, target)
	ref := (&url.URL{Path: rel}).EscapedPath()

	// A colon in the first segment would be read as a scheme.
	first, _, _ := strings.Cut(ref, "/")
	if strings.Contains(first, ":") {
		ref = "./" + ref
	}

	if fragment != "" {
		ref += "#" + fragment
	}
	return ref
}

// decodePath unescapes each segment of an escaped URL path. An encoded
// slash stays %2F so that it cannot split a segment into directories.
func decodePath(escaped string) string {
	segments := strings.Split(escaped, "/")
	for i, s := range segments {
		if d, err := url.PathUnescape(s); err == nil {
			segments[i] = strings.ReplaceAll(d, "/", "%2F")
		}
	}
	return strings.Join(segments, "/")
}

func splitSegments(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
