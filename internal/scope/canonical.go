package scope

import (
	"net/url"
	"strings"

	"github.com/PentesterFlow/OpenMirror/internal/errors"
)

// unfetchablePrefixes are reference schemes that never name a downloadable resource.
var unfetchablePrefixes = []string{
	"javascript:",
	"mailto:",
	"data:",
	"tel:",
}

// Canonicalize returns the identity key of rawURL: lowercased scheme and
// host, default port removed, escaped path ("/" when empty), query verbatim,
// fragment dropped.
func Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", errors.NewInvalidURLError(rawURL, "cannot parse URL", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.NewInvalidURLError(rawURL, "URL must have a scheme and host", nil)
	}
	return canonicalString(u), nil
}

func canonicalString(u *url.URL) string {
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = stripDefaultPort(c.Scheme, strings.ToLower(c.Host))
	c.Fragment = ""
	c.RawFragment = ""
	c.ForceQuery = false
	if c.Path == "" {
		c.Path = "/"
		c.RawPath = ""
	}
	return c.String()
}

func stripDefaultPort(scheme, host string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

// IsFetchable reports whether a raw reference could name a network resource.
// Empty references, fragment-only references and pseudo-protocols are not.
func IsFetchable(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return false
	}
	lower := strings.ToLower(ref)
	for _, p := range unfetchablePrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}

// Resolve resolves ref against base and returns the absolute URL, fragment
// included. ok is false when ref is not fetchable or the result is not http(s).
func Resolve(base, ref string) (resolved string, ok bool) {
	if !IsFetchable(ref) {
		return "", false
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	u := b.ResolveReference(r)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	return u.String(), true
}

// SplitFragment canonicalizes rawURL and returns the fragment it carried.
func SplitFragment(rawURL string) (canonical, fragment string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.NewInvalidURLError(rawURL, "cannot parse URL", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", errors.NewInvalidURLError(rawURL, "URL must have a scheme and host", nil)
	}
	return canonicalString(u), u.EscapedFragment(), nil
}

// Host returns the canonical host of rawURL, or "" if it has none.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	return stripDefaultPort(scheme, strings.ToLower(u.Host))
}

// ValidateStart normalizes a user-supplied start URL, adding https:// when
// no http(s) scheme is given.
func ValidateStart(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.NewInvalidURLError(raw, "URL cannot be empty", nil)
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.NewInvalidURLError(raw, "cannot parse URL", err)
	}
	if u.Hostname() == "" {
		return "", errors.NewInvalidURLError(raw, "URL has no host", nil)
	}
	return u.String(), nil
}

// SafeFolderName derives a default output directory from a start URL.
func SafeFolderName(startURL string) string {
	u, err := url.Parse(startURL)
	host := strings.ToLower(startURL)
	if err == nil && u.Host != "" {
		host = strings.ToLower(u.Host)
	}
	host = strings.TrimPrefix(host, "www.")

	var b strings.Builder
	for _, r := range host {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "mirror"
	}
	return b.String()
}
