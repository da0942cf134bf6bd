package parser

import (
	"strings"
	"unicode"
)

// Candidate is one entry of a srcset attribute.
type Candidate struct {
	URL        string
	Descriptor string // "2x", "300w" or empty
}

// ParseSrcset splits a srcset value into candidates. Only the URL token
// before the descriptor names a resource.
func ParseSrcset(s string) []Candidate {
	var out []Candidate
	i := 0
	for i < len(s) {
		for i < len(s) && (isSpace(s[i]) || s[i] == ',') {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && !isSpace(s[i]) {
			i++
		}
		u := s[start:i]

		if strings.HasSuffix(u, ",") {
			out = append(out, Candidate{URL: strings.TrimRight(u, ",")})
			continue
		}

		start = i
		for i < len(s) && s[i] != ',' {
			i++
		}
		out = append(out, Candidate{
			URL:        u,
			Descriptor: strings.TrimFunc(s[start:i], unicode.IsSpace),
		})
	}
	return out
}

// FormatSrcset joins candidates back into a srcset value.
func FormatSrcset(candidates []Candidate) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Descriptor == "" {
			parts = append(parts, c.URL)
			continue
		}
		parts = append(parts, c.URL+" "+c.Descriptor)
	}
	return strings.Join(parts, ", ")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
