package parser

import (
	"regexp"
	"strings"

	"github.com/PentesterFlow/OpenMirror/internal/scope"
)

// cssRefPattern matches @import targets (groups 1-3) and url() arguments
// (groups 4-6). An @import url(...) is consumed by the first alternative.
var cssRefPattern = regexp.MustCompile(`(?i)@import\s+(?:url\(\s*)?(?:"([^"]*)"|'([^']*)'|([^"'()\s;]+))|url\(\s*(?:"([^"]*)"|'([^']*)'|([^"'()\s]+))\s*\)`)

// CSSRef is a reference found in stylesheet text. Start and End delimit
// Value inside the scanned text, quotes excluded.
type CSSRef struct {
	Start  int
	End    int
	Value  string
	Import bool
	Quoted bool
}

// ScanCSS returns the @import and url() references of text in order.
// Empty values and data URIs are not reported.
func ScanCSS(text string) []CSSRef {
	var refs []CSSRef
	for _, m := range cssRefPattern.FindAllStringSubmatchIndex(text, -1) {
		for g := 1; g <= 6; g++ {
			start, end := m[2*g], m[2*g+1]
			if start < 0 {
				continue
			}
			value := text[start:end]
			if strings.TrimSpace(value) == "" || hasDataPrefix(value) {
				break
			}
			refs = append(refs, CSSRef{
				Start:  start,
				End:    end,
				Value:  value,
				Import: g <= 3,
				Quoted: g != 3 && g != 6,
			})
			break
		}
	}
	return refs
}

// ExtractCSS resolves the references of a stylesheet against its own URL.
func ExtractCSS(text, cssURL string) []Reference {
	var out []Reference
	for _, ref := range ScanCSS(text) {
		resolved, ok := scope.Resolve(cssURL, ref.Value)
		if !ok {
			continue
		}
		kind := KindCSSURL
		if ref.Import {
			kind = KindCSSImport
		}
		out = append(out, Reference{Kind: kind, URL: resolved, Raw: ref.Value})
	}
	return out
}

// ReplaceCSS rewrites reference values in text. replace returns the new
// value and whether to apply it; only the value span changes.
func ReplaceCSS(text string, replace func(CSSRef) (string, bool)) string {
	refs := ScanCSS(text)
	if len(refs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, ref := range refs {
		v, ok := replace(ref)
		if !ok {
			continue
		}
		if !ref.Quoted && strings.ContainsAny(v, " \t\n\"'()") {
			v = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
		}
		b.WriteString(text[last:ref.Start])
		b.WriteString(v)
		last = ref.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func hasDataPrefix(v string) bool {
	v = strings.TrimSpace(v)
	return len(v) >= 5 && strings.EqualFold(v[:5], "data:")
}
