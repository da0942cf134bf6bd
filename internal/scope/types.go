package scope

// Rules defines the optional narrowing applied on top of the same-host check.
type Rules struct {
	IncludePatterns []string
	ExcludePatterns []string
	AllowedDomains  []string
	MaxDepth        int
}
