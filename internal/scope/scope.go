// Package scope decides which URLs belong to the mirrored site and
// normalizes URLs into identity keys.
package scope

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PentesterFlow/OpenMirror/internal/errors"
)

// Checker validates URLs against the site host and optional rules. It is
// immutable after construction and safe for concurrent use.
type Checker struct {
	rules          Rules
	siteHost       string
	includeRegexps []*regexp.Regexp
	excludeRegexps []*regexp.Regexp
	allowedHosts   map[string]struct{}
}

// NewChecker creates a checker for the site rooted at startURL.
func NewChecker(startURL string, rules Rules) (*Checker, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return nil, errors.NewInvalidURLError(startURL, "cannot parse start URL", err)
	}
	if u.Host == "" {
		return nil, errors.NewInvalidURLError(startURL, "start URL has no host", nil)
	}

	c := &Checker{
		rules:        rules,
		siteHost:     Host(startURL),
		allowedHosts: make(map[string]struct{}),
	}

	for _, pattern := range rules.IncludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		c.includeRegexps = append(c.includeRegexps, re)
	}

	for _, pattern := range rules.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		c.excludeRegexps = append(c.excludeRegexps, re)
	}

	c.allowedHosts[c.siteHost] = struct{}{}
	for _, domain := range rules.AllowedDomains {
		c.allowedHosts[strings.ToLower(domain)] = struct{}{}
	}

	return c, nil
}

// SiteHost returns the canonical host of the start URL.
func (c *Checker) SiteHost() string {
	return c.siteHost
}

// IsInScope reports whether urlStr is on the site. A URL without a host is
// relative and therefore on-site.
func (c *Checker) IsInScope(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return true
	}

	_, ok := c.allowedHosts[Host(urlStr)]
	return ok
}

// AllowsPage reports whether a page at depth may be admitted to the crawl.
// It applies the host check, then exclude and include patterns, then depth.
func (c *Checker) AllowsPage(urlStr string, depth int) bool {
	if !c.IsInScope(urlStr) {
		return false
	}

	if c.rules.MaxDepth > 0 && depth > c.rules.MaxDepth {
		return false
	}

	for _, re := range c.excludeRegexps {
		if re.MatchString(urlStr) {
			return false
		}
	}

	if len(c.includeRegexps) > 0 {
		for _, re := range c.includeRegexps {
			if re.MatchString(urlStr) {
				return true
			}
		}
		return false
	}

	return true
}
