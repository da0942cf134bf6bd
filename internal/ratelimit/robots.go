package ratelimit

import (
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// Robots holds the parsed robots.txt of the mirrored site. A nil *Robots
// allows everything.
type Robots struct {
	data  *robotstxt.RobotsData
	group *robotstxt.Group
}

// ParseRobots parses a robots.txt body for userAgent.
func ParseRobots(body []byte, userAgent string) (*Robots, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, err
	}
	return &Robots{data: data, group: data.FindGroup(userAgent)}, nil
}

// Allowed reports whether rawURL may be crawled.
func (r *Robots) Allowed(rawURL string) bool {
	if r == nil || r.group == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return r.group.Test(p)
}

// CrawlDelay returns the Crawl-delay for the configured agent.
func (r *Robots) CrawlDelay() time.Duration {
	if r == nil || r.group == nil {
		return 0
	}
	return r.group.CrawlDelay
}

// Sitemaps returns the Sitemap URLs declared in robots.txt.
func (r *Robots) Sitemaps() []string {
	if r == nil {
		return nil
	}
	return r.data.Sitemaps
}
