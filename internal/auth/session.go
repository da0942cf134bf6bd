package auth

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// SessionAuth sends a fixed set of session cookies.
type SessionAuth struct {
	mu      sync.RWMutex
	cookies []*http.Cookie
}

// NewSessionAuth creates a new session authentication provider.
func NewSessionAuth(cookies []*http.Cookie) *SessionAuth {
	return &SessionAuth{cookies: cookies}
}

// ParseCookies parses a Cookie header value such as "a=1; b=2".
func ParseCookies(header string) ([]*http.Cookie, error) {
	if strings.TrimSpace(header) == "" {
		return nil, fmt.Errorf("session auth requires cookies")
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return nil, fmt.Errorf("invalid cookies: %w", err)
	}
	return cookies, nil
}

// Headers returns no headers for session auth.
func (s *SessionAuth) Headers() map[string]string {
	return nil
}

// Cookies returns a copy of the session cookies.
func (s *SessionAuth) Cookies() []*http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*http.Cookie, len(s.cookies))
	copy(result, s.cookies)
	return result
}

// Type returns the authentication type.
func (s *SessionAuth) Type() AuthType {
	return AuthTypeSession
}

// AddCookie adds a cookie to the session, replacing one with the same name.
func (s *SessionAuth) AddCookie(cookie *http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.cookies {
		if c.Name == cookie.Name {
			s.cookies[i] = cookie
			return
		}
	}
	s.cookies = append(s.cookies, cookie)
}
