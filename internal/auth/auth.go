// Package auth supplies the credentials sent with every mirror request.
// Credentials are static: they are configured up front and never refreshed.
package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// AuthType represents the type of authentication.
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
	AuthTypeAPIKey  AuthType = "apikey"
	AuthTypeBasic   AuthType = "basic"
)

// DefaultAPIKeyHeader is used when no API key header name is configured.
const DefaultAPIKeyHeader = "X-API-Key"

// Credentials holds authentication credentials.
type Credentials struct {
	Type         AuthType `json:"type" yaml:"type"`
	Username     string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password     string   `json:"password,omitempty" yaml:"password,omitempty"`
	Token        string   `json:"token,omitempty" yaml:"token,omitempty"`
	Cookies      string   `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	APIKeyHeader string   `json:"api_key_header,omitempty" yaml:"api_key_header,omitempty"`
	APIKey       string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// Provider supplies request credentials.
type Provider interface {
	// Headers returns headers to include in requests
	Headers() map[string]string

	// Cookies returns cookies to include in requests
	Cookies() []*http.Cookie

	// Type returns the authentication type
	Type() AuthType
}

// NewProvider creates an authentication provider based on credentials.
func NewProvider(creds Credentials) (Provider, error) {
	switch AuthType(strings.ToLower(string(creds.Type))) {
	case "", AuthTypeNone:
		return NoAuth{}, nil
	case AuthTypeSession:
		cookies, err := ParseCookies(creds.Cookies)
		if err != nil {
			return nil, err
		}
		return NewSessionAuth(cookies), nil
	case AuthTypeBearer:
		if creds.Token == "" {
			return nil, fmt.Errorf("bearer auth requires a token")
		}
		return NewBearerAuth(creds.Token), nil
	case AuthTypeAPIKey:
		if creds.APIKey == "" {
			return nil, fmt.Errorf("api key auth requires a key")
		}
		header := creds.APIKeyHeader
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		return NewAPIKeyAuth(map[string]string{header: creds.APIKey}), nil
	case AuthTypeBasic:
		if creds.Username == "" {
			return nil, fmt.Errorf("basic auth requires a username")
		}
		return NewBasicAuth(creds.Username, creds.Password), nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", creds.Type)
	}
}

// Apply sets the provider's headers and cookies on req.
func Apply(p Provider, req *http.Request) {
	if p == nil {
		return
	}
	for k, v := range p.Headers() {
		req.Header.Set(k, v)
	}
	for _, c := range p.Cookies() {
		req.AddCookie(c)
	}
}

// NoAuth represents no authentication.
type NoAuth struct{}

func (NoAuth) Headers() map[string]string { return nil }

func (NoAuth) Cookies() []*http.Cookie { return nil }

func (NoAuth) Type() AuthType { return AuthTypeNone }
