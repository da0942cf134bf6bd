package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BearerAuth sends an Authorization: Bearer token.
type BearerAuth struct {
	token  string
	expiry time.Time
}

// NewBearerAuth creates a bearer provider. When the token is a JWT its exp
// claim is read so that an expired token can be reported before the run.
func NewBearerAuth(token string) *BearerAuth {
	b := &BearerAuth{token: token}
	if exp, err := parseExpiry(token); err == nil {
		b.expiry = exp
	}
	return b
}

// Headers returns the Authorization header.
func (b *BearerAuth) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + b.token}
}

// Cookies returns no cookies for bearer auth.
func (b *BearerAuth) Cookies() []*http.Cookie {
	return nil
}

// Type returns the authentication type.
func (b *BearerAuth) Type() AuthType {
	return AuthTypeBearer
}

// Expiry returns the JWT expiry, or the zero time when unknown.
func (b *BearerAuth) Expiry() time.Time {
	return b.expiry
}

// Expired reports whether the token carries an exp claim in the past.
func (b *BearerAuth) Expired() bool {
	return !b.expiry.IsZero() && time.Now().After(b.expiry)
}

// parseExpiry extracts the expiration time from a JWT.
func parseExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid JWT format")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		payload, err = base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return time.Time{}, err
		}
	}

	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.Exp == 0 {
		return time.Time{}, fmt.Errorf("no exp claim")
	}
	return time.Unix(claims.Exp, 0), nil
}

// APIKeyAuth sends fixed API key headers.
type APIKeyAuth struct {
	headers map[string]string
}

// NewAPIKeyAuth creates an API key provider.
func NewAPIKeyAuth(headers map[string]string) *APIKeyAuth {
	return &APIKeyAuth{headers: headers}
}

// Headers returns a copy of the API key headers.
func (a *APIKeyAuth) Headers() map[string]string {
	result := make(map[string]string, len(a.headers))
	for k, v := range a.headers {
		result[k] = v
	}
	return result
}

// Cookies returns no cookies for API key auth.
func (a *APIKeyAuth) Cookies() []*http.Cookie {
	return nil
}

// Type returns the authentication type.
func (a *APIKeyAuth) Type() AuthType {
	return AuthTypeAPIKey
}

// BasicAuth sends HTTP Basic credentials.
type BasicAuth struct {
	username string
	password string
}

// NewBasicAuth creates a Basic auth provider.
func NewBasicAuth(username, password string) *BasicAuth {
	return &BasicAuth{username: username, password: password}
}

// Headers returns the Authorization header.
func (b *BasicAuth) Headers() map[string]string {
	creds := base64.StdEncoding.EncodeToString([]byte(b.username + ":" + b.password))
	return map[string]string{"Authorization": "Basic " + creds}
}

// Cookies returns no cookies for Basic auth.
func (b *BasicAuth) Cookies() []*http.Cookie {
	return nil
}

// Type returns the authentication type.
func (b *BasicAuth) Type() AuthType {
	return AuthTypeBasic
}
