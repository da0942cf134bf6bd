package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PentesterFlow/OpenMirror/internal/auth"
	"github.com/PentesterFlow/OpenMirror/internal/errors"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.Retry = errors.RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
	return cfg
}

// =============================================================================
// Config Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.MaxBodySize != 50<<20 {
		t.Errorf("MaxBodySize = %d, want 50MiB", cfg.MaxBodySize)
	}
	if cfg.MaxRedirects != 10 {
		t.Errorf("MaxRedirects = %d, want 10", cfg.MaxRedirects)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should not be empty")
	}
	if cfg.Retry.MaxRetries != 2 {
		t.Errorf("Retry.MaxRetries = %d, want 2", cfg.Retry.MaxRetries)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})
	defer c.Close()

	if c.userAgent != DefaultUserAgent {
		t.Errorf("userAgent = %q, want default", c.userAgent)
	}
	if c.client == nil {
		t.Fatal("internal HTTP client is nil")
	}
}

// =============================================================================
// Fetch Tests
// =============================================================================

func TestClient_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("X-Custom") != "yes" {
			t.Errorf("X-Custom = %q", r.Header.Get("X-Custom"))
		}
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte("body{}"))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.UserAgent = "test-agent"
	cfg.Headers = map[string]string{"X-Custom": "yes"}
	c := NewClient(cfg)
	defer c.Close()

	resp, err := c.Fetch(context.Background(), server.URL+"/style.css")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.ContentType != "text/css" {
		t.Errorf("ContentType = %q, want text/css", resp.ContentType)
	}
	if string(resp.Body) != "body{}" {
		t.Errorf("Body = %q", resp.Body)
	}
	if resp.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", resp.Attempts)
	}
}

func TestClient_Fetch_SniffsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("<!DOCTYPE html><html><body>hi</body></html>"))
	}))
	defer server.Close()

	c := NewClient(testConfig())
	defer c.Close()

	resp, err := c.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.HasPrefix(resp.ContentType, "text/html") {
		t.Errorf("ContentType = %q, want sniffed text/html", resp.ContentType)
	}
}

func TestClient_Fetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<p>moved</p>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient(testConfig())
	defer c.Close()

	resp, err := c.Fetch(context.Background(), server.URL+"/old")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.URL != server.URL+"/old" {
		t.Errorf("URL = %q, want request URL", resp.URL)
	}
	if resp.FinalURL != server.URL+"/new" {
		t.Errorf("FinalURL = %q, want %q", resp.FinalURL, server.URL+"/new")
	}
}

func TestClient_Fetch_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType errors.ErrorType
		attempts int
	}{
		{"not found", http.StatusNotFound, errors.NotFound, 1},
		{"forbidden", http.StatusForbidden, errors.Auth, 1},
		{"gone", http.StatusGone, errors.ClientError, 1},
		{"server error retried", http.StatusInternalServerError, errors.ServerError, 3},
		{"rate limited retried", http.StatusTooManyRequests, errors.RateLimit, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c := NewClient(testConfig())
			defer c.Close()

			resp, err := c.Fetch(context.Background(), server.URL)
			if err == nil {
				t.Fatal("Fetch() should fail on non-2xx status")
			}
			if !errors.IsFetchError(err) {
				t.Errorf("IsFetchError(%v) = false", err)
			}
			if got := errors.GetErrorType(err); got != tt.wantType {
				t.Errorf("error type = %v, want %v", got, tt.wantType)
			}
			if errors.GetStatusCode(err) != tt.status {
				t.Errorf("status code = %d, want %d", errors.GetStatusCode(err), tt.status)
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Errorf("response should carry status %d", tt.status)
			}
			if got := atomic.LoadInt32(&hits); int(got) != tt.attempts {
				t.Errorf("server hits = %d, want %d", got, tt.attempts)
			}
		})
	}
}

func TestClient_Fetch_RetryThenSuccess(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := NewClient(testConfig())
	defer c.Close()

	resp, err := c.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", resp.Attempts)
	}
}

func TestClient_Fetch_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBodySize = 1024
	c := NewClient(cfg)
	defer c.Close()

	_, err := c.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Fetch() should fail when the body exceeds the limit")
	}
	if errors.IsRetryable(err) {
		t.Error("oversized body should not be retried")
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.Retry.MaxRetries = 0
	c := NewClient(cfg)
	defer c.Close()

	_, err := c.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Fetch() should time out")
	}
	if got := errors.GetErrorType(err); got != errors.Timeout {
		t.Errorf("error type = %v, want Timeout", got)
	}
}

func TestClient_Fetch_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := testConfig()
	cfg.Retry.MaxRetries = 0
	c := NewClient(cfg)
	defer c.Close()

	resp, err := c.Fetch(context.Background(), url)
	if err == nil {
		t.Fatal("Fetch() should fail against a closed server")
	}
	if resp != nil {
		t.Error("no response expected on network failure")
	}
	if !errors.IsFetchError(err) {
		t.Errorf("IsFetchError(%v) = false", err)
	}
}

func TestClient_Fetch_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(testConfig())
	defer c.Close()

	_, err := c.Fetch(ctx, server.URL)
	if got := errors.GetErrorType(err); got != errors.Cancelled {
		t.Errorf("error type = %v, want Cancelled", got)
	}
}

func TestClient_Fetch_Auth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Auth = auth.NewBearerAuth("secret")
	c := NewClient(cfg)
	defer c.Close()

	if _, err := c.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}
