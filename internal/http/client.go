// Package http fetches pages and assets for the mirror.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/PentesterFlow/OpenMirror/internal/auth"
	"github.com/PentesterFlow/OpenMirror/internal/errors"
)

// Client fetches resources with retries, redirect following and a
// per-fetch timeout.
type Client struct {
	client      *http.Client
	userAgent   string
	headers     map[string]string
	auth        auth.Provider
	maxBodySize int64
	retrier     *errors.Retrier
}

// Config holds configuration for the HTTP client.
type Config struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	MaxRedirects        int
	MaxBodySize         int64
	UserAgent           string
	Headers             map[string]string
	Auth                auth.Provider
	SkipTLSVerify       bool
	Retry               errors.RetryConfig
}

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (compatible; OpenMirror/1.0; +https://github.com/PentesterFlow/OpenMirror)"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		MaxConnsPerHost:     16,
		MaxRedirects:        10,
		MaxBodySize:         50 << 20,
		UserAgent:           DefaultUserAgent,
		Retry:               errors.DefaultRetryConfig(),
	}
}

// NewClient creates a new HTTP client.
func NewClient(config Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	maxRedirects := config.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:   userAgent,
		headers:     config.Headers,
		auth:        config.Auth,
		maxBodySize: config.MaxBodySize,
		retrier:     errors.NewRetrier(config.Retry),
	}
}

// Response is a fetched resource.
type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	Header      http.Header
	ContentType string // header value, or sniffed from the body when absent
	Body        []byte
	Duration    time.Duration
	Attempts    int
}

// Fetch GETs targetURL, retrying transient failures. Network failures,
// timeouts and non-2xx statuses return a fetch error; the response is still
// returned when one was received.
func (c *Client) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	var resp *Response

	result := c.retrier.Do(ctx, "fetch", targetURL, func(ctx context.Context) error {
		var err error
		resp, err = c.get(ctx, targetURL)
		return err
	})

	if resp != nil {
		resp.Attempts = result.Attempts
	}
	if !result.Success {
		return resp, result.LastError
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, targetURL string) (*Response, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, errors.NewInvalidURLError(targetURL, "cannot build request", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	auth.Apply(c.auth, req)

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Categorize(err, targetURL)
	}
	defer httpResp.Body.Close()

	resp := &Response{
		URL:        targetURL,
		FinalURL:   httpResp.Request.URL.String(),
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
	}

	if httpErr := errors.CategorizeHTTPStatus(httpResp.StatusCode, targetURL); httpErr != nil {
		io.Copy(io.Discard, io.LimitReader(httpResp.Body, 64<<10))
		resp.Duration = time.Since(start)
		return resp, httpErr
	}

	reader := io.Reader(httpResp.Body)
	if c.maxBodySize > 0 {
		reader = io.LimitReader(httpResp.Body, c.maxBodySize+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return resp, errors.Categorize(err, targetURL)
	}
	if c.maxBodySize > 0 && int64(len(body)) > c.maxBodySize {
		return resp, errors.NewCrawlError(errors.ClientError, targetURL, "body_read",
			fmt.Sprintf("response body exceeds %d bytes", c.maxBodySize), nil)
	}

	resp.Body = body
	resp.ContentType = httpResp.Header.Get("Content-Type")
	if resp.ContentType == "" {
		resp.ContentType = http.DetectContentType(body)
	}
	resp.Duration = time.Since(start)
	return resp, nil
}

// Close closes idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
