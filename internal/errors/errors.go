// Package errors provides the error taxonomy used while mirroring a site.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// InvalidURL is a malformed start URL. Fatal at startup.
	InvalidURL
	// OutputDir means the mirror root could not be created. Fatal at startup.
	OutputDir
	// Network represents network-related errors (DNS, connection).
	Network
	// Timeout represents timeout errors.
	Timeout
	// RateLimit represents 429 responses.
	RateLimit
	// Auth represents 401 and 403 responses.
	Auth
	// NotFound represents 404 responses.
	NotFound
	// ServerError represents 5xx responses.
	ServerError
	// ClientError represents the remaining 4xx responses.
	ClientError
	// ParseSkip means a document could not be scanned for resources and was
	// saved unmodified.
	ParseSkip
	// Write means a local file could not be written.
	Write
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case InvalidURL:
		return "invalid_url"
	case OutputDir:
		return "output_dir"
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case RateLimit:
		return "rate_limit"
	case Auth:
		return "auth"
	case NotFound:
		return "not_found"
	case ServerError:
		return "server_error"
	case ClientError:
		return "client_error"
	case ParseSkip:
		return "parse_skip"
	case Write:
		return "write"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsRetryable returns whether errors of this type should be retried.
func (t ErrorType) IsRetryable() bool {
	switch t {
	case Network, Timeout, RateLimit, ServerError:
		return true
	default:
		return false
	}
}

// IsFetch reports whether the type describes a failed fetch of one item.
func (t ErrorType) IsFetch() bool {
	switch t {
	case Network, Timeout, RateLimit, Auth, NotFound, ServerError, ClientError:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the type aborts the whole run.
func (t ErrorType) IsFatal() bool {
	return t == InvalidURL || t == OutputDir
}

// CrawlError represents a categorized error.
type CrawlError struct {
	Type       ErrorType
	URL        string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
	Retryable  bool
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// Is matches another *CrawlError of the same type.
func (e *CrawlError) Is(target error) bool {
	t, ok := target.(*CrawlError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(errType ErrorType, url, operation, message string, cause error) *CrawlError {
	return &CrawlError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: errType.IsRetryable(),
	}
}

// NewInvalidURLError creates an error for a URL that lacks scheme or host.
func NewInvalidURLError(url, message string, cause error) *CrawlError {
	return NewCrawlError(InvalidURL, url, "parse_url", message, cause)
}

// NewOutputDirError creates an error for an uncreatable mirror root.
func NewOutputDirError(dir string, cause error) *CrawlError {
	return NewCrawlError(OutputDir, dir, "create_output_dir", "cannot create output directory", cause)
}

// NewNetworkError creates a network error.
func NewNetworkError(url, operation string, cause error) *CrawlError {
	return NewCrawlError(Network, url, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *CrawlError {
	return NewCrawlError(Timeout, url, operation, "request timed out", cause)
}

// NewHTTPStatusError creates an error for a non-2xx response.
func NewHTTPStatusError(errType ErrorType, url string, statusCode int, message string) *CrawlError {
	err := NewCrawlError(errType, url, "fetch", message, nil)
	err.StatusCode = statusCode
	return err
}

// NewParseSkipError creates an error for a document saved without extraction.
func NewParseSkipError(url string, cause error) *CrawlError {
	return NewCrawlError(ParseSkip, url, "parse", "document saved without extraction", cause)
}

// NewWriteError creates an error for a failed local write.
func NewWriteError(url, path string, cause error) *CrawlError {
	return NewCrawlError(Write, url, "write", "cannot write "+path, cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *CrawlError {
	return NewCrawlError(Cancelled, url, operation, "operation cancelled", context.Canceled)
}

// Categorize determines the error type of a transport error.
func Categorize(err error, url string) *CrawlError {
	if err == nil {
		return nil
	}

	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(url, "fetch")
	}

	if isTimeout(err) {
		return NewTimeoutError(url, "fetch", err)
	}

	if isNetworkError(err) {
		return NewNetworkError(url, "fetch", err)
	}

	return NewCrawlError(Unknown, url, "fetch", err.Error(), err)
}

// CategorizeHTTPStatus returns nil for 2xx codes and a fetch error otherwise.
func CategorizeHTTPStatus(statusCode int, url string) *CrawlError {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == 401:
		return NewHTTPStatusError(Auth, url, statusCode, "unauthorized")
	case statusCode == 403:
		return NewHTTPStatusError(Auth, url, statusCode, "forbidden")
	case statusCode == 404:
		return NewHTTPStatusError(NotFound, url, statusCode, "page not found")
	case statusCode == 429:
		return NewHTTPStatusError(RateLimit, url, statusCode, "rate limited")
	case statusCode >= 500:
		return NewHTTPStatusError(ServerError, url, statusCode, fmt.Sprintf("server returned %d", statusCode))
	default:
		return NewHTTPStatusError(ClientError, url, statusCode, fmt.Sprintf("unexpected status %d", statusCode))
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp")
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Retryable
	}

	return isTimeout(err) || isNetworkError(err)
}

// IsFetchError reports whether err is a per-item fetch failure.
func IsFetchError(err error) bool {
	return GetErrorType(err).IsFetch()
}

// IsFatal reports whether err should abort the run.
func IsFatal(err error) bool {
	return GetErrorType(err).IsFatal()
}

// GetStatusCode extracts the status code from an error.
func GetStatusCode(err error) int {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.StatusCode
	}
	return 0
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Type
	}
	return Unknown
}

// GetOperation extracts the failed operation from an error.
func GetOperation(err error) string {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Operation
	}
	return ""
}
