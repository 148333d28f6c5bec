package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrCanceled is returned when the cancellation token was already set
	// before an operation started. No network I/O was attempted.
	ErrCanceled = errors.New("pipeline canceled")
	// ErrEmptyContent is returned when a page was retrieved but produced no
	// text after cleaning.
	ErrEmptyContent = errors.New("page produced no text")
)

// HTTPError reports a non-success response status.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Status, e.URL)
}

// TransportError reports a network-level failure, including timeouts.
type TransportError struct {
	URL   string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the underlying cause was a timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Cause, &netErr) && netErr.Timeout()
}

// ParseError reports a failure to parse the retrieved markup.
type ParseError struct {
	URL   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// FailureReason classifies a fetch error into a short, stable label used for
// metrics and log fields.
func FailureReason(err error) string {
	var (
		httpErr      *HTTPError
		transportErr *TransportError
		parseErr     *ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCanceled):
		return "canceled"
	case errors.Is(err, ErrEmptyContent):
		return "empty"
	case errors.As(err, &httpErr):
		return "http_status"
	case errors.As(err, &transportErr):
		if transportErr.Timeout() {
			return "timeout"
		}
		return "transport"
	case errors.As(err, &parseErr):
		return "parse"
	default:
		return "other"
	}
}

// Retryable reports whether another attempt could plausibly succeed.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrCanceled) || errors.Is(err, ErrEmptyContent) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= http.StatusInternalServerError || httpErr.Status == http.StatusTooManyRequests
	}
	var parseErr *ParseError
	return !errors.As(err, &parseErr)
}
