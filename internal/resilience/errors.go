// Package resilience provides retry and circuit breaker support for
// calls to external fetch sources.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// RetryableError marks an error as safe to retry, optionally carrying the
// HTTP status code that produced it.
type RetryableError struct {
	Err        error
	StatusCode int
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// MarkRetryable wraps err as retryable with an optional HTTP status code.
func MarkRetryable(err error, statusCode int) *RetryableError {
	return &RetryableError{Err: err, StatusCode: statusCode}
}

// Retryable reports whether err (or anything in its chain) is worth
// retrying: an explicit RetryableError, a network timeout, a connection
// level failure, or a message matching known transient patterns.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// RetryableStatus reports whether an HTTP status code indicates a
// transient server-side condition.
func RetryableStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
