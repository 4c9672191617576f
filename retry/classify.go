package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// RetryableError is implemented by errors that declare their own retryability.
type RetryableError interface {
	error
	IsRetryable() bool
}

type classified struct {
	err       error
	retryable bool
}

func (c *classified) Error() string     { return c.err.Error() }
func (c *classified) Unwrap() error     { return c.err }
func (c *classified) IsRetryable() bool { return c.retryable }

// Transient marks err as worth retrying.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classified{err: err, retryable: true}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classified{err: err, retryable: false}
}

var retryablePatterns = []string{
	// Connection errors
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"deadlock",
	"network is unreachable",
	"unexpected eof",
	// HTTP status codes
	"status code: 429",
	"status code: 500",
	"status code: 502",
	"status code: 503",
	"status code: 504",
	// Provider messages
	"rate limit",
	"service unavailable",
	"too many requests",
	"server_error",
	"overloaded",
}

// IsRetryable determines if an error is transient and worth retrying.
//
// Checked in order:
//  1. context.Canceled is never retryable
//  2. an error in the chain implementing RetryableError decides
//  3. per-call deadlines and net timeouts are retryable
//  4. known transient message patterns
//
// Anything else is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
