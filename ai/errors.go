package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when the provider no longer knows a batch handle.
	ErrJobNotFound = errors.New("batch job not found")

	// ErrEmptyManifest is returned when submitting a batch with no entries.
	ErrEmptyManifest = errors.New("batch manifest is empty")

	// ErrTooManyRequests is returned when a manifest exceeds the per-job cap.
	ErrTooManyRequests = errors.New("batch manifest exceeds request cap")

	// ErrTooManyInputs is returned when a synchronous call exceeds the input cap.
	ErrTooManyInputs = errors.New("too many inputs for one embedding call")

	// ErrCountMismatch is returned when a provider returns a different number of vectors than inputs.
	ErrCountMismatch = errors.New("embedding count mismatch")

	// ErrMalformedResult is returned for undecodable batch result lines.
	ErrMalformedResult = errors.New("malformed batch result line")

	// ErrNoResults is returned when a completed job has no output location.
	ErrNoResults = errors.New("batch job has no results")
)

// Error is a classified provider failure.
type Error struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is transient.
func (e *Error) IsRetryable() bool { return e.Retryable }

// RetryableStatus classifies an HTTP status code: rate limits, timeouts
// and server errors are transient; every other status is permanent.
func RetryableStatus(code int) bool {
	switch {
	case code == 408, code == 409, code == 429:
		return true
	case code >= 500:
		return true
	}
	return false
}
