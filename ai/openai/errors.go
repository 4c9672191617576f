package openai

import (
	"errors"
	"regexp"
	"strconv"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/poiesic/catalogsync/ai"
	"github.com/poiesic/catalogsync/retry"
)

// langchaingo reports HTTP failures only through the message text.
var statusPattern = regexp.MustCompile(`status code:? (\d{3})`)

// classify converts a client error into an *ai.Error with a status code and
// retryability decision.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &ai.Error{Op: op, StatusCode: apiErr.HTTPStatusCode, Retryable: ai.RetryableStatus(apiErr.HTTPStatusCode), Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &ai.Error{Op: op, StatusCode: reqErr.HTTPStatusCode, Retryable: ai.RetryableStatus(reqErr.HTTPStatusCode), Err: err}
	}

	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return &ai.Error{Op: op, StatusCode: code, Retryable: ai.RetryableStatus(code), Err: err}
	}

	return &ai.Error{Op: op, Retryable: retry.IsRetryable(err), Err: err}
}

// statusCode extracts the HTTP status of a classified error, or 0.
func statusCode(err error) int {
	var aiErr *ai.Error
	if errors.As(err, &aiErr) {
		return aiErr.StatusCode
	}
	return 0
}
