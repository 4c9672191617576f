package ai

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeManifest(t *testing.T) {
	entries := []ManifestEntry{
		{CustomID: "101", Text: "dd0385100 | air max 90"},
		{CustomID: "102", Text: "dunk low"},
	}

	data, err := EncodeManifest("text-embedding-3-small", 0, entries)
	require.NoError(t, err)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var lines []map[string]any
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "101", lines[0]["custom_id"])
	assert.Equal(t, "POST", lines[0]["method"])
	assert.Equal(t, EmbeddingsEndpoint, lines[0]["url"])
	body := lines[0]["body"].(map[string]any)
	assert.Equal(t, "text-embedding-3-small", body["model"])
	assert.Equal(t, "dd0385100 | air max 90", body["input"])
	_, hasDims := body["dimensions"]
	assert.False(t, hasDims, "zero dimensions should be omitted")
}

func TestEncodeManifest_Empty(t *testing.T) {
	_, err := EncodeManifest("m", 0, nil)
	assert.ErrorIs(t, err, ErrEmptyManifest)
}

func TestParseResultLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantID     string
		wantVector []float32
		wantErrStr string
		wantErr    error
	}{
		{
			name:       "success",
			line:       `{"id":"batch_req_1","custom_id":"101","response":{"status_code":200,"body":{"data":[{"embedding":[0.1,0.2]}]}},"error":null}`,
			wantID:     "101",
			wantVector: []float32{0.1, 0.2},
		},
		{
			name:       "provider error",
			line:       `{"custom_id":"102","response":null,"error":{"code":"invalid_request","message":"input too long"}}`,
			wantID:     "102",
			wantErrStr: "invalid_request: input too long",
		},
		{
			name:       "non-200 body error",
			line:       `{"custom_id":"103","response":{"status_code":400,"body":{"error":{"message":"bad input"}}}}`,
			wantID:     "103",
			wantErrStr: "bad input",
		},
		{
			name:       "non-200 status",
			line:       `{"custom_id":"104","response":{"status_code":500,"body":{}}}`,
			wantID:     "104",
			wantErrStr: "status 500",
		},
		{
			name:       "empty data",
			line:       `{"custom_id":"105","response":{"status_code":200,"body":{"data":[]}}}`,
			wantID:     "105",
			wantErrStr: "empty embedding",
		},
		{
			name:    "invalid json",
			line:    `{not json`,
			wantErr: ErrMalformedResult,
		},
		{
			name:    "missing custom id",
			line:    `{"response":{"status_code":200}}`,
			wantErr: ErrMalformedResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResultLine([]byte(tt.line))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.CustomID)
			assert.Equal(t, tt.wantVector, got.Vector)
			assert.Equal(t, tt.wantErrStr, got.Err)
		})
	}
}

func TestReadResults(t *testing.T) {
	input := strings.Join([]string{
		`{"custom_id":"1","response":{"status_code":200,"body":{"data":[{"embedding":[1,0]}]}}}`,
		``,
		`garbage`,
		`{"custom_id":"2","error":{"message":"boom"}}`,
	}, "\n")

	var got []ResultLine
	malformed, err := ReadResults(strings.NewReader(input), func(l ResultLine) error {
		got = append(got, l)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, malformed)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].CustomID)
	assert.Equal(t, "boom", got[1].Err)
}

func TestReadResults_CallbackErrorStops(t *testing.T) {
	input := `{"custom_id":"1","error":{"message":"x"}}` + "\n" + `{"custom_id":"2","error":{"message":"y"}}`
	stop := errors.New("stop")
	calls := 0
	_, err := ReadResults(strings.NewReader(input), func(ResultLine) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestError(t *testing.T) {
	inner := errors.New("rate limited")
	err := &Error{Op: "embed", StatusCode: 429, Retryable: true, Err: inner}
	assert.Equal(t, "embed: status 429: rate limited", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.True(t, err.IsRetryable())

	noStatus := &Error{Op: "submit", Err: inner}
	assert.Equal(t, "submit: rate limited", noStatus.Error())
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 409, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{400, 401, 403, 404, 422} {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}

func TestBatchState_String(t *testing.T) {
	assert.Equal(t, "running", BatchRunning.String())
	assert.Equal(t, "completed", BatchCompleted.String())
	assert.Equal(t, "failed", BatchFailed.String())
	assert.Equal(t, "unknown", BatchState(0).String())
}
