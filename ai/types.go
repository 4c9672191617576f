package ai

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// EmbeddingsEndpoint is the URL every batch manifest line targets.
const EmbeddingsEndpoint = "/v1/embeddings"

// BatchState is the provider-independent state of a batch job.
type BatchState int

const (
	// BatchRunning covers every non-terminal provider status.
	BatchRunning BatchState = iota + 1
	BatchCompleted
	BatchFailed
)

func (s BatchState) String() string {
	switch s {
	case BatchRunning:
		return "running"
	case BatchCompleted:
		return "completed"
	case BatchFailed:
		return "failed"
	}
	return "unknown"
}

// ManifestEntry is one request in a batch manifest.
type ManifestEntry struct {
	CustomID string // Caller-assigned correlation id
	Text     string
}

// BatchRequest describes one shard to submit.
type BatchRequest struct {
	RunID      string
	ShardIndex int
	Entries    []ManifestEntry
}

// BatchJob is the provider's view of a submitted job.
type BatchJob struct {
	Handle         string
	State          BatchState
	ProviderStatus string
	ResultLocation string // Set once completed
	ErrorLocation  string
	Total          int
	Completed      int
	Failed         int
}

type manifestLine struct {
	CustomID string       `json:"custom_id"`
	Method   string       `json:"method"`
	URL      string       `json:"url"`
	Body     manifestBody `json:"body"`
}

type manifestBody struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// EncodeManifest renders entries as the JSONL manifest the batch API expects.
// dimensions of 0 leaves the model default.
func EncodeManifest(model string, dimensions int, entries []ManifestEntry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyManifest
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		line := manifestLine{
			CustomID: e.CustomID,
			Method:   "POST",
			URL:      EmbeddingsEndpoint,
			Body: manifestBody{
				Model:      model,
				Input:      e.Text,
				Dimensions: dimensions,
			},
		}
		if err := enc.Encode(&line); err != nil {
			return nil, fmt.Errorf("encode manifest line %s: %w", e.CustomID, err)
		}
	}
	return buf.Bytes(), nil
}

// ResultLine is one parsed line of a batch result stream.
type ResultLine struct {
	CustomID string
	Vector   []float32
	Err      string // Non-empty when the provider failed this request
}

type resultLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int `json:"status_code"`
		Body       struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
			Error *providerError `json:"error"`
		} `json:"body"`
	} `json:"response"`
	Error *providerError `json:"error"`
}

type providerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *providerError) String() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// ParseResultLine decodes one result line. Provider-side failures are reported
// through ResultLine.Err; only undecodable input returns an error.
func ParseResultLine(data []byte) (ResultLine, error) {
	var raw resultLine
	if err := json.Unmarshal(data, &raw); err != nil {
		return ResultLine{}, fmt.Errorf("%w: %w", ErrMalformedResult, err)
	}
	if raw.CustomID == "" {
		return ResultLine{}, fmt.Errorf("%w: missing custom_id", ErrMalformedResult)
	}

	out := ResultLine{CustomID: raw.CustomID}
	switch {
	case raw.Error != nil:
		out.Err = raw.Error.String()
	case raw.Response == nil:
		out.Err = "no response"
	case raw.Response.Body.Error != nil:
		out.Err = raw.Response.Body.Error.String()
	case raw.Response.StatusCode != 0 && raw.Response.StatusCode != 200:
		out.Err = fmt.Sprintf("status %d", raw.Response.StatusCode)
	case len(raw.Response.Body.Data) == 0 || len(raw.Response.Body.Data[0].Embedding) == 0:
		out.Err = "empty embedding"
	default:
		out.Vector = raw.Response.Body.Data[0].Embedding
	}
	return out, nil
}

// ReadResults streams a result file, calling fn for every decodable line.
// Undecodable lines are counted and skipped. An error from fn stops the scan.
func ReadResults(r io.Reader, fn func(ResultLine) error) (malformed int, err error) {
	scanner := bufio.NewScanner(r)
	// Lines carry full float vectors; 1536 dims run to ~40KB
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		parsed, perr := ParseResultLine(line)
		if perr != nil {
			malformed++
			continue
		}
		if err := fn(parsed); err != nil {
			return malformed, err
		}
	}
	return malformed, scanner.Err()
}
