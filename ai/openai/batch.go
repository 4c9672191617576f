package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/poiesic/catalogsync/ai"
)

// BatchEmbedder implements ai.BatchEmbedder over the Files and Batches APIs.
type BatchEmbedder struct {
	client      *goopenai.Client
	model       string
	dimensions  int
	window      string
	maxRequests int
	logger      *slog.Logger
}

func newBatchEmbedder(config *ai.Config, httpClient *http.Client) (*BatchEmbedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.EmbeddingHost
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	return &BatchEmbedder{
		client:      goopenai.NewClientWithConfig(clientConfig),
		model:       config.EmbeddingModel,
		dimensions:  config.Dimensions,
		window:      config.CompletionWindow,
		maxRequests: config.MaxBatchRequests,
		logger:      slog.Default().With("component", "openai-batch"),
	}, nil
}

// NewBatchEmbedder creates a batch embedder using the provided configuration.
func NewBatchEmbedder(config *ai.Config) (ai.BatchEmbedder, error) {
	return newBatchEmbedder(config, nil)
}

// SubmitBatch uploads the shard manifest and creates an embeddings batch job.
func (b *BatchEmbedder) SubmitBatch(ctx context.Context, req ai.BatchRequest) (ai.BatchJob, error) {
	if len(req.Entries) > b.maxRequests {
		return ai.BatchJob{}, fmt.Errorf("%w: %d > %d", ai.ErrTooManyRequests, len(req.Entries), b.maxRequests)
	}
	manifest, err := ai.EncodeManifest(b.model, b.dimensions, req.Entries)
	if err != nil {
		return ai.BatchJob{}, err
	}

	file, err := b.client.CreateFileBytes(ctx, goopenai.FileBytesRequest{
		Name:    fmt.Sprintf("%s-shard-%04d.jsonl", req.RunID, req.ShardIndex),
		Bytes:   manifest,
		Purpose: goopenai.PurposeBatch,
	})
	if err != nil {
		return ai.BatchJob{}, classify("upload manifest", err)
	}

	resp, err := b.client.CreateBatch(ctx, goopenai.CreateBatchRequest{
		InputFileID:      file.ID,
		Endpoint:         goopenai.BatchEndpointEmbeddings,
		CompletionWindow: b.window,
		Metadata: map[string]any{
			"run_id": req.RunID,
			"shard":  strconv.Itoa(req.ShardIndex),
		},
	})
	if err != nil {
		return ai.BatchJob{}, classify("create batch", err)
	}

	b.logger.Info("submitted batch", "run", req.RunID, "shard", req.ShardIndex,
		"handle", resp.ID, "requests", len(req.Entries))
	return toBatchJob(resp.Batch), nil
}

// BatchStatus polls a job by handle.
func (b *BatchEmbedder) BatchStatus(ctx context.Context, handle string) (ai.BatchJob, error) {
	resp, err := b.client.RetrieveBatch(ctx, handle)
	if err != nil {
		err = classify("retrieve batch", err)
		if statusCode(err) == http.StatusNotFound {
			return ai.BatchJob{}, fmt.Errorf("%w: %s", ai.ErrJobNotFound, handle)
		}
		return ai.BatchJob{}, err
	}
	return toBatchJob(resp.Batch), nil
}

// FetchResults opens the output file of a completed job.
func (b *BatchEmbedder) FetchResults(ctx context.Context, location string) (io.ReadCloser, error) {
	if location == "" {
		return nil, ai.ErrNoResults
	}
	raw, err := b.client.GetFileContent(ctx, location)
	if err != nil {
		err = classify("fetch results", err)
		if statusCode(err) == http.StatusNotFound {
			return nil, errors.Join(ai.ErrNoResults, err)
		}
		return nil, err
	}
	return raw, nil
}

func toBatchJob(batch goopenai.Batch) ai.BatchJob {
	job := ai.BatchJob{
		Handle:         batch.ID,
		State:          mapStatus(batch.Status),
		ProviderStatus: batch.Status,
		Total:          batch.RequestCounts.Total,
		Completed:      batch.RequestCounts.Completed,
		Failed:         batch.RequestCounts.Failed,
	}
	if batch.OutputFileID != nil {
		job.ResultLocation = *batch.OutputFileID
	}
	if batch.ErrorFileID != nil {
		job.ErrorLocation = *batch.ErrorFileID
	}
	return job
}

// mapStatus folds provider statuses into the three states the coordinator acts on.
func mapStatus(status string) ai.BatchState {
	switch status {
	case "completed":
		return ai.BatchCompleted
	case "failed", "expired", "cancelling", "cancelled":
		return ai.BatchFailed
	default:
		// validating, in_progress, finalizing
		return ai.BatchRunning
	}
}
