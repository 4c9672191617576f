package batchjob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/catalogsync/ai"
	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/progress"
	"github.com/poiesic/catalogsync/retry"
	"github.com/poiesic/catalogsync/storage"
)

// Coordinator drives the shard state machine.
type Coordinator struct {
	products storage.ProductRepository
	state    storage.ShardStateRepository
	batch    ai.BatchEmbedder

	shardSize   int
	cooldown    time.Duration
	submitLimit int
	applyChunk  int
	regenerate  bool
	version     string
	dimensions  int
	policy      retry.Policy
	progress    io.Writer
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(products storage.ProductRepository, state storage.ShardStateRepository, batch ai.BatchEmbedder, opts ...Option) (*Coordinator, error) {
	if products == nil || state == nil {
		return nil, errors.New("product and shard state repositories required")
	}
	if batch == nil {
		return nil, errors.New("batch embedder required")
	}
	c := defaultCoordinator()
	c.products, c.state, c.batch = products, state, batch
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Plan lists the current work, cuts it into shards and persists them as pending
// under a new run id.
func (c *Coordinator) Plan(ctx context.Context) ([]*core.ShardState, error) {
	work, err := c.products.EmbeddingWork(ctx, storage.WorkFilter{IncludeEmbedded: c.regenerate})
	if err != nil {
		return nil, fmt.Errorf("list embedding work: %w", err)
	}
	if len(work) == 0 {
		return nil, nil
	}

	runID := uuid.NewString()
	var shards []*core.ShardState
	for i := 0; i*c.shardSize < len(work); i++ {
		part := work[i*c.shardSize : min((i+1)*c.shardSize, len(work))]
		shard := &core.ShardState{
			RunID:            runID,
			ShardIndex:       i,
			Status:           core.ShardPending,
			FirstID:          part[0].InternalID,
			LastID:           part[len(part)-1].InternalID,
			Count:            len(part),
			ManifestDigest:   manifestDigest(part),
			EmbeddingVersion: c.version,
		}
		if err := c.state.SaveShard(ctx, shard); err != nil {
			return nil, fmt.Errorf("persist shard %d: %w", i, err)
		}
		shards = append(shards, shard)
	}
	c.logger.Info("planned batch run", "run", runID, "records", len(work), "shards", len(shards))
	return shards, nil
}

// shardWork reloads the work of a shard's id range.
func (c *Coordinator) shardWork(ctx context.Context, shard *core.ShardState) ([]core.EmbeddingWork, error) {
	return c.products.EmbeddingWork(ctx, storage.WorkFilter{
		AfterID:         shard.FirstID - 1,
		ThroughID:       shard.LastID,
		IncludeEmbedded: c.regenerate,
	})
}

// Submit builds the shard's manifest from its id range, creates a job and
// persists the handle before returning. A failed shard is resubmitted the same way.
func (c *Coordinator) Submit(ctx context.Context, shard *core.ShardState) error {
	work, err := c.shardWork(ctx, shard)
	if err != nil {
		return fmt.Errorf("load shard %d work: %w", shard.ShardIndex, err)
	}
	if len(work) == 0 {
		shard.Status = core.ShardCompleted
		shard.Applied = true
		shard.Count = 0
		if err := c.state.SaveShard(ctx, shard); err != nil {
			return err
		}
		return ErrEmptyShard
	}

	entries := make([]ai.ManifestEntry, len(work))
	for i, w := range work {
		entries[i] = ai.ManifestEntry{CustomID: strconv.FormatInt(w.InternalID, 10), Text: w.EmbeddingText}
	}
	job, err := retry.DoWithResult(ctx, c.policy, func() (ai.BatchJob, error) {
		return c.batch.SubmitBatch(ctx, ai.BatchRequest{RunID: shard.RunID, ShardIndex: shard.ShardIndex, Entries: entries})
	})
	if err != nil {
		return fmt.Errorf("submit shard %d: %w", shard.ShardIndex, err)
	}

	shard.JobHandle = job.Handle
	shard.Status = core.ShardSubmitted
	shard.ResultLocation = ""
	shard.ErrorLocation = ""
	shard.Count = len(work)
	shard.ManifestDigest = manifestDigest(work)
	shard.SubmittedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := c.state.SaveShard(ctx, shard); err != nil {
		// The job exists at the provider but its handle is lost locally
		c.logger.Error("submitted job not persisted", "shard", shard.ShardIndex, "handle", job.Handle, "err", err)
		return fmt.Errorf("persist shard %d: %w", shard.ShardIndex, err)
	}
	c.logger.Info("submitted shard", "run", shard.RunID, "shard", shard.ShardIndex, "handle", job.Handle, "requests", len(entries))
	return nil
}

// Poll refreshes a submitted shard from the provider and persists the outcome.
// A job the provider no longer knows becomes failed.
func (c *Coordinator) Poll(ctx context.Context, shard *core.ShardState) (core.ShardStatus, error) {
	if shard.JobHandle == "" {
		return shard.Status, ErrShardNotSubmitted
	}

	job, err := retry.DoWithResult(ctx, c.policy, func() (ai.BatchJob, error) {
		return c.batch.BatchStatus(ctx, shard.JobHandle)
	})
	switch {
	case errors.Is(err, ai.ErrJobNotFound):
		c.logger.Warn("job not found, marking failed", "shard", shard.ShardIndex, "handle", shard.JobHandle)
		shard.Status = core.ShardFailed
	case err != nil:
		return shard.Status, fmt.Errorf("poll shard %d: %w", shard.ShardIndex, err)
	default:
		switch job.State {
		case ai.BatchCompleted:
			shard.Status = core.ShardCompleted
			shard.ResultLocation = job.ResultLocation
			shard.ErrorLocation = job.ErrorLocation
		case ai.BatchFailed:
			shard.Status = core.ShardFailed
		default:
			shard.Status = core.ShardSubmitted
		}
		c.logger.Debug("polled shard", "shard", shard.ShardIndex, "provider_status", job.ProviderStatus,
			"completed", job.Completed, "failed", job.Failed, "total", job.Total)
	}

	if err := c.state.SaveShard(ctx, shard); err != nil {
		return shard.Status, fmt.Errorf("persist shard %d: %w", shard.ShardIndex, err)
	}
	return shard.Status, nil
}

// ApplyReport summarizes result application for one shard.
type ApplyReport struct {
	Applied   int // Vectors written
	Failed    int // Provider-side errors and rejected vectors
	Malformed int // Undecodable result lines
	Skipped   int // Ids no longer present in the destination
}

// Apply downloads a completed shard's output and error files unless already
// stored locally, writes every returned vector and marks the shard applied.
// Requests that appear in neither file are counted as failed, so a job that
// produced no output file at all is applied with every request failed.
// When the files can no longer be downloaded the shard is marked failed and
// ErrResultsUnavailable is returned. Applying an applied shard is a no-op.
func (c *Coordinator) Apply(ctx context.Context, shard *core.ShardState) (ApplyReport, error) {
	var report ApplyReport
	if shard.Applied {
		return report, nil
	}
	if shard.Status != core.ShardCompleted {
		return report, ErrShardNotCompleted
	}

	seen := 0
	if shard.ResultLocation == "" && shard.ErrorLocation == "" {
		c.logger.Warn("completed job produced no result files", "shard", shard.ShardIndex, "handle", shard.JobHandle)
	} else {
		if err := c.download(ctx, shard); err != nil {
			if errors.Is(err, ai.ErrNoResults) {
				return report, c.expire(ctx, shard, err)
			}
			return report, err
		}
		n, err := c.applyArtifact(ctx, shard, &report)
		if err != nil {
			return report, fmt.Errorf("apply shard %d: %w", shard.ShardIndex, err)
		}
		seen = n
	}
	if missing := shard.Count - seen; missing > 0 {
		c.logger.Warn("requests missing from results", "shard", shard.ShardIndex, "missing", missing)
		report.Failed += missing
	}

	shard.Applied = true
	if err := c.state.SaveShard(ctx, shard); err != nil {
		return report, fmt.Errorf("persist shard %d: %w", shard.ShardIndex, err)
	}
	c.logger.Info("applied shard", "shard", shard.ShardIndex, "applied", report.Applied,
		"failed", report.Failed, "malformed", report.Malformed)
	return report, nil
}

// applyArtifact streams the stored results into the destination and returns
// the number of result lines read.
func (c *Coordinator) applyArtifact(ctx context.Context, shard *core.ShardState, report *ApplyReport) (int, error) {
	artifact, err := c.state.OpenArtifact(ctx, shard.RunID, shard.ShardIndex)
	if err != nil {
		return 0, fmt.Errorf("open results: %w", err)
	}
	defer artifact.Close()

	tracker := progress.NewTracker(c.progress, fmt.Sprintf("shard %d", shard.ShardIndex), shard.Count, c.applyChunk)
	tracker.Start()
	defer tracker.Finish()

	pending := make([]core.EmbeddingUpdate, 0, c.applyChunk)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := c.products.UpdateEmbeddings(ctx, pending)
		if err != nil {
			return err
		}
		report.Applied += n
		report.Skipped += len(pending) - n
		tracker.Increment(len(pending))
		pending = pending[:0]
		return nil
	}

	seen := 0
	malformed, err := ai.ReadResults(artifact, func(line ai.ResultLine) error {
		seen++
		id, perr := strconv.ParseInt(line.CustomID, 10, 64)
		switch {
		case perr != nil:
			report.Malformed++
			return nil
		case line.Err != "":
			c.logger.Warn("provider rejected request", "shard", shard.ShardIndex, "id", id, "err", line.Err)
			report.Failed++
			return nil
		case c.dimensions > 0 && len(line.Vector) != c.dimensions:
			c.logger.Warn("result vector has wrong dimension", "id", id, "got", len(line.Vector), "want", c.dimensions)
			report.Failed++
			return nil
		}
		pending = append(pending, core.EmbeddingUpdate{InternalID: id, Version: shard.EmbeddingVersion, Vector: line.Vector})
		if len(pending) >= c.applyChunk {
			return flush()
		}
		return nil
	})
	report.Malformed += malformed
	seen += malformed
	if err == nil {
		err = flush()
	}
	return seen, err
}

// download stores the shard's output file followed by its error file as one
// artifact, unless a complete artifact exists.
func (c *Coordinator) download(ctx context.Context, shard *core.ShardState) error {
	ok, err := c.state.HasArtifact(ctx, shard.RunID, shard.ShardIndex)
	if err != nil {
		return err
	}
	if ok {
		c.logger.Debug("result artifact present, skipping download", "shard", shard.ShardIndex)
		return nil
	}

	return retry.Do(ctx, c.policy, func() error {
		var files []io.ReadCloser
		defer func() {
			for _, f := range files {
				f.Close()
			}
		}()
		var parts []io.Reader
		for _, location := range []string{shard.ResultLocation, shard.ErrorLocation} {
			if location == "" {
				continue
			}
			body, err := c.batch.FetchResults(ctx, location)
			if err != nil {
				return err
			}
			files = append(files, body)
			if len(parts) > 0 {
				parts = append(parts, strings.NewReader("\n"))
			}
			parts = append(parts, body)
		}
		n, err := c.state.SaveArtifact(ctx, shard.RunID, shard.ShardIndex, io.MultiReader(parts...))
		if err != nil {
			return err
		}
		c.logger.Info("downloaded results", "shard", shard.ShardIndex, "bytes", n)
		return nil
	})
}

// expire marks a shard whose result files are gone as failed so the next
// submission round sends it again.
func (c *Coordinator) expire(ctx context.Context, shard *core.ShardState, cause error) error {
	c.logger.Warn("result files unavailable, marking shard for resubmission",
		"shard", shard.ShardIndex, "handle", shard.JobHandle, "err", cause)
	shard.Status = core.ShardFailed
	shard.JobHandle = ""
	shard.ResultLocation = ""
	shard.ErrorLocation = ""
	if err := c.state.SaveShard(ctx, shard); err != nil {
		return fmt.Errorf("persist shard %d: %w", shard.ShardIndex, err)
	}
	return fmt.Errorf("shard %d: %w", shard.ShardIndex, ErrResultsUnavailable)
}

func manifestDigest(work []core.EmbeddingWork) string {
	var b strings.Builder
	for _, w := range work {
		b.WriteString(strconv.FormatInt(w.InternalID, 10))
		b.WriteByte('\t')
		b.WriteString(w.EmbeddingText)
		b.WriteByte('\n')
	}
	return core.Digest([]byte(b.String()))
}
