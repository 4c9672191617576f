package batchjob

import "errors"

var (
	// ErrShardNotSubmitted is returned when polling a shard without a job handle.
	ErrShardNotSubmitted = errors.New("shard has no job handle")

	// ErrShardNotCompleted is returned when applying a shard whose job has not completed.
	ErrShardNotCompleted = errors.New("shard job has not completed")

	// ErrEmptyShard is returned when a shard's id range no longer holds any work.
	ErrEmptyShard = errors.New("shard has no remaining work")

	// ErrResultsUnavailable is returned when a completed job's files can no
	// longer be downloaded. The shard is marked failed for resubmission.
	ErrResultsUnavailable = errors.New("shard results no longer available")
)
