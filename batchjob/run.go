package batchjob

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/catalogsync/core"
)

// Report summarizes one coordinator pass.
type Report struct {
	RunID       string
	Shards      int
	Planned     int
	Submitted   int
	Resubmitted int
	Applied     int // Shards applied during this pass
	Vectors     int // Vectors written during this pass
	Failed      int // Requests rejected by the provider or missing from results
	Malformed   int
	InFlight    int // Shards still awaiting the provider
	Pending     int // Shards left for a later pass by the submit limit
	Expired     int // Completed shards whose result files were gone
	Errored     int // Shard operations that failed and were left for a later pass
	Finished    bool
}

// Run performs one resumable pass: existing shards are polled first, completed
// ones applied, failed ones resubmitted and pending ones submitted. With no
// persisted run a new one is planned. Once every shard is applied the run's
// state is removed.
//
// A failing shard operation is logged and counted in Report.Errored and the
// pass moves on; only run-level failures and cancellation are returned.
func (c *Coordinator) Run(ctx context.Context) (Report, error) {
	var report Report

	shards, err := c.activeRun(ctx)
	if err != nil {
		return report, err
	}
	if len(shards) == 0 {
		shards, err = c.Plan(ctx)
		if err != nil {
			return report, err
		}
		report.Planned = len(shards)
	}
	if len(shards) == 0 {
		c.logger.Info("no products need embeddings")
		report.Finished = true
		return report, nil
	}
	report.RunID = shards[0].RunID
	report.Shards = len(shards)

	for _, shard := range shards {
		if shard.Status != core.ShardSubmitted {
			continue
		}
		if _, err := c.Poll(ctx, shard); err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return report, cerr
			}
			c.logger.Error("poll failed", "shard", shard.ShardIndex, "err", err)
			report.Errored++
		}
	}

	for _, shard := range shards {
		if shard.Status != core.ShardCompleted || shard.Applied {
			continue
		}
		ar, err := c.Apply(ctx, shard)
		switch {
		case errors.Is(err, ErrResultsUnavailable):
			report.Expired++
			continue
		case err != nil:
			if cerr := ctx.Err(); cerr != nil {
				return report, cerr
			}
			c.logger.Error("apply failed", "shard", shard.ShardIndex, "err", err)
			report.Errored++
			continue
		}
		report.Applied++
		report.Vectors += ar.Applied
		report.Failed += ar.Failed
		report.Malformed += ar.Malformed
	}

	var queue []*core.ShardState
	for _, shard := range shards {
		if shard.Status == core.ShardFailed || shard.Status == core.ShardPending {
			queue = append(queue, shard)
		}
	}
	if c.submitLimit > 0 && len(queue) > c.submitLimit {
		report.Pending = len(queue) - c.submitLimit
		queue = queue[:c.submitLimit]
	}
	for i, shard := range queue {
		if i > 0 && i == len(queue)-1 {
			c.logger.Info("cooling down before final submission", "delay", c.cooldown)
			if err := c.sleep(ctx, c.cooldown); err != nil {
				return report, err
			}
		}
		resubmit := shard.Status == core.ShardFailed
		err := c.Submit(ctx, shard)
		switch {
		case errors.Is(err, ErrEmptyShard):
			c.logger.Info("shard has no remaining work", "shard", shard.ShardIndex)
			continue
		case err != nil:
			if cerr := ctx.Err(); cerr != nil {
				return report, cerr
			}
			c.logger.Error("submit failed", "shard", shard.ShardIndex, "err", err)
			report.Errored++
			continue
		}
		if resubmit {
			report.Resubmitted++
		} else {
			report.Submitted++
		}
	}

	finished := true
	for _, shard := range shards {
		switch {
		case shard.Applied:
		case shard.Status == core.ShardSubmitted:
			report.InFlight++
			finished = false
		default:
			finished = false
		}
	}
	if finished {
		if err := c.state.DeleteRun(ctx, report.RunID); err != nil {
			return report, fmt.Errorf("clear run %s: %w", report.RunID, err)
		}
		c.logger.Info("batch run complete", "run", report.RunID)
	}
	report.Finished = finished
	return report, nil
}

// activeRun returns the shards of the first persisted run.
func (c *Coordinator) activeRun(ctx context.Context) ([]*core.ShardState, error) {
	all, err := c.state.ListShards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}
	runID := all[0].RunID
	var shards []*core.ShardState
	for _, s := range all {
		if s.RunID == runID {
			shards = append(shards, s)
		}
	}
	if runs := countRuns(all); runs > 1 {
		c.logger.Warn("multiple batch runs persisted, resuming one", "run", runID, "runs", runs)
	}
	return shards, nil
}

func countRuns(shards []*core.ShardState) int {
	seen := make(map[string]struct{})
	for _, s := range shards {
		seen[s.RunID] = struct{}{}
	}
	return len(seen)
}
