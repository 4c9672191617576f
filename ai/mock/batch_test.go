package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/catalogsync/ai"
)

func TestMockBatchEmbedder_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMockBatchEmbedder(4)
	m.FailIDs["2"] = true

	job, err := m.SubmitBatch(ctx, ai.BatchRequest{Entries: []ai.ManifestEntry{
		{CustomID: "1", Text: "a"},
		{CustomID: "2", Text: "b"},
	}})
	require.NoError(t, err)
	assert.Equal(t, ai.BatchRunning, job.State)

	_, err = m.FetchResults(ctx, job.Handle)
	assert.ErrorIs(t, err, ai.ErrNoResults)

	m.Complete(job.Handle)
	status, err := m.BatchStatus(ctx, job.Handle)
	require.NoError(t, err)
	assert.Equal(t, ai.BatchCompleted, status.State)

	assert.Equal(t, 1, status.Completed)
	assert.Equal(t, 1, status.Failed)
	require.NotEmpty(t, status.ErrorLocation)

	read := func(location string) []ai.ResultLine {
		rc, err := m.FetchResults(ctx, location)
		require.NoError(t, err)
		defer rc.Close()
		var lines []ai.ResultLine
		malformed, err := ai.ReadResults(rc, func(l ai.ResultLine) error {
			lines = append(lines, l)
			return nil
		})
		require.NoError(t, err)
		assert.Zero(t, malformed)
		return lines
	}

	out := read(status.ResultLocation)
	require.Len(t, out, 1)
	assert.Equal(t, Vector("a", 4), out[0].Vector)

	errs := read(status.ErrorLocation)
	require.Len(t, errs, 1)
	assert.Equal(t, "2", errs[0].CustomID)
	assert.NotEmpty(t, errs[0].Err)

	m.Expire(job.Handle)
	_, err = m.FetchResults(ctx, status.ResultLocation)
	assert.ErrorIs(t, err, ai.ErrNoResults)

	m.Forget(job.Handle)
	_, err = m.BatchStatus(ctx, job.Handle)
	assert.ErrorIs(t, err, ai.ErrJobNotFound)
}

func TestVector_DeterministicUnit(t *testing.T) {
	a := Vector("air max 90", 16)
	b := Vector("air max 90", 16)
	assert.Equal(t, a, b)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-4)
	assert.NotEqual(t, a, Vector("dunk low", 16))
}

func TestMockBatchEmbedder_AllRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMockBatchEmbedder(4)
	m.FailIDs["1"] = true

	job, err := m.SubmitBatch(ctx, ai.BatchRequest{Entries: []ai.ManifestEntry{{CustomID: "1", Text: "a"}}})
	require.NoError(t, err)
	m.Complete(job.Handle)

	status, err := m.BatchStatus(ctx, job.Handle)
	require.NoError(t, err)
	assert.Equal(t, ai.BatchCompleted, status.State)
	assert.Empty(t, status.ResultLocation, "no output file without a success")
	assert.NotEmpty(t, status.ErrorLocation)
}
