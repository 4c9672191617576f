package storage

import (
	"testing"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/catalogsync/core"
)

func TestMarshalUnmarshalShardState(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name  string
		state *core.ShardState
	}{
		{
			name: "pending shard",
			state: &core.ShardState{
				RunID:      "5f0c2a52-8d0e-4b8a-9a3b-1c9d7f0e2b11",
				ShardIndex: 0,
				Status:     core.ShardPending,
				FirstID:    1,
				LastID:     50000,
				Count:      50000,
			},
		},
		{
			name: "submitted shard",
			state: &core.ShardState{
				RunID:            "run",
				ShardIndex:       7,
				JobHandle:        "batch_abc123",
				Status:           core.ShardSubmitted,
				FirstID:          350001,
				LastID:           400123,
				Count:            49876,
				ManifestDigest:   "8f14e45fceea167a5a36dedd4bea2543",
				EmbeddingVersion: "v1",
				SubmittedAt:      now,
				UpdatedAt:        now,
			},
		},
		{
			name: "applied shard",
			state: &core.ShardState{
				RunID:          "run",
				ShardIndex:     12,
				JobHandle:      "batch_def",
				Status:         core.ShardCompleted,
				ResultLocation: "file-xyz",
				ErrorLocation:  "file-err",
				Applied:        true,
				UpdatedAt:      now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalShardState(tt.state)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalShardState(data)
			require.NoError(t, err)
			assert.Equal(t, tt.state, decoded)
		})
	}
}

func TestUnmarshalShardState_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"unknown format", []byte{0x7e}},
		{"truncated", MarshalShardState(&core.ShardState{RunID: "run", JobHandle: "h"})[:4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalShardState(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestUnmarshalShardState_FormatV1(t *testing.T) {
	// Layout written before error locations were tracked.
	var bs []byte
	put := func(size int, marshal func([]byte) int) {
		buf := make([]byte, size)
		marshal(buf)
		bs = append(bs, buf...)
	}
	putString := func(s string) { put(ord.String.Size(s), func(b []byte) int { return ord.String.Marshal(s, b) }) }
	putInt := func(v int) { put(varint.Int.Size(v), func(b []byte) int { return varint.Int.Marshal(v, b) }) }
	putInt64 := func(v int64) { put(varint.Int64.Size(v), func(b []byte) int { return varint.Int64.Marshal(v, b) }) }

	putInt(shardStateFormatV1)
	putString("run")
	putInt(3)
	putString("batch_1")
	putInt(int(core.ShardCompleted))
	putString("file-out")
	put(ord.Bool.Size(true), func(b []byte) int { return ord.Bool.Marshal(true, b) })
	putInt64(10)
	putInt64(20)
	putInt(11)
	putString("digest")
	putString("v1")
	putInt64(0)
	putInt64(0)

	decoded, err := UnmarshalShardState(bs)
	require.NoError(t, err)
	assert.Equal(t, &core.ShardState{
		RunID:            "run",
		ShardIndex:       3,
		JobHandle:        "batch_1",
		Status:           core.ShardCompleted,
		ResultLocation:   "file-out",
		Applied:          true,
		FirstID:          10,
		LastID:           20,
		Count:            11,
		ManifestDigest:   "digest",
		EmbeddingVersion: "v1",
	}, decoded)
}
