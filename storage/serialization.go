// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/catalogsync/core"
)

// shardStateFormat is written first so the layout can evolve.
// Format 1 predates ErrorLocation and is still decoded.
const (
	shardStateFormatV1 = 1
	shardStateFormat   = 2
)

// ShardStateMUS is the MUS serializer for core.ShardState.
// Timestamps are stored as Unix microseconds, zero time as 0.
var ShardStateMUS mus.Serializer[core.ShardState] = shardStateMUS{}

type shardStateMUS struct{}

func (shardStateMUS) Marshal(v core.ShardState, bs []byte) (n int) {
	n = varint.Int.Marshal(shardStateFormat, bs)
	n += ord.String.Marshal(v.RunID, bs[n:])
	n += varint.Int.Marshal(v.ShardIndex, bs[n:])
	n += ord.String.Marshal(v.JobHandle, bs[n:])
	n += varint.Int.Marshal(int(v.Status), bs[n:])
	n += ord.String.Marshal(v.ResultLocation, bs[n:])
	n += ord.String.Marshal(v.ErrorLocation, bs[n:])
	n += ord.Bool.Marshal(v.Applied, bs[n:])
	n += varint.Int64.Marshal(v.FirstID, bs[n:])
	n += varint.Int64.Marshal(v.LastID, bs[n:])
	n += varint.Int.Marshal(v.Count, bs[n:])
	n += ord.String.Marshal(v.ManifestDigest, bs[n:])
	n += ord.String.Marshal(v.EmbeddingVersion, bs[n:])
	n += varint.Int64.Marshal(toMicros(v.SubmittedAt), bs[n:])
	return n + varint.Int64.Marshal(toMicros(v.UpdatedAt), bs[n:])
}

func (shardStateMUS) Unmarshal(bs []byte) (v core.ShardState, n int, err error) {
	var (
		m      int
		format int
		status int
		stamp  int64
	)
	if format, n, err = varint.Int.Unmarshal(bs); err != nil {
		return
	}
	if format != shardStateFormat && format != shardStateFormatV1 {
		err = fmt.Errorf("unknown shard state format %d", format)
		return
	}
	v.RunID, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.ShardIndex, m, err = varint.Int.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.JobHandle, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	status, m, err = varint.Int.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.Status = core.ShardStatus(status)
	v.ResultLocation, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	if format >= shardStateFormat {
		v.ErrorLocation, m, err = ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return
		}
	}
	v.Applied, m, err = ord.Bool.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.FirstID, m, err = varint.Int64.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.LastID, m, err = varint.Int64.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.Count, m, err = varint.Int.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.ManifestDigest, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.EmbeddingVersion, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	stamp, m, err = varint.Int64.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.SubmittedAt = fromMicros(stamp)
	stamp, m, err = varint.Int64.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.UpdatedAt = fromMicros(stamp)
	return
}

func (shardStateMUS) Size(v core.ShardState) (size int) {
	size = varint.Int.Size(shardStateFormat)
	size += ord.String.Size(v.RunID)
	size += varint.Int.Size(v.ShardIndex)
	size += ord.String.Size(v.JobHandle)
	size += varint.Int.Size(int(v.Status))
	size += ord.String.Size(v.ResultLocation)
	size += ord.String.Size(v.ErrorLocation)
	size += ord.Bool.Size(v.Applied)
	size += varint.Int64.Size(v.FirstID)
	size += varint.Int64.Size(v.LastID)
	size += varint.Int.Size(v.Count)
	size += ord.String.Size(v.ManifestDigest)
	size += ord.String.Size(v.EmbeddingVersion)
	size += varint.Int64.Size(toMicros(v.SubmittedAt))
	return size + varint.Int64.Size(toMicros(v.UpdatedAt))
}

func (s shardStateMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

// MarshalShardState serializes a ShardState to bytes.
func MarshalShardState(state *core.ShardState) []byte {
	buf := make([]byte, ShardStateMUS.Size(*state))
	ShardStateMUS.Marshal(*state, buf)
	return buf
}

// UnmarshalShardState deserializes a ShardState from bytes.
func UnmarshalShardState(data []byte) (*core.ShardState, error) {
	state, _, err := ShardStateMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &state, nil
}
