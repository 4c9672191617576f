package badger

import "fmt"

// Key prefixes for different data types
const (
	shardStatePrefix     = "shard"
	artifactChunkPrefix  = "artf"
	artifactMarkerPrefix = "artfok"
)

// Shard and chunk numbers are zero-padded so keys sort numerically.

// makeShardKey generates a key for a shard state.
// Format: prefix:runID:index
func makeShardKey(runID string, index int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%06d", shardStatePrefix, runID, index))
}

// makeRunPrefix generates the key prefix of one run under a data prefix.
func makeRunPrefix(prefix, runID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", prefix, runID))
}

// makeArtifactChunkKey generates a key for one chunk of a result artifact.
// Format: prefix:runID:index:chunk
func makeArtifactChunkKey(runID string, index, chunk int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%06d:%08d", artifactChunkPrefix, runID, index, chunk))
}

// makeArtifactChunkPrefix generates the prefix of every chunk of one artifact.
func makeArtifactChunkPrefix(runID string, index int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%06d:", artifactChunkPrefix, runID, index))
}

// makeArtifactMarkerKey generates the key written once an artifact is complete.
func makeArtifactMarkerKey(runID string, index int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%06d", artifactMarkerPrefix, runID, index))
}
