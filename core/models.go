package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Platform identifies the marketplace a product record came from.
type Platform string

const (
	// PlatformStockX is the primary platform. Secondary products map onto it.
	PlatformStockX Platform = "stockx"
	// PlatformAlias is the secondary platform.
	PlatformAlias Platform = "alias"
)

// Platforms lists every supported platform, primary first.
var Platforms = []Platform{PlatformStockX, PlatformAlias}

// IsPrimary reports whether p is the platform mappings point at.
func (p Platform) IsPrimary() bool {
	return p == PlatformStockX
}

func (p Platform) String() string {
	return string(p)
}

// ParsePlatform converts a string into a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformStockX, PlatformAlias:
		return Platform(s), nil
	}
	return "", ErrUnknownPlatform
}

// SourceProduct is a raw product row as read from the source store.
// Fields holds every column of the row; the transformer picks what it needs.
type SourceProduct struct {
	Platform Platform
	Fields   map[string]any
}

// CanonicalProduct is the unified representation of a product from either platform.
type CanonicalProduct struct {
	InternalID         int64 // Assigned by the destination store, never overwritten
	PlatformID         string
	Platform           Platform
	DisplayName        string  // Uppercased
	StyleKeyRaw        *string // Platform-native style id or SKU
	StyleKeyNormalized *string
	EmbeddingText      string
	EmbeddingVersion   string    // Format tag of the text that produced Embedding
	Embedding          []float32 // Nil until generated
	Attributes         map[string]any
	KeywordHint        *string
}

// NaturalKey returns the (platform_id, platform) pair that identifies a product.
func (p *CanonicalProduct) NaturalKey() NaturalKey {
	return NaturalKey{PlatformID: p.PlatformID, Platform: p.Platform}
}

// NaturalKey is the unique identity of a product across runs.
type NaturalKey struct {
	PlatformID string
	Platform   Platform
}

// ProductRef is the slice of a canonical product needed for linking and matching.
type ProductRef struct {
	InternalID         int64
	Platform           Platform
	PlatformID         string
	DisplayName        string
	StyleKeyRaw        *string
	StyleKeyNormalized *string
	Embedding          []float32
}

// LinkConfidence describes how an inventory unit was linked to a product.
type LinkConfidence string

const (
	LinkNone       LinkConfidence = "none"
	LinkPlatformID LinkConfidence = "platform_id"
	LinkExact      LinkConfidence = "exact"
	LinkHinted     LinkConfidence = "hinted"
	// LinkAmbiguous marks a multi-candidate default pick that needs review.
	LinkAmbiguous LinkConfidence = "ambiguous"
)

// InventoryUnit is a sellable inventory item, optionally linked to a product.
type InventoryUnit struct {
	SKU             string
	RawItemLabel    string
	Size            string
	Sold            bool
	Location        string
	StockXProductID string
	AliasCatalogID  string
	StyleID         string
	LinkedProductID *int64
	LinkConfidence  LinkConfidence
}

// MatchMethod identifies which reconciliation pass produced a mapping.
type MatchMethod string

const (
	MethodExactKey            MatchMethod = "exact_key"
	MethodEmbeddingSimilarity MatchMethod = "embedding_similarity"
)

// ProductMapping is an equivalence edge from a secondary product to a primary product.
type ProductMapping struct {
	MappingID       int64
	SourceProductID int64
	TargetProductID int64
	ConfidenceScore float64
	Method          MatchMethod
	IsDefault       bool
}

// EmbeddingUpdate carries a freshly generated vector for one product.
type EmbeddingUpdate struct {
	InternalID int64
	Text       string // Empty leaves the stored embedding text unchanged
	Version    string
	Vector     []float32
}

// EmbeddingWork is one product whose embedding text needs a vector.
type EmbeddingWork struct {
	InternalID    int64
	EmbeddingText string
}

// ShardStatus is the lifecycle state of one batch embedding shard.
type ShardStatus int

const (
	ShardPending ShardStatus = iota + 1
	ShardSubmitted
	ShardCompleted
	ShardFailed
)

func (s ShardStatus) String() string {
	switch s {
	case ShardPending:
		return "pending"
	case ShardSubmitted:
		return "submitted"
	case ShardCompleted:
		return "completed"
	case ShardFailed:
		return "failed"
	}
	return "unknown"
}

// ShardState is the durable resumption record of one asynchronous embedding job.
type ShardState struct {
	RunID            string
	ShardIndex       int
	JobHandle        string
	Status           ShardStatus
	ResultLocation   string
	ErrorLocation    string // Provider file of per-request errors, if any
	Applied          bool
	FirstID          int64 // Inclusive internal_id range covered by the shard
	LastID           int64
	Count            int
	ManifestDigest   string
	EmbeddingVersion string
	SubmittedAt      time.Time
	UpdatedAt        time.Time
}

// Digest returns a short hex BLAKE2b digest of data.
func Digest(data []byte) string {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ScoredProduct is a product returned by a similarity query.
type ScoredProduct struct {
	Product    ProductRef
	Similarity float64 // Cosine similarity in [-1, 1]
}
