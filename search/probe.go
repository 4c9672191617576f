package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

// DefaultThresholds are the candidate matching thresholds evaluated when none are given.
var DefaultThresholds = []float64{0.95, 0.90, 0.85, 0.80, 0.75}

// ProbeMatch is the best primary candidate of one sampled secondary product.
type ProbeMatch struct {
	Source     core.ProductRef
	Target     core.ProductRef
	Similarity float64
	// StyleMatch is nil when either side has no style key.
	StyleMatch *bool
}

// ThresholdStats summarizes the sampled matches at or above one threshold.
type ThresholdStats struct {
	Threshold       float64
	Matches         int
	StyleMatches    int
	StyleMismatches int
	NoStyle         int
}

// StyleMatchRate returns the share of style-comparable matches whose keys agree, in percent.
func (t ThresholdStats) StyleMatchRate() float64 {
	n := t.StyleMatches + t.StyleMismatches
	if n == 0 {
		return 0
	}
	return float64(t.StyleMatches) / float64(n) * 100
}

// ProbeReport is the outcome of a threshold probe.
type ProbeReport struct {
	Sampled    int
	Matches    []ProbeMatch // Best candidates, highest similarity first
	Thresholds []ThresholdStats
}

// Probe samples up to sampleSize embedded secondary products, finds each
// one's nearest primary product and tallies style key agreement per threshold.
// seed makes the sample reproducible.
func Probe(ctx context.Context, products storage.ProductRepository, thresholds []float64, sampleSize int, seed uint64) (*ProbeReport, error) {
	if products == nil {
		return nil, ErrProductRepositoryRequired
	}
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	floor := thresholds[0]
	for _, t := range thresholds {
		floor = min(floor, t)
	}

	refs, err := products.ProductRefs(ctx, core.PlatformAlias, true)
	if err != nil {
		return nil, fmt.Errorf("load secondary products: %w", err)
	}
	sample := refs[:0:0]
	for _, r := range refs {
		if len(r.Embedding) > 0 {
			sample = append(sample, r)
		}
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
	if sampleSize > 0 && len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	report := &ProbeReport{Sampled: len(sample)}
	for _, src := range sample {
		hits, err := products.NearestProducts(ctx, src.Embedding, storage.NearestQuery{
			Platform:      core.PlatformStockX,
			Limit:         1,
			MinSimilarity: floor,
		})
		if err != nil {
			return nil, fmt.Errorf("nearest product for %d: %w", src.InternalID, err)
		}
		if len(hits) == 0 {
			continue
		}
		report.Matches = append(report.Matches, ProbeMatch{
			Source:     src,
			Target:     hits[0].Product,
			Similarity: hits[0].Similarity,
			StyleMatch: styleMatch(src, hits[0].Product),
		})
	}
	sort.SliceStable(report.Matches, func(i, j int) bool {
		return report.Matches[i].Similarity > report.Matches[j].Similarity
	})

	for _, t := range thresholds {
		stats := ThresholdStats{Threshold: t}
		for _, m := range report.Matches {
			if m.Similarity < t {
				continue
			}
			stats.Matches++
			switch {
			case m.StyleMatch == nil:
				stats.NoStyle++
			case *m.StyleMatch:
				stats.StyleMatches++
			default:
				stats.StyleMismatches++
			}
		}
		report.Thresholds = append(report.Thresholds, stats)
	}
	return report, nil
}

func styleMatch(a, b core.ProductRef) *bool {
	if a.StyleKeyNormalized == nil || b.StyleKeyNormalized == nil {
		return nil
	}
	eq := *a.StyleKeyNormalized == *b.StyleKeyNormalized
	return &eq
}
