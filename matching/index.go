package matching

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

// Candidate is the best primary product found for a vector.
type Candidate struct {
	ProductID  int64
	Similarity float64
}

// CandidateIndex finds the most similar primary product for a vector.
type CandidateIndex interface {
	// Best returns the candidate with the highest cosine similarity, ties to
	// the lowest product id. ok is false when no candidate qualifies.
	Best(ctx context.Context, vector []float32) (c Candidate, ok bool, err error)
}

// MemoryIndex is an exact brute-force index over unit-normalized primary
// vectors. Queries scan partitions in parallel on an ants pool.
type MemoryIndex struct {
	ids     []int64
	vectors [][]float32
	parts   int
	pool    *ants.Pool
}

// NewMemoryIndex builds an index over refs carrying an embedding, scanning
// with up to workers goroutines. Release must be called when done.
func NewMemoryIndex(refs []core.ProductRef, workers int) (*MemoryIndex, error) {
	if workers < 1 {
		workers = 1
	}
	idx := &MemoryIndex{}
	for _, r := range refs {
		if len(r.Embedding) == 0 {
			continue
		}
		idx.ids = append(idx.ids, r.InternalID)
		idx.vectors = append(idx.vectors, core.NormalizeVector(r.Embedding))
	}
	idx.parts = min(workers, max(1, len(idx.ids)/1024))
	if idx.parts > 1 {
		pool, err := ants.NewPool(idx.parts)
		if err != nil {
			return nil, fmt.Errorf("create scan pool: %w", err)
		}
		idx.pool = pool
	}
	return idx, nil
}

// Len returns the number of indexed vectors.
func (m *MemoryIndex) Len() int { return len(m.ids) }

// Release frees the scan pool.
func (m *MemoryIndex) Release() {
	if m.pool != nil {
		m.pool.Release()
	}
}

// Best scans every indexed vector. An empty index yields no candidate.
func (m *MemoryIndex) Best(ctx context.Context, vector []float32) (Candidate, bool, error) {
	if len(m.ids) == 0 || len(vector) == 0 {
		return Candidate{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return Candidate{}, false, err
	}
	q := core.NormalizeVector(vector)

	if m.pool == nil {
		c, ok := m.scan(q, 0, len(m.ids))
		return c, ok, nil
	}

	size := (len(m.ids) + m.parts - 1) / m.parts
	results := make([]Candidate, m.parts)
	found := make([]bool, m.parts)
	var wg sync.WaitGroup
	for p := 0; p < m.parts; p++ {
		lo, hi := p*size, min((p+1)*size, len(m.ids))
		if lo >= hi {
			continue
		}
		wg.Add(1)
		err := m.pool.Submit(func() {
			defer wg.Done()
			results[p], found[p] = m.scan(q, lo, hi)
		})
		if err != nil {
			wg.Done()
			return Candidate{}, false, fmt.Errorf("submit scan: %w", err)
		}
	}
	wg.Wait()

	var best Candidate
	ok := false
	for p := range results {
		if found[p] && (!ok || better(results[p], best)) {
			best, ok = results[p], true
		}
	}
	return best, ok, nil
}

func (m *MemoryIndex) scan(q []float32, lo, hi int) (Candidate, bool) {
	var best Candidate
	ok := false
	for i := lo; i < hi; i++ {
		if len(m.vectors[i]) != len(q) {
			continue
		}
		c := Candidate{ProductID: m.ids[i], Similarity: core.Dot(q, m.vectors[i])}
		if !ok || better(c, best) {
			best, ok = c, true
		}
	}
	return best, ok
}

func better(a, b Candidate) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.ProductID < b.ProductID
}

// StoreIndex delegates to the destination's nearest-neighbour query over
// primary products.
type StoreIndex struct {
	products  storage.ProductRepository
	threshold float64
}

// NewStoreIndex creates an index that only returns candidates at or above threshold.
func NewStoreIndex(products storage.ProductRepository, threshold float64) *StoreIndex {
	return &StoreIndex{products: products, threshold: threshold}
}

// Best queries the single nearest primary product.
func (s *StoreIndex) Best(ctx context.Context, vector []float32) (Candidate, bool, error) {
	if len(vector) == 0 {
		return Candidate{}, false, nil
	}
	hits, err := s.products.NearestProducts(ctx, vector, storage.NearestQuery{
		Platform:      core.PlatformStockX,
		Limit:         1,
		MinSimilarity: s.threshold,
	})
	if err != nil || len(hits) == 0 {
		return Candidate{}, false, err
	}
	return Candidate{ProductID: hits[0].Product.InternalID, Similarity: hits[0].Similarity}, true, nil
}
