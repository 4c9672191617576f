package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

// Store implements storage.Store in memory. The zero value is not usable; call NewStore.
type Store struct {
	mu        sync.RWMutex
	products  map[int64]*core.CanonicalProduct
	byKey     map[core.NaturalKey]int64
	inventory map[string]core.InventoryUnit
	mappings  map[int64]*core.ProductMapping // By source product id
	indexes   map[string]storage.IndexSpec
	nextID    int64
	nextMapID int64
	closed    bool

	// FailUpsert, when set, is consulted before every product upsert.
	FailUpsert func(products []*core.CanonicalProduct) error

	// FailVectorIndex, when set, is returned by CreateVectorIndex for a memory ceiling.
	FailVectorIndex func(lists, memoryMB int) error
}

var _ storage.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		products:  make(map[int64]*core.CanonicalProduct),
		byKey:     make(map[core.NaturalKey]int64),
		inventory: make(map[string]core.InventoryUnit),
		mappings:  make(map[int64]*core.ProductMapping),
		indexes:   make(map[string]storage.IndexSpec),
	}
}

func (s *Store) Products() storage.ProductRepository     { return (*productRepo)(s) }
func (s *Store) Inventory() storage.InventoryRepository { return (*inventoryRepo)(s) }
func (s *Store) Mappings() storage.MappingRepository    { return (*mappingRepo)(s) }
func (s *Store) Indexes() storage.IndexManager          { return (*indexManager)(s) }

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return storage.ErrStorageClosed
	}
	return nil
}

func cloneProduct(p *core.CanonicalProduct) *core.CanonicalProduct {
	c := *p
	if p.Embedding != nil {
		c.Embedding = append([]float32(nil), p.Embedding...)
	}
	return &c
}

func refOf(p *core.CanonicalProduct, withEmbedding bool) core.ProductRef {
	ref := core.ProductRef{
		InternalID:         p.InternalID,
		Platform:           p.Platform,
		PlatformID:         p.PlatformID,
		DisplayName:        p.DisplayName,
		StyleKeyRaw:        p.StyleKeyRaw,
		StyleKeyNormalized: p.StyleKeyNormalized,
	}
	if withEmbedding && p.Embedding != nil {
		ref.Embedding = append([]float32(nil), p.Embedding...)
	}
	return ref
}

// sortedIDs returns product ids in ascending order. Callers hold the lock.
func (s *Store) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type productRepo Store

func (r *productRepo) UpsertProducts(ctx context.Context, products []*core.CanonicalProduct) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.FailUpsert != nil {
		if err := s.FailUpsert(products); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
		}
	}

	for _, p := range products {
		id, ok := s.byKey[p.NaturalKey()]
		if !ok {
			s.nextID++
			id = s.nextID
			s.byKey[p.NaturalKey()] = id
		}
		stored := cloneProduct(p)
		stored.InternalID = id
		if old, exists := s.products[id]; exists && stored.Embedding == nil && old.EmbeddingText == stored.EmbeddingText {
			stored.Embedding = old.Embedding
		}
		s.products[id] = stored
		p.InternalID = id
	}
	return nil
}

func (r *productRepo) GetProduct(ctx context.Context, id int64) (*core.CanonicalProduct, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *productRepo) ExistingPlatformIDs(ctx context.Context, platform core.Platform) (map[string]struct{}, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	for key := range s.byKey {
		if key.Platform == platform {
			out[key.PlatformID] = struct{}{}
		}
	}
	return out, nil
}

func (r *productRepo) ProductRefs(ctx context.Context, platform core.Platform, withEmbeddings bool) ([]core.ProductRef, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []core.ProductRef
	for _, id := range s.sortedIDs() {
		if p := s.products[id]; p.Platform == platform {
			out = append(out, refOf(p, withEmbeddings))
		}
	}
	return out, nil
}

func (r *productRepo) ProductRefsByName(ctx context.Context, names []string) (map[string][]core.ProductRef, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make(map[string][]core.ProductRef)
	for _, id := range s.sortedIDs() {
		p := s.products[id]
		if _, ok := want[p.DisplayName]; ok {
			out[p.DisplayName] = append(out[p.DisplayName], refOf(p, false))
		}
	}
	return out, nil
}

func (r *productRepo) ProductIDsByPlatformID(ctx context.Context, platform core.Platform, platformIDs []string) (map[string]int64, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(platformIDs))
	for _, pid := range platformIDs {
		if id, ok := s.byKey[core.NaturalKey{PlatformID: pid, Platform: platform}]; ok {
			out[pid] = id
		}
	}
	return out, nil
}

func (r *productRepo) EmbeddingWork(ctx context.Context, filter storage.WorkFilter) ([]core.EmbeddingWork, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []core.EmbeddingWork
	for _, id := range s.sortedIDs() {
		p := s.products[id]
		switch {
		case id <= filter.AfterID:
			continue
		case filter.ThroughID > 0 && id > filter.ThroughID:
			continue
		case p.EmbeddingText == "":
			continue
		case p.Embedding != nil && !filter.IncludeEmbedded:
			continue
		}
		out = append(out, core.EmbeddingWork{InternalID: id, EmbeddingText: p.EmbeddingText})
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *productRepo) StaleProducts(ctx context.Context, version string, afterID int64, limit int) ([]*core.CanonicalProduct, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []*core.CanonicalProduct
	for _, id := range s.sortedIDs() {
		p := s.products[id]
		if id <= afterID || p.EmbeddingVersion == version {
			continue
		}
		out = append(out, cloneProduct(p))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *productRepo) UpdateEmbeddings(ctx context.Context, updates []core.EmbeddingUpdate) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	n := 0
	for _, u := range updates {
		p, ok := s.products[u.InternalID]
		if !ok {
			continue
		}
		p.Embedding = append([]float32(nil), u.Vector...)
		p.EmbeddingVersion = u.Version
		if u.Text != "" {
			p.EmbeddingText = u.Text
		}
		n++
	}
	return n, nil
}

func (r *productRepo) CountProducts(ctx context.Context) (total, embedded int64, err error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return 0, 0, err
	}
	for _, p := range s.products {
		total++
		if p.Embedding != nil {
			embedded++
		}
	}
	return total, embedded, nil
}

func (r *productRepo) NearestProducts(ctx context.Context, vector []float32, q storage.NearestQuery) ([]core.ScoredProduct, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if q.Limit <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	var out []core.ScoredProduct
	for _, id := range s.sortedIDs() {
		p := s.products[id]
		if p.Embedding == nil || (q.Platform != "" && p.Platform != q.Platform) {
			continue
		}
		sim := core.CosineSimilarity(vector, p.Embedding)
		if sim < q.MinSimilarity {
			continue
		}
		out = append(out, core.ScoredProduct{Product: refOf(p, false), Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

