package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

type inventoryRepo Store

func (r *inventoryRepo) UpsertInventory(ctx context.Context, units []core.InventoryUnit) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	for _, u := range units {
		if err := core.ValidateInventoryUnit(&u); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
		}
	}
	for _, u := range units {
		if u.LinkConfidence == "" {
			u.LinkConfidence = core.LinkNone
		}
		if old, ok := s.inventory[u.SKU]; ok {
			old.Sold = u.Sold
			old.Location = u.Location
			old.LinkedProductID = u.LinkedProductID
			old.LinkConfidence = u.LinkConfidence
			u = old
		}
		s.inventory[u.SKU] = u
	}
	return nil
}

func (r *inventoryRepo) UnlinkedInventory(ctx context.Context) ([]core.InventoryUnit, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []core.InventoryUnit
	for _, u := range s.inventory {
		if u.LinkedProductID == nil {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *inventoryRepo) UpdateLinks(ctx context.Context, units []core.InventoryUnit) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	n := 0
	for _, u := range units {
		old, ok := s.inventory[u.SKU]
		if !ok {
			continue
		}
		old.LinkedProductID = u.LinkedProductID
		old.LinkConfidence = u.LinkConfidence
		s.inventory[u.SKU] = old
		n++
	}
	return n, nil
}

// InventoryUnit returns a stored unit, for test assertions.
func (s *Store) InventoryUnit(sku string) (core.InventoryUnit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.inventory[sku]
	return u, ok
}

type mappingRepo Store

func (r *mappingRepo) SaveMappings(ctx context.Context, mappings []*core.ProductMapping) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	for _, m := range mappings {
		if err := core.ValidateMapping(m); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
		}
		if _, ok := s.products[m.SourceProductID]; !ok {
			return fmt.Errorf("%w: source %d", storage.ErrNotFound, m.SourceProductID)
		}
		if _, ok := s.products[m.TargetProductID]; !ok {
			return fmt.Errorf("%w: target %d", storage.ErrNotFound, m.TargetProductID)
		}
	}
	for _, m := range mappings {
		stored, ok := s.mappings[m.SourceProductID]
		if ok {
			stored.IsDefault = stored.IsDefault && stored.TargetProductID == m.TargetProductID
			stored.TargetProductID = m.TargetProductID
			stored.ConfidenceScore = m.ConfidenceScore
			stored.Method = m.Method
		} else {
			s.nextMapID++
			stored = &core.ProductMapping{
				MappingID:       s.nextMapID,
				SourceProductID: m.SourceProductID,
				TargetProductID: m.TargetProductID,
				ConfidenceScore: m.ConfidenceScore,
				Method:          m.Method,
			}
			s.mappings[m.SourceProductID] = stored
		}
		m.MappingID = stored.MappingID
		m.IsDefault = stored.IsDefault
	}
	return nil
}

func (r *mappingRepo) ListMappings(ctx context.Context) ([]core.ProductMapping, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]core.ProductMapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MappingID < out[j].MappingID })
	return out, nil
}

func (r *mappingRepo) MappedSources(ctx context.Context) (map[int64]struct{}, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(s.mappings))
	for src := range s.mappings {
		out[src] = struct{}{}
	}
	return out, nil
}

func (r *mappingRepo) ApplyDefaults(ctx context.Context, defaultIDs []int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	want := make(map[int64]struct{}, len(defaultIDs))
	for _, id := range defaultIDs {
		want[id] = struct{}{}
	}
	targets := make(map[int64]int64)
	for _, m := range s.mappings {
		if _, ok := want[m.MappingID]; !ok {
			continue
		}
		if other, dup := targets[m.TargetProductID]; dup {
			return fmt.Errorf("%w: mappings %d and %d share target %d",
				storage.ErrDuplicateKey, other, m.MappingID, m.TargetProductID)
		}
		targets[m.TargetProductID] = m.MappingID
	}
	for _, m := range s.mappings {
		_, m.IsDefault = want[m.MappingID]
	}
	return nil
}

func (r *mappingRepo) ClearMappings(ctx context.Context) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mappings = make(map[int64]*core.ProductMapping)
	return nil
}

type indexManager Store

func (m *indexManager) CreateVectorIndex(ctx context.Context, name string, lists int, memoryMB int) error {
	s := (*Store)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.FailVectorIndex != nil {
		if err := s.FailVectorIndex(lists, memoryMB); err != nil {
			return err
		}
	}
	s.indexes[name] = storage.IndexSpec{Name: name, Table: "products", Columns: []string{"embedding"}}
	return nil
}

func (m *indexManager) CreateIndex(ctx context.Context, spec storage.IndexSpec) error {
	s := (*Store)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if spec.Name == "" || spec.Table == "" || len(spec.Columns) == 0 {
		return storage.ErrInvalidQuery
	}
	if _, ok := s.indexes[spec.Name]; !ok {
		s.indexes[spec.Name] = spec
	}
	return nil
}

func (m *indexManager) DropIndex(ctx context.Context, name string) error {
	s := (*Store)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	delete(s.indexes, name)
	return nil
}

func (m *indexManager) IndexExists(ctx context.Context, name string) (bool, error) {
	s := (*Store)(m)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return false, err
	}
	_, ok := s.indexes[name]
	return ok, nil
}
