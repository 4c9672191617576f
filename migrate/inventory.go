package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/normalize"
	"github.com/poiesic/catalogsync/progress"
	"github.com/poiesic/catalogsync/retry"
	"github.com/poiesic/catalogsync/storage"
	"github.com/poiesic/catalogsync/transform"
)

// InventoryMigrator copies inventory units to the destination and links them to products.
type InventoryMigrator struct {
	source    storage.SourceRepository
	products  storage.ProductRepository
	inventory storage.InventoryRepository
	settings
}

// InventoryReport summarizes an inventory migration or relink pass.
type InventoryReport struct {
	Total      int
	Written    int
	Failed     int
	PlatformID int // Linked through a carried platform product id
	Exact      int
	Hinted     int
	Ambiguous  int // Linked by default among several candidates; needs review
	Unlinked   int
}

// Linked is the number of units that received a product.
func (r InventoryReport) Linked() int {
	return r.PlatformID + r.Exact + r.Hinted + r.Ambiguous
}

func (r *InventoryReport) count(res transform.LinkResult) {
	switch res.Confidence {
	case core.LinkPlatformID:
		r.PlatformID++
	case core.LinkExact:
		r.Exact++
	case core.LinkHinted:
		r.Hinted++
	case core.LinkAmbiguous:
		r.Ambiguous++
	default:
		r.Unlinked++
	}
}

// NewInventoryMigrator creates an inventory migrator. source may be nil when
// only Relink is used.
func NewInventoryMigrator(source storage.SourceRepository, products storage.ProductRepository, inventory storage.InventoryRepository, opts ...Option) (*InventoryMigrator, error) {
	if products == nil || inventory == nil {
		return nil, ErrStoreRequired
	}
	m := &InventoryMigrator{source: source, products: products, inventory: inventory, settings: defaultSettings()}
	for _, opt := range opts {
		if err := opt(&m.settings); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Run reads every source unit, links it and upserts it keyed on sku. Each
// chunk commits on its own; a failed chunk is rolled back, counted and skipped.
func (m *InventoryMigrator) Run(ctx context.Context) (InventoryReport, error) {
	if m.source == nil {
		return InventoryReport{}, ErrSourceRequired
	}
	units, err := m.source.InventoryUnits(ctx)
	if err != nil {
		return InventoryReport{}, fmt.Errorf("read source inventory: %w", err)
	}

	report := InventoryReport{Total: len(units)}
	var valid []core.InventoryUnit
	for _, u := range units {
		if err := core.ValidateInventoryUnit(&u); err != nil {
			m.logger.Warn("skipping inventory unit", "err", err)
			report.Failed++
			continue
		}
		valid = append(valid, u)
	}

	if err := m.link(ctx, valid, &report); err != nil {
		return report, err
	}

	tracker := progress.NewTracker(m.progress, "inventory", len(valid), m.chunkSize)
	tracker.Start()
	defer tracker.Finish()

	for i, c := range chunk(valid, m.chunkSize) {
		if ctx.Err() != nil {
			break
		}
		err := retry.Do(ctx, m.policy, func() error {
			return m.inventory.UpsertInventory(ctx, c)
		})
		if err != nil {
			m.logger.Error("inventory chunk failed", "chunk", i, "units", len(c), "err", err)
			report.Failed += len(c)
			continue
		}
		report.Written += len(c)
		tracker.Increment(len(c))
	}

	m.logger.Info("inventory migrated", "total", report.Total, "written", report.Written,
		"linked", report.Linked(), "ambiguous", report.Ambiguous, "failed", report.Failed)
	return report, nil
}

// Relink links destination units that have no product yet. Units that stay
// unlinked are not written.
func (m *InventoryMigrator) Relink(ctx context.Context) (InventoryReport, error) {
	units, err := m.inventory.UnlinkedInventory(ctx)
	if err != nil {
		return InventoryReport{}, fmt.Errorf("read unlinked inventory: %w", err)
	}
	report := InventoryReport{Total: len(units)}
	if err := m.link(ctx, units, &report); err != nil {
		return report, err
	}

	var linked []core.InventoryUnit
	for _, u := range units {
		if u.LinkedProductID != nil {
			linked = append(linked, u)
		}
	}
	for i, c := range chunk(linked, m.chunkSize) {
		n, err := m.inventory.UpdateLinks(ctx, c)
		if err != nil {
			m.logger.Error("relink chunk failed", "chunk", i, "units", len(c), "err", err)
			report.Failed += len(c)
			continue
		}
		report.Written += n
	}
	m.logger.Info("inventory relinked", "unlinked", report.Total, "linked", report.Linked(), "ambiguous", report.Ambiguous)
	return report, nil
}

// link resolves products for units in place: carried platform ids first, then
// display name with the bracketed style hint as tie-break.
func (m *InventoryMigrator) link(ctx context.Context, units []core.InventoryUnit, report *InventoryReport) error {
	idx, err := m.platformIndex(ctx, units)
	if err != nil {
		return err
	}

	var names []string
	nameSet := make(map[string]struct{})
	for _, u := range units {
		if transform.LinkByPlatformID(u, idx).Linked() {
			continue
		}
		name := normalize.ItemName(u.RawItemLabel)
		if _, ok := nameSet[name]; !ok && name != "" {
			nameSet[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	candidates, err := m.products.ProductRefsByName(ctx, names)
	if err != nil {
		return fmt.Errorf("load link candidates: %w", err)
	}

	for i := range units {
		u := &units[i]
		res := transform.LinkByPlatformID(*u, idx)
		if !res.Linked() {
			res = transform.LinkInventory(u.RawItemLabel, candidates[normalize.ItemName(u.RawItemLabel)])
		}
		if res.NeedsReview {
			m.logger.Warn("ambiguous inventory link", "sku", u.SKU, "label", u.RawItemLabel, "product", *res.ProductID)
		}
		res.Apply(u)
		report.count(res)
	}
	return nil
}

func (m *InventoryMigrator) platformIndex(ctx context.Context, units []core.InventoryUnit) (transform.PlatformIDIndex, error) {
	var stockx, alias []string
	for _, u := range units {
		if u.StockXProductID != "" {
			stockx = append(stockx, u.StockXProductID)
		}
		if u.AliasCatalogID != "" {
			alias = append(alias, u.AliasCatalogID)
		}
	}
	var idx transform.PlatformIDIndex
	var err error
	if idx.StockX, err = m.products.ProductIDsByPlatformID(ctx, core.PlatformStockX, stockx); err != nil {
		return idx, fmt.Errorf("resolve stockx ids: %w", err)
	}
	if idx.Alias, err = m.products.ProductIDsByPlatformID(ctx, core.PlatformAlias, alias); err != nil {
		return idx, fmt.Errorf("resolve alias ids: %w", err)
	}
	return idx, nil
}
