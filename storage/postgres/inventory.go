package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

// InventoryRepository implements storage.InventoryRepository.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

var _ storage.InventoryRepository = (*InventoryRepository)(nil)

const upsertInventorySQL = `
	INSERT INTO inventory (
		sku, item, size, sold, location, stockx_product_id, alias_catalog_id,
		style_id, product_id_internal, link_confidence
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (sku) DO UPDATE SET
		sold                = EXCLUDED.sold,
		location            = EXCLUDED.location,
		product_id_internal = EXCLUDED.product_id_internal,
		link_confidence     = EXCLUDED.link_confidence,
		updated_at          = now()`

// UpsertInventory writes units in one transaction.
func (r *InventoryRepository) UpsertInventory(ctx context.Context, units []core.InventoryUnit) error {
	if len(units) == 0 {
		return nil
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, u := range units {
			batch.Queue(upsertInventorySQL,
				u.SKU, u.RawItemLabel, u.Size, u.Sold, u.Location, u.StockXProductID,
				u.AliasCatalogID, u.StyleID, u.LinkedProductID, string(confidenceOrNone(u.LinkConfidence)))
		}
		results := tx.SendBatch(ctx, batch)
		for _, u := range units {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("upsert inventory %s: %w", u.SKU, translate(err))
			}
		}
		return results.Close()
	})
}

// UnlinkedInventory returns units without a linked product, ordered by sku.
func (r *InventoryRepository) UnlinkedInventory(ctx context.Context) ([]core.InventoryUnit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sku, item, size, sold, location, stockx_product_id, alias_catalog_id,
		       style_id, product_id_internal, link_confidence
		FROM inventory WHERE product_id_internal IS NULL
		ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.InventoryUnit, error) {
		var (
			u          core.InventoryUnit
			confidence string
		)
		err := row.Scan(&u.SKU, &u.RawItemLabel, &u.Size, &u.Sold, &u.Location, &u.StockXProductID,
			&u.AliasCatalogID, &u.StyleID, &u.LinkedProductID, &confidence)
		u.LinkConfidence = core.LinkConfidence(confidence)
		return u, err
	})
}

// UpdateLinks sets linked product and confidence by sku.
func (r *InventoryRepository) UpdateLinks(ctx context.Context, units []core.InventoryUnit) (int, error) {
	if len(units) == 0 {
		return 0, nil
	}
	var updated int
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, u := range units {
			batch.Queue(`
				UPDATE inventory SET product_id_internal = $2, link_confidence = $3, updated_at = now()
				WHERE sku = $1`,
				u.SKU, u.LinkedProductID, string(confidenceOrNone(u.LinkConfidence)))
		}
		results := tx.SendBatch(ctx, batch)
		for _, u := range units {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("update link %s: %w", u.SKU, err)
			}
			updated += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func confidenceOrNone(c core.LinkConfidence) core.LinkConfidence {
	if c == "" {
		return core.LinkNone
	}
	return c
}
