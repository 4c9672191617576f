package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

// MappingRepository implements storage.MappingRepository.
type MappingRepository struct {
	pool *pgxpool.Pool
}

var _ storage.MappingRepository = (*MappingRepository)(nil)

// The default flag survives a re-save only while the target is unchanged.
const upsertMappingSQL = `
	INSERT INTO product_mappings (source_product_id, target_product_id, confidence_score, match_method)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (source_product_id) DO UPDATE SET
		target_product_id = EXCLUDED.target_product_id,
		confidence_score  = EXCLUDED.confidence_score,
		match_method      = EXCLUDED.match_method,
		is_default = product_mappings.is_default
			AND product_mappings.target_product_id = EXCLUDED.target_product_id,
		updated_at = now()
	RETURNING mapping_id, is_default`

// SaveMappings writes mappings in one transaction.
func (r *MappingRepository) SaveMappings(ctx context.Context, mappings []*core.ProductMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, m := range mappings {
			batch.Queue(upsertMappingSQL, m.SourceProductID, m.TargetProductID, m.ConfidenceScore, string(m.Method))
		}
		results := tx.SendBatch(ctx, batch)
		for _, m := range mappings {
			if err := results.QueryRow().Scan(&m.MappingID, &m.IsDefault); err != nil {
				results.Close()
				return fmt.Errorf("save mapping %d->%d: %w", m.SourceProductID, m.TargetProductID, translate(err))
			}
		}
		return results.Close()
	})
}

// ListMappings returns every mapping ordered by mapping id.
func (r *MappingRepository) ListMappings(ctx context.Context) ([]core.ProductMapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT mapping_id, source_product_id, target_product_id, confidence_score, match_method, is_default
		FROM product_mappings ORDER BY mapping_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ProductMapping, error) {
		var (
			m      core.ProductMapping
			method string
		)
		err := row.Scan(&m.MappingID, &m.SourceProductID, &m.TargetProductID, &m.ConfidenceScore, &method, &m.IsDefault)
		m.Method = core.MatchMethod(method)
		return m, err
	})
}

// MappedSources returns the ids of already mapped source products.
func (r *MappingRepository) MappedSources(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT source_product_id FROM product_mappings`)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// ApplyDefaults marks exactly defaultIDs as default.
// Clearing runs first so the one-default-per-target index never sees two.
func (r *MappingRepository) ApplyDefaults(ctx context.Context, defaultIDs []int64) error {
	if defaultIDs == nil {
		defaultIDs = []int64{}
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE product_mappings SET is_default = false, updated_at = now()
			WHERE is_default AND NOT (mapping_id = ANY($1))`, defaultIDs); err != nil {
			return fmt.Errorf("clear defaults: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE product_mappings SET is_default = true, updated_at = now()
			WHERE NOT is_default AND mapping_id = ANY($1)`, defaultIDs); err != nil {
			return fmt.Errorf("set defaults: %w", translate(err))
		}
		return nil
	})
}

// ClearMappings removes every mapping.
func (r *MappingRepository) ClearMappings(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM product_mappings`)
	return err
}
