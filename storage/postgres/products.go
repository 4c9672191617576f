package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

// ProductRepository implements storage.ProductRepository.
type ProductRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ storage.ProductRepository = (*ProductRepository)(nil)

const productColumns = `product_id_internal, product_id_platform, platform, product_name_platform,
	style_id_platform, style_id_normalized, embedding_text, embedding_version, embedding,
	platform_attributes, keyword_used`

// upsertProductSQL keeps the stored vector when the incoming product has none
// and its embedding text is unchanged; a changed text invalidates it.
const upsertProductSQL = `
	INSERT INTO products (
		product_id_platform, platform, product_name_platform, style_id_platform,
		style_id_normalized, embedding_text, embedding_version, embedding,
		platform_attributes, keyword_used
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (product_id_platform, platform) DO UPDATE SET
		product_name_platform = EXCLUDED.product_name_platform,
		style_id_platform     = EXCLUDED.style_id_platform,
		style_id_normalized   = EXCLUDED.style_id_normalized,
		embedding_text        = EXCLUDED.embedding_text,
		embedding_version     = EXCLUDED.embedding_version,
		embedding = CASE
			WHEN EXCLUDED.embedding IS NOT NULL THEN EXCLUDED.embedding
			WHEN products.embedding_text IS DISTINCT FROM EXCLUDED.embedding_text THEN NULL
			ELSE products.embedding
		END,
		platform_attributes = EXCLUDED.platform_attributes,
		keyword_used        = EXCLUDED.keyword_used,
		updated_at          = now()
	RETURNING product_id_internal`

// UpsertProducts writes products in one transaction.
func (r *ProductRepository) UpsertProducts(ctx context.Context, products []*core.CanonicalProduct) error {
	if len(products) == 0 {
		return nil
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range products {
			attrs := p.Attributes
			if attrs == nil {
				attrs = map[string]any{}
			}
			batch.Queue(upsertProductSQL,
				p.PlatformID, string(p.Platform), p.DisplayName, p.StyleKeyRaw,
				p.StyleKeyNormalized, p.EmbeddingText, p.EmbeddingVersion, vectorArg(p.Embedding),
				attrs, p.KeywordHint)
		}

		results := tx.SendBatch(ctx, batch)
		for _, p := range products {
			if err := results.QueryRow().Scan(&p.InternalID); err != nil {
				results.Close()
				return fmt.Errorf("upsert %s/%s: %w", p.Platform, p.PlatformID, translate(err))
			}
		}
		return results.Close()
	})
}

// GetProduct retrieves a product by internal id.
func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (*core.CanonicalProduct, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE product_id_internal = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// ExistingPlatformIDs returns the platform ids already present for a platform.
func (r *ProductRepository) ExistingPlatformIDs(ctx context.Context, platform core.Platform) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id_platform FROM products WHERE platform = $1`, string(platform))
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// ProductRefs returns every product of a platform ordered by internal id.
func (r *ProductRepository) ProductRefs(ctx context.Context, platform core.Platform, withEmbeddings bool) ([]core.ProductRef, error) {
	vectorCol := "NULL::vector"
	if withEmbeddings {
		vectorCol = "embedding"
	}
	rows, err := r.pool.Query(ctx, `
		SELECT product_id_internal, platform, product_id_platform, product_name_platform,
		       style_id_platform, style_id_normalized, `+vectorCol+`
		FROM products WHERE platform = $1
		ORDER BY product_id_internal`, string(platform))
	if err != nil {
		return nil, err
	}
	return collectRefs(rows)
}

// ProductRefsByName groups products whose display name is in names.
func (r *ProductRepository) ProductRefsByName(ctx context.Context, names []string) (map[string][]core.ProductRef, error) {
	out := make(map[string][]core.ProductRef)
	if len(names) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT product_id_internal, platform, product_id_platform, product_name_platform,
		       style_id_platform, style_id_normalized, NULL::vector
		FROM products WHERE product_name_platform = ANY($1)
		ORDER BY product_id_internal`, names)
	if err != nil {
		return nil, err
	}
	refs, err := collectRefs(rows)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		out[ref.DisplayName] = append(out[ref.DisplayName], ref)
	}
	return out, nil
}

// ProductIDsByPlatformID resolves platform ids of one platform to internal ids.
func (r *ProductRepository) ProductIDsByPlatformID(ctx context.Context, platform core.Platform, platformIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(platformIDs))
	if len(platformIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT product_id_platform, product_id_internal FROM products
		WHERE platform = $1 AND product_id_platform = ANY($2)`, string(platform), platformIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pid string
			id  int64
		)
		if err := rows.Scan(&pid, &id); err != nil {
			return nil, err
		}
		out[pid] = id
	}
	return out, rows.Err()
}

// EmbeddingWork lists products needing a vector, ordered by internal id.
func (r *ProductRepository) EmbeddingWork(ctx context.Context, filter storage.WorkFilter) ([]core.EmbeddingWork, error) {
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT product_id_internal, embedding_text FROM products
		WHERE embedding_text IS NOT NULL AND embedding_text <> ''
		  AND product_id_internal > $1
		  AND ($2::bigint = 0 OR product_id_internal <= $2::bigint)
		  AND ($3::boolean OR embedding IS NULL)
		ORDER BY product_id_internal
		LIMIT $4`, filter.AfterID, filter.ThroughID, filter.IncludeEmbedded, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.EmbeddingWork, error) {
		var w core.EmbeddingWork
		err := row.Scan(&w.InternalID, &w.EmbeddingText)
		return w, err
	})
}

// StaleProducts lists products whose embedding version differs from version.
func (r *ProductRepository) StaleProducts(ctx context.Context, version string, afterID int64, limit int) ([]*core.CanonicalProduct, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE embedding_version IS DISTINCT FROM $1 AND product_id_internal > $2
		ORDER BY product_id_internal
		LIMIT $3`, version, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.CanonicalProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateEmbeddings writes vectors in one transaction.
func (r *ProductRepository) UpdateEmbeddings(ctx context.Context, updates []core.EmbeddingUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	var updated int
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, u := range updates {
			batch.Queue(`
				UPDATE products SET
					embedding = $2,
					embedding_version = $3,
					embedding_text = COALESCE(NULLIF($4, ''), embedding_text),
					updated_at = now()
				WHERE product_id_internal = $1`,
				u.InternalID, vectorArg(u.Vector), u.Version, u.Text)
		}
		results := tx.SendBatch(ctx, batch)
		for _, u := range updates {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("update embedding %d: %w", u.InternalID, err)
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

// CountProducts returns total and embedded product counts.
func (r *ProductRepository) CountProducts(ctx context.Context) (total, embedded int64, err error) {
	err = r.pool.QueryRow(ctx, `SELECT count(*), count(embedding) FROM products`).Scan(&total, &embedded)
	return total, embedded, err
}

// NearestProducts orders products by cosine distance to vector.
// With the ivfflat index present the scan is approximate.
func (r *ProductRepository) NearestProducts(ctx context.Context, vector []float32, q storage.NearestQuery) ([]core.ScoredProduct, error) {
	if q.Limit <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	rows, err := r.pool.Query(ctx, `
		SELECT product_id_internal, platform, product_id_platform, product_name_platform,
		       style_id_platform, style_id_normalized, 1 - (embedding <=> $1) AS similarity
		FROM products
		WHERE embedding IS NOT NULL AND ($2::text = '' OR platform = $2::text)
		ORDER BY embedding <=> $1
		LIMIT $3`, pgvector.NewVector(vector), string(q.Platform), q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.ScoredProduct
	for rows.Next() {
		var (
			sp       core.ScoredProduct
			platform string
		)
		if err := rows.Scan(&sp.Product.InternalID, &platform, &sp.Product.PlatformID, &sp.Product.DisplayName,
			&sp.Product.StyleKeyRaw, &sp.Product.StyleKeyNormalized, &sp.Similarity); err != nil {
			return nil, err
		}
		sp.Product.Platform = core.Platform(platform)
		if sp.Similarity < q.MinSimilarity {
			// Ordered by distance: nothing further qualifies
			break
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func vectorArg(v []float32) any {
	if v == nil {
		return nil
	}
	return pgvector.NewVector(v)
}

func scanProduct(row pgx.Row) (*core.CanonicalProduct, error) {
	var (
		p         core.CanonicalProduct
		platform  string
		text      *string
		version   *string
		embedding *pgvector.Vector
	)
	err := row.Scan(&p.InternalID, &p.PlatformID, &platform, &p.DisplayName,
		&p.StyleKeyRaw, &p.StyleKeyNormalized, &text, &version, &embedding,
		&p.Attributes, &p.KeywordHint)
	if err != nil {
		return nil, err
	}
	p.Platform = core.Platform(platform)
	if text != nil {
		p.EmbeddingText = *text
	}
	if version != nil {
		p.EmbeddingVersion = *version
	}
	if embedding != nil {
		p.Embedding = embedding.Slice()
	}
	return &p, nil
}

func collectRefs(rows pgx.Rows) ([]core.ProductRef, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ProductRef, error) {
		var (
			ref       core.ProductRef
			platform  string
			embedding *pgvector.Vector
		)
		err := row.Scan(&ref.InternalID, &platform, &ref.PlatformID, &ref.DisplayName,
			&ref.StyleKeyRaw, &ref.StyleKeyNormalized, &embedding)
		if err != nil {
			return ref, err
		}
		ref.Platform = core.Platform(platform)
		if embedding != nil {
			ref.Embedding = embedding.Slice()
		}
		return ref, nil
	})
}
