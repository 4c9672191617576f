package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

// Source implements storage.SourceRepository on a read-only MySQL connection.
type Source struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ storage.SourceRepository = (*Source)(nil)

// Option configures a Source.
type Option func(*Source) error

// WithLogger sets the logger used by the source.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) error {
		s.logger = logger.With("component", "mysql")
		return nil
	}
}

// Open connects to the source store.
//
// Returns storage.SourceRepository interface to enforce abstraction.
func Open(ctx context.Context, cfg *Config, opts ...Option) (storage.SourceRepository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, "mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)
	return NewSource(db, opts...)
}

// NewSource wraps an existing connection.
func NewSource(db *sqlx.DB, opts ...Option) (*Source, error) {
	s := &Source{db: db, logger: slog.Default().With("component", "mysql")}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Bracketed style hints on inventory labels, e.g. "Air Max 90 [DD0385-100]".
// Alias SKUs use spaces where StockX style ids use hyphens.
const (
	stockxHintJoin = `
		SELECT item, SUBSTRING_INDEX(SUBSTRING_INDEX(item, '[', -1), ']', 1) AS hint
		FROM inventory WHERE item LIKE '%[%]%'`
	aliasHintJoin = `
		SELECT item, REPLACE(SUBSTRING_INDEX(SUBSTRING_INDEX(item, '[', -1), ']', 1), '-', ' ') AS hint
		FROM inventory WHERE item LIKE '%[%]%'`
)

// productQuery returns the SELECT for one platform and scope.
func productQuery(platform core.Platform, scope storage.SourceScope) (string, error) {
	var table, styleCol, idCol, hintJoin string
	switch platform {
	case core.PlatformStockX:
		table, styleCol, idCol, hintJoin = "stockx_products", "styleId", "productId", stockxHintJoin
	case core.PlatformAlias:
		table, styleCol, idCol, hintJoin = "alias_products", "sku", "catalogId", aliasHintJoin
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnknownPlatform, platform)
	}

	switch scope {
	case storage.ScopeAll:
		return fmt.Sprintf("SELECT * FROM %s ORDER BY %s", table, idCol), nil
	case storage.ScopeInventoryReferenced:
		return fmt.Sprintf(`SELECT DISTINCT p.* FROM %s p JOIN (%s) i ON p.%s = i.hint ORDER BY p.%s`,
			table, hintJoin, styleCol, idCol), nil
	case storage.ScopeStyled:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s IS NOT NULL AND %s <> '' ORDER BY %s",
			table, styleCol, styleCol, idCol), nil
	case storage.ScopeUnstyled:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s IS NULL OR %s = '' ORDER BY %s",
			table, styleCol, styleCol, idCol), nil
	}
	return "", fmt.Errorf("%w: scope %s", storage.ErrInvalidQuery, scope)
}

// Products returns the rows of one platform within scope.
func (s *Source) Products(ctx context.Context, platform core.Platform, scope storage.SourceScope) ([]core.SourceProduct, error) {
	query, err := productQuery(platform, scope)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s products: %w", platform, err)
	}
	defer rows.Close()

	var out []core.SourceProduct
	for rows.Next() {
		fields := make(map[string]any)
		if err := rows.MapScan(fields); err != nil {
			return nil, fmt.Errorf("scan %s product: %w", platform, err)
		}
		out = append(out, core.SourceProduct{Platform: platform, Fields: normalizeFields(fields)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("read source products", "platform", platform, "scope", scope, "rows", len(out))
	return out, nil
}

// normalizeFields converts raw driver bytes to strings.
func normalizeFields(fields map[string]any) map[string]any {
	for k, v := range fields {
		if b, ok := v.([]byte); ok {
			fields[k] = string(b)
		}
	}
	return fields
}

type inventoryRow struct {
	SKU             string         `db:"sku"`
	Item            sql.NullString `db:"item"`
	Size            sql.NullString `db:"size"`
	Sold            sql.NullBool   `db:"sold"`
	Location        sql.NullString `db:"location"`
	StockXProductID sql.NullString `db:"stockx_productId"`
	AliasCatalogID  sql.NullString `db:"alias_catalog_id"`
	StyleID         sql.NullString `db:"styleId"`
}

func (r inventoryRow) unit() core.InventoryUnit {
	return core.InventoryUnit{
		SKU:             r.SKU,
		RawItemLabel:    r.Item.String,
		Size:            r.Size.String,
		Sold:            r.Sold.Bool,
		Location:        r.Location.String,
		StockXProductID: r.StockXProductID.String,
		AliasCatalogID:  r.AliasCatalogID.String,
		StyleID:         r.StyleID.String,
		LinkConfidence:  core.LinkNone,
	}
}

// InventoryUnits returns every inventory row ordered by sku.
func (s *Source) InventoryUnits(ctx context.Context) ([]core.InventoryUnit, error) {
	var rows []inventoryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT sku, item, size, sold, location, stockx_productId, alias_catalog_id, styleId
		FROM inventory WHERE sku IS NOT NULL AND sku <> ''
		ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	out := make([]core.InventoryUnit, len(rows))
	for i, r := range rows {
		out[i] = r.unit()
	}
	return out, nil
}

// Close closes the connection.
func (s *Source) Close() error {
	return s.db.Close()
}
