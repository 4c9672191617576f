package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poiesic/catalogsync/storage"
)

// IndexManager implements storage.IndexManager.
type IndexManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ storage.IndexManager = (*IndexManager)(nil)

// CreateVectorIndex builds an ivfflat cosine index on products.embedding
// concurrently. The session memory ceiling is reset before the connection
// returns to the pool.
func (m *IndexManager) CreateVectorIndex(ctx context.Context, name string, lists int, memoryMB int) error {
	if lists <= 0 || memoryMB <= 0 {
		return fmt.Errorf("%w: lists=%d memory=%dMB", storage.ErrInvalidQuery, lists, memoryMB)
	}
	if err := m.dropInvalid(ctx, name); err != nil {
		return err
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET maintenance_work_mem = '%dMB'", memoryMB)); err != nil {
		return err
	}
	defer conn.Exec(context.WithoutCancel(ctx), "RESET maintenance_work_mem") //nolint:errcheck

	ddl := fmt.Sprintf(
		"CREATE INDEX CONCURRENTLY IF NOT EXISTS %s ON products USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)",
		pgx.Identifier{name}.Sanitize(), lists)
	m.logger.Info("building vector index", "name", name, "lists", lists, "memory_mb", memoryMB)
	_, err = conn.Exec(ctx, ddl)
	return err
}

// CreateIndex builds one btree index concurrently if it does not exist.
func (m *IndexManager) CreateIndex(ctx context.Context, spec storage.IndexSpec) error {
	if spec.Name == "" || spec.Table == "" || len(spec.Columns) == 0 {
		return fmt.Errorf("%w: incomplete index spec %q", storage.ErrInvalidQuery, spec.Name)
	}
	if err := m.dropInvalid(ctx, spec.Name); err != nil {
		return err
	}

	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	ddl := fmt.Sprintf("CREATE INDEX CONCURRENTLY IF NOT EXISTS %s ON %s (%s)",
		pgx.Identifier{spec.Name}.Sanitize(), pgx.Identifier{spec.Table}.Sanitize(), strings.Join(cols, ", "))
	if spec.Where != "" {
		ddl += " WHERE " + spec.Where
	}
	_, err := m.pool.Exec(ctx, ddl)
	return err
}

// DropIndex drops an index if it exists.
func (m *IndexManager) DropIndex(ctx context.Context, name string) error {
	_, err := m.pool.Exec(ctx, "DROP INDEX CONCURRENTLY IF EXISTS "+pgx.Identifier{name}.Sanitize())
	return err
}

// IndexExists reports whether a valid index named name exists.
func (m *IndexManager) IndexExists(ctx context.Context, name string) (bool, error) {
	var valid bool
	err := m.pool.QueryRow(ctx, `
		SELECT i.indisvalid FROM pg_index i
		JOIN pg_class c ON c.oid = i.indexrelid
		WHERE c.relname = $1`, name).Scan(&valid)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return valid, nil
}

// dropInvalid removes an index left INVALID by an interrupted concurrent build,
// which IF NOT EXISTS would otherwise keep.
func (m *IndexManager) dropInvalid(ctx context.Context, name string) error {
	var valid bool
	err := m.pool.QueryRow(ctx, `
		SELECT i.indisvalid FROM pg_index i
		JOIN pg_class c ON c.oid = i.indexrelid
		WHERE c.relname = $1`, name).Scan(&valid)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && valid) {
		return nil
	}
	if err != nil {
		return err
	}
	m.logger.Warn("dropping invalid index", "name", name)
	return m.DropIndex(ctx, name)
}
