package grants

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const grantsSchema = `
CREATE TABLE IF NOT EXISTS content_grants (
	document_key TEXT PRIMARY KEY,
	users        TEXT[] NOT NULL DEFAULT '{}'
)`

// PostgresStore reads grants from the content_grants table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the grants database and verifies
// reachability with a ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect grants database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping grants database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the content_grants table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, grantsSchema); err != nil {
		return fmt.Errorf("create content_grants table: %w", err)
	}
	return nil
}

// List returns every grant row.
func (s *PostgresStore) List(ctx context.Context) ([]Grant, error) {
	rows, err := s.pool.Query(ctx, `SELECT document_key, users FROM content_grants`)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var all []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.DocumentKey, &g.Users); err != nil {
			return nil, fmt.Errorf("scan grant row: %w", err)
		}
		all = append(all, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read grant rows: %w", err)
	}
	return all, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
