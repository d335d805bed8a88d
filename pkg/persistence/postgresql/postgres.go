// Package postgresql provides a PostgreSQL-backed Store: a single JSONB key-value table.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements persistence.Store using PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence opens the database, verifies the connection and runs migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Persistence{
		db:     db,
		logger: logger.With("module", "postgresql"),
	}

	if err := sqlbase.NewMigrationManager(logger, db, migrations()).RunMigrations(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return p, nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

func (p *Persistence) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte

	err := p.db.QueryRowContext(ctx, `SELECT value FROM kv_records WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewKeyError("get", key, persistence.ErrNotFound)
		}

		return nil, persistence.NewKeyError("get", key, err)
	}

	return value, nil
}

func (p *Persistence) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kv_records (key, collection, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, collectionOf(key), string(value))
	if err != nil {
		return persistence.NewKeyError("put", key, err)
	}

	return nil
}

func (p *Persistence) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM kv_records WHERE key = $1`, key); err != nil {
		return persistence.NewKeyError("delete", key, err)
	}

	return nil
}

func (p *Persistence) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT key FROM kv_records WHERE collection = $1 AND starts_with(key, $2) ORDER BY key COLLATE "C"`,
		collectionOf(prefix), prefix)
	if err != nil {
		return nil, persistence.NewKeyError("list", prefix, err)
	}

	defer func() { _ = rows.Close() }()

	keys := []string{}

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, persistence.NewKeyError("list", prefix, err)
		}

		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewKeyError("list", prefix, err)
	}

	return keys, nil
}

// collectionOf returns the first key segment; it is indexed to keep listings off a full scan.
func collectionOf(key string) string {
	collection, _, _ := strings.Cut(key, "/")

	return collection
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS kv_records (
				key TEXT PRIMARY KEY,
				value JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
		2: `
			ALTER TABLE kv_records ADD COLUMN IF NOT EXISTS collection TEXT NOT NULL DEFAULT '';
			UPDATE kv_records SET collection = split_part(key, '/', 1);
			CREATE INDEX IF NOT EXISTS idx_kv_records_collection_key ON kv_records (collection, key COLLATE "C");
		`,
	}
}
