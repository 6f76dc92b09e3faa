package metadata

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresBackend is the second SQL meta-data backend option, chosen over
// MySQLBackend when the deployment already standardizes on Postgres for
// its other services.
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend opens a connection using dsn (the lib/pq DSN or
// connection-string format) and ensures the backing table exists.
func NewPostgresBackend(dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("metadata: open postgres: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS mcs_metadata (
		k TEXT PRIMARY KEY,
		v BYTEA NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: create postgres table: %w", err)
	}
	return &PostgresBackend{db: db}, nil
}

func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := b.db.QueryRowContext(ctx, `SELECT v FROM mcs_metadata WHERE k = $1`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (b *PostgresBackend) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.db.ExecContext(ctx, `INSERT INTO mcs_metadata (k, v) VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`, key, value)
	return err
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM mcs_metadata WHERE k = $1`, key)
	return err
}

func (b *PostgresBackend) Close() error { return b.db.Close() }
