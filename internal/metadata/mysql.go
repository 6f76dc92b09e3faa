package metadata

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLBackend stores the meta-data key/value space in a single table,
// for the multi-node deployment where every node must see the same
// meta-data and a shared file directory isn't available.
type MySQLBackend struct {
	db *sql.DB
}

// NewMySQLBackend opens a connection using dsn (the go-sql-driver/mysql
// DSN format) and ensures the backing table exists.
func NewMySQLBackend(dsn string) (*MySQLBackend, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("metadata: open mysql: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS mcs_metadata (
		k VARCHAR(512) PRIMARY KEY,
		v LONGBLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: create mysql table: %w", err)
	}
	return &MySQLBackend{db: db}, nil
}

func (b *MySQLBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := b.db.QueryRowContext(ctx, `SELECT v FROM mcs_metadata WHERE k = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (b *MySQLBackend) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.db.ExecContext(ctx, `INSERT INTO mcs_metadata (k, v) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE v = VALUES(v)`, key, value)
	return err
}

func (b *MySQLBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM mcs_metadata WHERE k = ?`, key)
	return err
}

func (b *MySQLBackend) Close() error { return b.db.Close() }
