package kvstore

import (
	"database/sql"
	"embed"

	"github.com/status-im/dapp-connector/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLStore keeps blobs in the connector_kv table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore migrates db and returns a store backed by it.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	resources, err := sqlite.AssetsFromFS(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(db, resources); err != nil {
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM connector_kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *SQLStore) Set(key string, value []byte) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return
	}
	defer func() {
		if err == nil {
			err = tx.Commit()
			return
		}
		_ = tx.Rollback()
	}()

	_, err = tx.Exec("INSERT OR REPLACE INTO connector_kv (key, value, updated_at) VALUES (?, ?, strftime('%s','now'))", key, value)
	return
}

func (s *SQLStore) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM connector_kv WHERE key = ?", key)
	return err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
