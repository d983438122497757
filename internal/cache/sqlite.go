package cache

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/monitoring"
)

// SQLiteCache stores the snapshot as one row of a key/value table.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a cache database at path.
func OpenSQLite(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	// one writer; the cache is only touched by its owning workspace
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache %s: %w", path, err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Save(snap dataset.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, Key, data)
	if err != nil {
		return fmt.Errorf("save %s: %w", Key, err)
	}
	return nil
}

func (c *SQLiteCache) Load() dataset.Snapshot {
	var data []byte
	err := c.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, Key).Scan(&data)
	if err == sql.ErrNoRows {
		return dataset.Snapshot{}
	}
	if err != nil {
		monitoring.Logf("cache: reading %s: %v", Key, err)
		return dataset.Snapshot{}
	}
	return decode(data, "sqlite cache")
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
