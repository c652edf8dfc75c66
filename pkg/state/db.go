package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Backend persists store values as strings grouped by scope.
type Backend interface {
	Get(scope, key string) (string, bool, error)
	Put(scope, key, value string) error
	Delete(scope, key string) error
	List(scope string) (map[string]string, error)
	Close() error
}

// DB is the sqlite backend kept in the data directory.
type DB struct {
	db   *sql.DB
	path string
}

// OpenDB opens (or creates) the state database under dataDir.
func OpenDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "state.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &DB{db: db, path: dbPath}
	if err := d.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize state database: %w", err)
	}
	return d, nil
}

func (d *DB) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (scope, key)
	);

	CREATE INDEX IF NOT EXISTS idx_kv_scope ON kv(scope);
	`
	_, err := d.db.Exec(schema)
	return err
}

// Path returns the database file location.
func (d *DB) Path() string {
	return d.path
}

func (d *DB) Get(scope, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM kv WHERE scope = ? AND key = ?", scope, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (d *DB) Put(scope, key, value string) error {
	_, err := d.db.Exec(`
	INSERT OR REPLACE INTO kv (scope, key, value, updated_at)
	VALUES (?, ?, ?, ?)
	`, scope, key, value, time.Now())
	return err
}

func (d *DB) Delete(scope, key string) error {
	_, err := d.db.Exec("DELETE FROM kv WHERE scope = ? AND key = ?", scope, key)
	return err
}

func (d *DB) List(scope string) (map[string]string, error) {
	rows, err := d.db.Query("SELECT key, value FROM kv WHERE scope = ?", scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (d *DB) Close() error {
	return d.db.Close()
}

// MemoryBackend keeps values for the lifetime of the process only.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string]string)}
}

func (m *MemoryBackend) Get(scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[scope][key]
	return v, ok, nil
}

func (m *MemoryBackend) Put(scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[scope] == nil {
		m.data[scope] = make(map[string]string)
	}
	m.data[scope][key] = value
	return nil
}

func (m *MemoryBackend) Delete(scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[scope], key)
	return nil
}

func (m *MemoryBackend) List(scope string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data[scope]))
	for k, v := range m.data[scope] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryBackend) Close() error { return nil }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
