package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gyaneshwarpardhi/plado/internal/event"
)

//go:embed schema.sql
var schemaSQL string

// SQLite persists snapshots in a single-file database so a restarted daemon
// resumes diffing from where it stopped instead of treating every entity as
// a first observation.
type SQLite struct {
	db    *sql.DB
	locks sync.Map // Key -> *sync.Mutex
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect store: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply store schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) lock(key Key) func() {
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *SQLite) Get(ctx context.Context, key Key) (*event.Snapshot, error) {
	defer s.lock(key)()

	var attrs string
	var observed int64
	err := s.db.QueryRowContext(ctx,
		`SELECT attributes, observed_at FROM snapshots WHERE scope = ? AND kind = ? AND entity_id = ?`,
		key.Scope, string(key.Kind), key.EntityID,
	).Scan(&attrs, &observed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get", err)
	}
	snap, err := decode(key.Kind, key.EntityID, attrs, observed)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLite) Put(ctx context.Context, key Key, snap event.Snapshot) error {
	defer s.lock(key)()

	attrs, err := json.Marshal(snap.Attributes)
	if err != nil {
		return fmt.Errorf("store put %s/%s: encode attributes: %w", key.Scope, key.EntityID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO snapshots (scope, kind, entity_id, attributes, observed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (scope, kind, entity_id) DO UPDATE SET
    attributes = excluded.attributes,
    observed_at = excluded.observed_at`,
		key.Scope, string(key.Kind), key.EntityID, string(attrs), snap.ObservedAt.UnixNano(),
	)
	return s.wrap("put", err)
}

// List returns the snapshots stored under scope ordered by entity id.
func (s *SQLite) List(ctx context.Context, scope string) ([]event.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, entity_id, attributes, observed_at FROM snapshots WHERE scope = ? ORDER BY entity_id`,
		scope,
	)
	if err != nil {
		return nil, s.wrap("list", err)
	}
	defer rows.Close()

	var out []event.Snapshot
	for rows.Next() {
		var kind, id, attrs string
		var observed int64
		if err := rows.Scan(&kind, &id, &attrs, &observed); err != nil {
			return nil, s.wrap("list", err)
		}
		snap, err := decode(event.Kind(kind), id, attrs, observed)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, s.wrap("list", rows.Err())
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || err.Error() == "sql: database is closed" {
		return ErrClosed
	}
	return fmt.Errorf("store %s: %w", op, err)
}

func decode(kind event.Kind, id, attrs string, observed int64) (event.Snapshot, error) {
	snap := event.Snapshot{EntityID: id, Kind: kind, ObservedAt: time.Unix(0, observed)}
	if err := json.Unmarshal([]byte(attrs), &snap.Attributes); err != nil {
		return event.Snapshot{}, fmt.Errorf("store: decode attributes of %s: %w", id, err)
	}
	if snap.Attributes == nil {
		snap.Attributes = map[string]any{}
	}
	return snap, nil
}
