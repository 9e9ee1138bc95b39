package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const sqliteRecordsSchemaV1 = `
CREATE TABLE IF NOT EXISTS records (
    domain TEXT NOT NULL,
    identity TEXT NOT NULL,
    target_id TEXT NOT NULL DEFAULT '',
    fields_json TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    PRIMARY KEY (domain, identity, target_id)
);
`

// SQLiteStore keeps one row per record, fields stored as a JSON payload so
// domains can add fields without migrations.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite record store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(sqliteRecordsSchemaV1); err != nil {
		return errors.Wrap(err, "sqlite record store: migrate")
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, key Key, fields map[string]any) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite record store: marshal fields")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO records(domain, identity, target_id, fields_json, created_at_ms, updated_at_ms)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(domain, identity, target_id) DO UPDATE SET
  fields_json = excluded.fields_json,
  updated_at_ms = excluded.updated_at_ms
`, key.Domain, key.Identity, key.TargetID, string(payload), now, now)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite record store: upsert")
	}
	return s.getLocked(ctx, key)
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.getLocked(ctx, key)
}

func (s *SQLiteStore) getLocked(ctx context.Context, key Key) (*Record, error) {
	var payload string
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
SELECT fields_json, created_at_ms, updated_at_ms FROM records
WHERE domain = ? AND identity = ? AND target_id = ?
`, key.Domain, key.Identity, key.TargetID).Scan(&payload, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "sqlite record store: get")
	}

	ret := &Record{
		Key:       key,
		Fields:    map[string]any{},
		CreatedAt: time.UnixMilli(created),
		UpdatedAt: time.UnixMilli(updated),
	}
	if err := json.Unmarshal([]byte(payload), &ret.Fields); err != nil {
		return nil, errors.Wrap(err, "sqlite record store: decode fields")
	}
	return ret, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
