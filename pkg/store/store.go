package store

import (
	"context"
	"sync"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrClosed   = errors.New("store closed")
)

// Key identifies a record: one per domain, caller identity and target.
type Key struct {
	Domain   string `json:"domain"`
	Identity string `json:"identity"`
	TargetID string `json:"target_id,omitempty"`
}

func (k Key) Validate() error {
	if k.Domain == "" || k.Identity == "" {
		return errors.New("record key needs a domain and an identity")
	}
	return nil
}

type Record struct {
	Key
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store persists domain records. Upsert creates the record for a key or
// replaces its fields.
type Store interface {
	Upsert(ctx context.Context, key Key, fields map[string]any) (*Record, error)
	Get(ctx context.Context, key Key) (*Record, error)
	Close() error
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[Key]*Record
	closed  bool
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[Key]*Record{}, now: time.Now}
}

func (m *MemoryStore) Upsert(_ context.Context, key Key, fields map[string]any) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	now := m.now()
	r, ok := m.records[key]
	if !ok {
		r = &Record{Key: key, CreatedAt: now}
		m.records[key] = r
	}
	r.Fields = clone.Clone(fields).(map[string]any)
	r.UpdatedAt = now
	return clone.Clone(r).(*Record), nil
}

func (m *MemoryStore) Get(_ context.Context, key Key) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	r, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone.Clone(r).(*Record), nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
