package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// Unknown is rendered in the summary for fields that have not been collected yet.
const Unknown = "unknown"

var ErrUnknownField = errors.New("unknown session field")

// Seed is the bootstrap payload a session starts from.
type Seed struct {
	Identity string
	TargetID string
	Locale   string
	// Fields lists the domain field keys in the order they appear in summaries.
	Fields []string
	// Values optionally pre-populates some of the fields (e.g. from a stored record).
	Values map[string]any
}

// Field is one ordered entry of the session's domain data.
type Field struct {
	Key   string `json:"key"`
	Value any    `json:"value,omitempty"`
	Set   bool   `json:"set"`
}

// Session is the mutable per-session record shared by all roles of a session.
// Tools mutate it through Set, roles only ever see it through Summary.
type Session struct {
	ID       string
	Identity string
	TargetID string
	Locale   string

	PreviousRole string
	ActiveRole   string

	mu     sync.RWMutex
	order  []string
	values map[string]any

	execMu sync.Mutex
}

func New(seed Seed) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Identity: seed.Identity,
		TargetID: seed.TargetID,
		Locale:   seed.Locale,
		order:    append([]string(nil), seed.Fields...),
		values:   map[string]any{},
	}
	for k, v := range seed.Values {
		if s.known(k) && !isEmpty(v) {
			s.values[k] = clone.Clone(v)
		}
	}
	return s
}

func (s *Session) known(key string) bool {
	for _, k := range s.order {
		if k == key {
			return true
		}
	}
	return false
}

// Set stores a value for a declared field. Empty values clear the field.
func (s *Session) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known(key) {
		return errors.Wrap(ErrUnknownField, key)
	}
	if isEmpty(value) {
		delete(s.values, key)
		return nil
	}
	s.values[key] = clone.Clone(value)
	return nil
}

func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Fields returns the domain fields in declaration order.
func (s *Session) Fields() []Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]Field, 0, len(s.order))
	for _, k := range s.order {
		v, ok := s.values[k]
		ret = append(ret, Field{Key: k, Value: clone.Clone(v), Set: ok})
	}
	return ret
}

// Values returns a copy of all collected values.
func (s *Session) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone.Clone(s.values).(map[string]any)
}

// Missing lists the keys that are still unset, in declaration order.
func (s *Session) Missing() []string {
	ret := []string{}
	for _, f := range s.Fields() {
		if !f.Set {
			ret = append(ret, f.Key)
		}
	}
	return ret
}

// Summary renders the role-agnostic state description that is appended to a
// role's context when it is entered. The format is stable: one "key: value"
// line per field, in field order, with Unknown for missing values.
func (s *Session) Summary() string {
	var b strings.Builder
	b.WriteString("Current session state.\n")
	fmt.Fprintf(&b, "identity: %s\n", orUnknown(s.Identity))
	if s.TargetID != "" {
		fmt.Fprintf(&b, "target: %s\n", s.TargetID)
	}
	for _, f := range s.Fields() {
		v := Unknown
		if f.Set {
			v = Render(f.Value)
		}
		fmt.Fprintf(&b, "%s: %s\n", f.Key, v)
	}
	return strings.TrimRight(b.String(), "\n")
}

type snapshot struct {
	ID           string         `json:"id"`
	Identity     string         `json:"identity"`
	TargetID     string         `json:"target_id,omitempty"`
	Locale       string         `json:"locale"`
	PreviousRole string         `json:"previous_role,omitempty"`
	ActiveRole   string         `json:"active_role,omitempty"`
	Fields       []string       `json:"fields"`
	Values       map[string]any `json:"values"`
}

// Snapshot serializes the full state. Map keys are emitted sorted by
// encoding/json, so two snapshots of equal states are byte-equal.
func (s *Session) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(snapshot{
		ID:           s.ID,
		Identity:     s.Identity,
		TargetID:     s.TargetID,
		Locale:       s.Locale,
		PreviousRole: s.PreviousRole,
		ActiveRole:   s.ActiveRole,
		Fields:       s.order,
		Values:       s.values,
	})
}

// Exclusive runs fn while holding the session's execution lock. Tool
// executors run through it so at most one of them touches a session at once.
func (s *Session) Exclusive(fn func() error) error {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	return fn()
}

// Render formats a field value for summaries.
func Render(v any) string {
	switch vv := v.(type) {
	case nil:
		return Unknown
	case string:
		return vv
	case []string:
		return strings.Join(vv, ", ")
	case []any:
		parts := make([]string, 0, len(vv))
		for _, p := range vv {
			parts = append(parts, Render(p))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+Render(vv[k]))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(vv)
	}
}

func isEmpty(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(vv) == ""
	case []string:
		return len(vv) == 0
	case []any:
		return len(vv) == 0
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
