package events

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindStartedSpeaking Kind = "started_speaking"
	KindStoppedSpeaking Kind = "stopped_speaking"
)

// Event is a lifecycle notification. On the wire it is a flat JSON object,
// {"event": <kind>, ...payload}.
type Event struct {
	Kind      Kind
	SessionID string
	Payload   map[string]any
}

func New(kind Kind, sessionID string, payload map[string]any) Event {
	p := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		p[k] = v
	}
	if sessionID != "" {
		p["session_id"] = sessionID
	}
	return Event{Kind: kind, SessionID: sessionID, Payload: p}
}

func NewStartedSpeaking(sessionID, role string) Event {
	return New(KindStartedSpeaking, sessionID, map[string]any{"role": role})
}

func NewStoppedSpeaking(sessionID, role string) Event {
	return New(KindStoppedSpeaking, sessionID, map[string]any{"role": role})
}

func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		m[k] = v
	}
	m["event"] = e.Kind
	return json.Marshal(m)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	kind, ok := m["event"].(string)
	if !ok || kind == "" {
		return errors.New("event name missing")
	}
	delete(m, "event")
	e.Kind = Kind(kind)
	e.Payload = m
	if sid, ok := m["session_id"].(string); ok {
		e.SessionID = sid
	}
	return nil
}
