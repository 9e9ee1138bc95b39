package agents

import (
	"fmt"
	"sync"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/conversation"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/pkg/errors"
)

var (
	ErrInvalidTransition = errors.New("invalid role transition")
	ErrUnknownRole       = errors.New("unknown role")
)

type Status int

const (
	StatusDormant Status = iota
	StatusEntering
	StatusActive
	StatusExited
)

func (s Status) String() string {
	switch s {
	case StatusDormant:
		return "dormant"
	case StatusEntering:
		return "entering"
	case StatusActive:
		return "active"
	case StatusExited:
		return "exited"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Agent is a role inside one session: its definition, lifecycle status and
// the conversation it has seen. The history survives an exit so a role that
// is entered again resumes from it.
type Agent struct {
	Role    *Role
	status  Status
	history conversation.Conversation
}

func (a *Agent) Name() string {
	return a.Role.Name
}

func (a *Agent) Status() Status {
	return a.status
}

// History returns the role's conversation. Callers must not modify it, use
// Append instead.
func (a *Agent) History() conversation.Conversation {
	return a.history
}

func (a *Agent) Append(msgs ...*conversation.Message) {
	a.history.Append(msgs...)
}

// Activate completes the entering transition.
func (a *Agent) Activate() error {
	if a.status != StatusEntering {
		return errors.Wrapf(ErrInvalidTransition, "%s: %s -> active", a.Name(), a.status)
	}
	a.status = StatusActive
	return nil
}

func (a *Agent) Exit() error {
	if a.status != StatusActive {
		return errors.Wrapf(ErrInvalidTransition, "%s: %s -> exited", a.Name(), a.status)
	}
	a.status = StatusExited
	return nil
}

// Registry holds the agents of one session, keyed by role name.
type Registry struct {
	mu     sync.Mutex
	agents map[string]*Agent
	order  []string
}

func NewRegistry(roles []*Role) (*Registry, error) {
	ret := &Registry{agents: map[string]*Agent{}}
	for _, r := range roles {
		if r == nil || r.Name == "" {
			return nil, fmt.Errorf("role without name")
		}
		if _, ok := ret.agents[r.Name]; ok {
			return nil, fmt.Errorf("duplicate role %s", r.Name)
		}
		ret.agents[r.Name] = &Agent{Role: r}
		ret.order = append(ret.order, r.Name)
	}
	return ret, nil
}

func (r *Registry) Get(name string) (*Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[name]
	return a, ok
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Enter moves a dormant or exited role to entering and prepares its context:
// a private copy of its own history, merged with the previous role's
// history (without tool traffic and system instructions), followed by one
// system message summarizing the session state. The caller produces the
// entering reply and then calls Activate.
func (r *Registry) Enter(name string, s *state.Session) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownRole, name)
	}
	if a.status != StatusDormant && a.status != StatusExited {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s: %s -> entering", name, a.status)
	}

	ctx := conversation.Copy(a.history, conversation.CopyOptions{})
	if prev, ok := r.agents[s.PreviousRole]; ok && prev != a {
		ctx = conversation.Merge(ctx, conversation.Copy(prev.history, conversation.CopyOptions{
			ExcludeToolCalls:          true,
			ExcludeSystemInstructions: true,
		}))
	}
	ctx.Append(conversation.NewSystemMessage(s.Summary(), conversation.WithAgent(name)))

	a.history = ctx
	a.status = StatusEntering
	s.ActiveRole = name
	return a, nil
}
