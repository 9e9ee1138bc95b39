package domains

import (
	"fmt"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/agents"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/events"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/handoff"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
	"github.com/pkg/errors"
)

// Domain is a complete specialization of the orchestrator: the data it
// collects, the roles that collect it and where completion is announced.
type Domain struct {
	Name string
	// Topic is where lifecycle events of this domain's sessions are published.
	Topic string
	// CompletionEvent is published once the terminal tool succeeds.
	CompletionEvent events.Kind
	Fields          []string
	Roles           []*agents.Role
	InitialRole     string
	Tools           []*tools.Definition
	// Prepare may fill defaults into a session seed before the session starts.
	Prepare func(seed *state.Seed)
}

func (d *Domain) Role(name string) (*agents.Role, bool) {
	for _, r := range d.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

func (d *Domain) RoleNames() []string {
	ret := make([]string, 0, len(d.Roles))
	for _, r := range d.Roles {
		ret = append(ret, r.Name)
	}
	return ret
}

// RoleTools returns the tool names a role may call, including the transfer
// tool when the role can hand off.
func RoleTools(r *agents.Role) []string {
	ret := append([]string(nil), r.Tools...)
	if len(r.Handoffs) > 0 {
		ret = append(ret, handoff.ToolName)
	}
	return ret
}

// Registry builds the domain's tool registry and validates the domain
// against it.
func (d *Domain) Registry(options ...tools.RegistryOption) (*tools.Registry, error) {
	reg := tools.NewRegistry(options...)
	if err := reg.RegisterAll(d.Tools...); err != nil {
		return nil, errors.Wrapf(err, "domain %s", d.Name)
	}
	if err := d.Validate(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Validate checks the domain against reg before any session is started: every
// tool name bound to a role resolves, handoff targets exist and a terminal
// tool is reachable.
func (d *Domain) Validate(reg *tools.Registry) error {
	if d.Name == "" || d.Topic == "" || d.CompletionEvent == "" {
		return fmt.Errorf("domain needs a name, a topic and a completion event")
	}
	if len(d.Roles) == 0 {
		return fmt.Errorf("domain %s has no roles", d.Name)
	}
	if _, ok := d.Role(d.InitialRole); !ok {
		return fmt.Errorf("domain %s: initial role %q not defined", d.Name, d.InitialRole)
	}

	seen := map[string]bool{}
	terminal := false
	for _, r := range d.Roles {
		if seen[r.Name] {
			return fmt.Errorf("domain %s: duplicate role %s", d.Name, r.Name)
		}
		seen[r.Name] = true

		names := RoleTools(r)
		if err := reg.Validate(names...); err != nil {
			return errors.Wrapf(err, "domain %s, role %s", d.Name, r.Name)
		}
		for _, def := range reg.Subset(names) {
			if def.Terminal {
				terminal = true
			}
		}
		for _, h := range r.Handoffs {
			if _, ok := d.Role(h); !ok {
				return fmt.Errorf("domain %s: role %s hands off to unknown role %s", d.Name, r.Name, h)
			}
		}
	}
	if !terminal {
		return fmt.Errorf("domain %s: no role can call a terminal tool", d.Name)
	}
	return nil
}

// NewSeed builds the session seed for a caller.
func (d *Domain) NewSeed(identity, targetID, locale string) state.Seed {
	seed := state.Seed{
		Identity: identity,
		TargetID: targetID,
		Locale:   locale,
		Fields:   append([]string(nil), d.Fields...),
		Values:   map[string]any{},
	}
	if d.Prepare != nil {
		d.Prepare(&seed)
	}
	return seed
}
