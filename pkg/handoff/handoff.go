package handoff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/agents"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrTargetNotFound = errors.New("handoff target not found")

// ToolName is the name of the built-in transfer tool.
const ToolName = "transfer_to_agent"

// Record describes one completed transfer.
type Record struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Directive tells the orchestrator which role to swap in at the end of the
// current turn.
type Directive struct {
	Record Record
}

func (d *Directive) Target() string {
	return d.Record.To
}

// Controller resolves transfer requests against the session's role registry.
// It never swaps roles itself.
type Controller struct {
	agents *agents.Registry
}

func NewController(registry *agents.Registry) *Controller {
	return &Controller{agents: registry}
}

// Transfer validates target and records current as the session's previous
// role. Nothing about the session changes when the target is unknown.
func (c *Controller) Transfer(current, target, reason string, s *state.Session) (*Directive, error) {
	d, err := c.Resolve(current, target, reason, s)
	if err != nil {
		return nil, err
	}
	c.Commit(d, s)
	return d, nil
}

// Resolve validates target and builds the directive without touching the
// session. The orchestrator commits it once the turn's batch settled on a
// handoff.
func (c *Controller) Resolve(current, target, reason string, s *state.Session) (*Directive, error) {
	if _, ok := c.agents.Get(target); !ok {
		log.Warn().
			Str("session_id", s.ID).
			Str("from", current).
			Str("to", target).
			Msg("handoff to unknown role")
		return nil, errors.Wrapf(ErrTargetNotFound, "%q", target)
	}
	log.Debug().
		Str("session_id", s.ID).
		Str("from", current).
		Str("to", target).
		Str("reason", reason).
		Msg("handoff scheduled")
	return &Directive{Record: Record{
		From:   current,
		To:     target,
		Reason: reason,
		At:     time.Now(),
	}}, nil
}

// Commit records the directive's source as the session's previous role.
func (c *Controller) Commit(d *Directive, s *state.Session) {
	s.PreviousRole = d.Record.From
}

type transferInput struct {
	Agent  string `json:"agent" jsonschema:"description=Name of the agent to hand the conversation to"`
	Reason string `json:"reason,omitempty" jsonschema:"description=Short reason for the transfer"`
}

// NewTransferTool builds the transfer tool. It only produces a transfer
// request, the orchestrator routes it to a Controller once the model's tool
// calls for the turn have been executed.
func NewTransferTool(roles ...string) *tools.Definition {
	desc := "Hand the conversation over to another agent."
	if len(roles) > 0 {
		desc = fmt.Sprintf("%s Available agents: %s.", desc, strings.Join(roles, ", "))
	}
	return tools.MustNewTool(ToolName, desc,
		func(ctx context.Context, s *state.Session, in transferInput) (*tools.Result, error) {
			return &tools.Result{
				Content:  fmt.Sprintf("transferring to %s", in.Agent),
				Transfer: &tools.TransferRequest{Target: in.Agent, Reason: in.Reason},
			}, nil
		})
}
