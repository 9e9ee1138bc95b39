package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/agents"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T) *Controller {
	r, err := agents.NewRegistry([]*agents.Role{{Name: "R1"}, {Name: "R2"}})
	require.NoError(t, err)
	return NewController(r)
}

func TestTransfer_SetsPreviousRole(t *testing.T) {
	c := newController(t)
	s := state.New(state.Seed{Identity: "U1"})
	s.ActiveRole = "R1"

	d, err := c.Transfer("R1", "R2", "basics done", s)
	require.NoError(t, err)
	require.Equal(t, "R2", d.Target())
	require.Equal(t, "R1", d.Record.From)
	require.Equal(t, "basics done", d.Record.Reason)
	require.Equal(t, "R1", s.PreviousRole)
	// the swap itself is the orchestrator's job
	require.Equal(t, "R1", s.ActiveRole)
}

func TestResolve_LeavesSessionUntouchedUntilCommit(t *testing.T) {
	c := newController(t)
	s := state.New(state.Seed{Identity: "U1"})

	d, err := c.Resolve("R1", "R2", "", s)
	require.NoError(t, err)
	require.Equal(t, "R2", d.Target())
	require.Empty(t, s.PreviousRole)

	c.Commit(d, s)
	require.Equal(t, "R1", s.PreviousRole)
}

func TestTransfer_UnknownTarget(t *testing.T) {
	c := newController(t)
	s := state.New(state.Seed{Identity: "U1"})
	before, err := s.Snapshot()
	require.NoError(t, err)

	_, err = c.Transfer("R1", "R9", "", s)
	require.True(t, errors.Is(err, ErrTargetNotFound))

	after, err := s.Snapshot()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestTransferTool_ReturnsRequest(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(NewTransferTool("R1", "R2")))
	s := state.New(state.Seed{})

	res, err := reg.Invoke(context.Background(), tools.Call{
		ID:        "t1",
		Name:      ToolName,
		Arguments: json.RawMessage(`{"agent":"R2","reason":"next"}`),
	}, s)
	require.NoError(t, err)
	require.NotNil(t, res.Transfer)
	require.Equal(t, "R2", res.Transfer.Target)
	require.Equal(t, "next", res.Transfer.Reason)

	_, err = reg.Invoke(context.Background(), tools.Call{Name: ToolName, Arguments: json.RawMessage(`{}`)}, s)
	require.True(t, errors.Is(err, tools.ErrInvalidArguments))
}
