package engine

import (
	"context"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/conversation"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
)

// Request is one model invocation on behalf of a role.
type Request struct {
	// Instructions are the role's rendered system instructions.
	Instructions string
	Conversation conversation.Conversation
	Tools        []*tools.Definition
	ToolChoice   tools.ToolChoice
}

// ToolsEnabled reports whether the model may call tools on this request.
func (r *Request) ToolsEnabled() bool {
	return len(r.Tools) > 0 && r.ToolChoice != tools.ToolChoiceNone
}

// Response is the model's output: a textual reply, tool calls, or both.
type Response struct {
	Text      string
	ToolCalls []tools.Call
}

// Engine performs model invocations. Invocations have no side effects, so
// callers may retry them.
type Engine interface {
	RunInference(ctx context.Context, req *Request) (*Response, error)
}

type EngineFunc func(ctx context.Context, req *Request) (*Response, error)

func (f EngineFunc) RunInference(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
