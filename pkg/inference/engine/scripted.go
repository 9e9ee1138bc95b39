package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/conversation"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrScriptExhausted = errors.New("scripted engine has no more steps")

// Step produces the response for one invocation.
type Step func(ctx context.Context, req *Request) (*Response, error)

// Reply is a step answering with text.
func Reply(text string) Step {
	return func(context.Context, *Request) (*Response, error) {
		return &Response{Text: text}, nil
	}
}

// CallTools is a step requesting tool calls. Arguments are marshalled to JSON.
func CallTools(calls ...ToolCall) Step {
	return func(context.Context, *Request) (*Response, error) {
		ret := &Response{}
		for _, c := range calls {
			args, err := json.Marshal(c.Arguments)
			if err != nil {
				return nil, err
			}
			ret.ToolCalls = append(ret.ToolCalls, tools.Call{ID: uuid.NewString(), Name: c.Name, Arguments: args})
		}
		return ret, nil
	}
}

// Fail is a step returning err.
func Fail(err error) Step {
	return func(context.Context, *Request) (*Response, error) {
		return nil, err
	}
}

type ToolCall struct {
	Name      string
	Arguments any
}

// ScriptedEngine replays a fixed list of steps and records every request.
// It drives tests and offline demos.
type ScriptedEngine struct {
	mu       sync.Mutex
	steps    []Step
	requests []*Request
}

func NewScriptedEngine(steps ...Step) *ScriptedEngine {
	return &ScriptedEngine{steps: steps}
}

func (s *ScriptedEngine) RunInference(ctx context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	cp := *req
	cp.Conversation = append(conversation.Conversation(nil), req.Conversation...)
	s.requests = append(s.requests, &cp)
	if len(s.steps) == 0 {
		s.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()

	return step(ctx, req)
}

// Requests returns the recorded requests in invocation order.
func (s *ScriptedEngine) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}

func (s *ScriptedEngine) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// EchoEngine repeats the last user message. It lets the chat command run
// without model credentials.
type EchoEngine struct{}

func (EchoEngine) RunInference(_ context.Context, req *Request) (*Response, error) {
	for i := len(req.Conversation) - 1; i >= 0; i-- {
		c, ok := req.Conversation[i].Content.(*conversation.ChatMessageContent)
		if ok && c.Role == conversation.RoleUser {
			return &Response{Text: fmt.Sprintf("You said: %s", strings.TrimSpace(c.Text))}, nil
		}
	}
	return &Response{Text: "Hello! How can I help you today?"}, nil
}
