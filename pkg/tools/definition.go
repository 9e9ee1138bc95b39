package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/invopop/jsonschema"
)

// Executor performs the side effect of a tool. Arguments have already been
// validated against the tool's parameter schema when Execute is called.
type Executor interface {
	Execute(ctx context.Context, args json.RawMessage, s *state.Session) (*Result, error)
}

type ExecutorFunc func(ctx context.Context, args json.RawMessage, s *state.Session) (*Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, args json.RawMessage, s *state.Session) (*Result, error) {
	return f(ctx, args, s)
}

// Definition is a named capability with a parameter contract.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	Executor    Executor           `json:"-"`
	// Terminal tools end the session once they succeed.
	Terminal bool `json:"-"`
}

type DefinitionOption func(*Definition)

// AsTerminal marks the tool as the one that completes the session's task.
func AsTerminal() DefinitionOption {
	return func(d *Definition) {
		d.Terminal = true
	}
}

// Call is a tool invocation requested by the model.
type Call struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// TransferRequest asks the orchestrator to hand the session to another role.
type TransferRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason,omitempty"`
}

// Result is what an executor hands back. Content is what the model sees.
type Result struct {
	ID       string           `json:"id"`
	Content  string           `json:"content"`
	Record   any              `json:"record,omitempty"`
	Transfer *TransferRequest `json:"transfer,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// NewResult builds a textual result.
func NewResult(format string, args ...any) *Result {
	return &Result{Content: fmt.Sprintf(format, args...)}
}

// NewTool builds a definition from a typed function. The parameter schema is
// reflected from In, so struct tags drive names, descriptions and
// enumerations.
func NewTool[In any](
	name, description string,
	fn func(ctx context.Context, s *state.Session, in In) (*Result, error),
	options ...DefinitionOption,
) (*Definition, error) {
	if fn == nil {
		return nil, fmt.Errorf("tool %s has no function", name)
	}
	schema := reflectSchema(new(In))

	ret := &Definition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Executor: ExecutorFunc(func(ctx context.Context, args json.RawMessage, s *state.Session) (*Result, error) {
			var in In
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("could not decode arguments: %w", err)
				}
			}
			return fn(ctx, s, in)
		}),
	}
	for _, option := range options {
		option(ret)
	}
	return ret, nil
}

// MustNewTool is NewTool for package-level tables.
func MustNewTool[In any](
	name, description string,
	fn func(ctx context.Context, s *state.Session, in In) (*Result, error),
	options ...DefinitionOption,
) *Definition {
	ret, err := NewTool(name, description, fn, options...)
	if err != nil {
		panic(err)
	}
	return ret
}

func reflectSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(v)
	// the validator only understands up to draft 7 and the model APIs do not
	// need these
	schema.Version = ""
	schema.ID = ""
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}
