package tools

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrExecutorFailure  = errors.New("tool executor failed")
	ErrToolNotFound     = errors.New("tool not found")
)

type ErrorKind string

const (
	KindInvalidArguments ErrorKind = "invalid_arguments"
	KindExecutorFailure  ErrorKind = "executor_failure"
	KindTimeout          ErrorKind = "timeout"
	KindNotFound         ErrorKind = "not_found"
)

// ToolError is returned by Registry.Invoke. It matches ErrInvalidArguments,
// ErrExecutorFailure or ErrToolNotFound under errors.Is.
type ToolError struct {
	ToolName string    `json:"tool_name"`
	ToolID   string    `json:"tool_id,omitempty"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Details  []string  `json:"details,omitempty"`
	Err      error     `json:"-"`
}

func (e *ToolError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("tool %s [%s]: %s (%s)", e.ToolName, e.Kind, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("tool %s [%s]: %s", e.ToolName, e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func (e *ToolError) Is(target error) bool {
	switch target {
	case ErrInvalidArguments:
		return e.Kind == KindInvalidArguments
	case ErrExecutorFailure:
		return e.Kind == KindExecutorFailure || e.Kind == KindTimeout
	case ErrToolNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// ModelMessage is the text handed back to the model so it can correct itself.
func (e *ToolError) ModelMessage() string {
	switch e.Kind {
	case KindInvalidArguments:
		return fmt.Sprintf("Error: invalid arguments for %s: %s", e.ToolName, strings.Join(e.Details, "; "))
	case KindNotFound:
		return fmt.Sprintf("Error: no tool named %s is available", e.ToolName)
	case KindTimeout:
		return fmt.Sprintf("Error: %s timed out, nothing was confirmed", e.ToolName)
	default:
		return fmt.Sprintf("Error: %s failed: %s", e.ToolName, e.Message)
	}
}
