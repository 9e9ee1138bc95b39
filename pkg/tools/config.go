package tools

import "time"

// ToolChoice tells the model whether it may call tools on an invocation.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

type Config struct {
	// ExecutionTimeout bounds a single executor run. 0 disables the bound.
	ExecutionTimeout time.Duration `json:"execution_timeout" yaml:"execution_timeout"`
}

func DefaultConfig() Config {
	return Config{
		ExecutionTimeout: 30 * time.Second,
	}
}
