package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

type entry struct {
	def    *Definition
	schema *gojsonschema.Schema
}

// Registry maps tool names to definitions. It is filled at startup and then
// only read, sessions share one registry.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*entry
	config Config
}

type RegistryOption func(*Registry)

func WithConfig(cfg Config) RegistryOption {
	return func(r *Registry) {
		r.config = cfg
	}
}

func NewRegistry(options ...RegistryOption) *Registry {
	ret := &Registry{
		tools:  map[string]*entry{},
		config: DefaultConfig(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Register adds a tool and compiles its parameter schema.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("tool definition is nil")
	}
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Executor == nil {
		return fmt.Errorf("tool %s has no executor", def.Name)
	}

	var schema *gojsonschema.Schema
	if def.Parameters != nil {
		b, err := json.Marshal(def.Parameters)
		if err != nil {
			return errors.Wrapf(err, "could not serialize parameters of %s", def.Name)
		}
		schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
		if err != nil {
			return errors.Wrapf(err, "invalid parameter schema for %s", def.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[def.Name]; ok {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.tools[def.Name] = &entry{def: def, schema: schema}
	return nil
}

// RegisterAll registers every definition, stopping at the first error.
func (r *Registry) RegisterAll(defs ...*Definition) error {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return e.def, true
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns all definitions sorted by name.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]*Definition, 0, len(r.tools))
	for _, e := range r.tools {
		ret = append(ret, e.def)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

// Subset returns the definitions for names, in the order given. Unknown names
// are skipped, use Validate beforehand to reject them.
func (r *Registry) Subset(names []string) []*Definition {
	ret := make([]*Definition, 0, len(names))
	for _, n := range names {
		if d, ok := r.Get(n); ok {
			ret = append(ret, d)
		}
	}
	return ret
}

// Validate fails if any of the names is not registered.
func (r *Registry) Validate(names ...string) error {
	missing := []string{}
	for _, n := range names {
		if !r.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrToolNotFound, "unresolved tools: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Invoke validates the raw arguments against the tool's schema and runs the
// executor. Invalid arguments never reach the executor. Executors are never
// retried, calling Invoke twice runs the executor twice.
func (r *Registry) Invoke(ctx context.Context, call Call, s *state.Session) (*Result, error) {
	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ToolError{
			ToolName: call.Name,
			ToolID:   call.ID,
			Kind:     KindNotFound,
			Message:  "tool not registered",
		}
	}

	args := call.Arguments
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}

	if details, err := e.validate(args); err != nil || len(details) > 0 {
		if err != nil {
			details = append(details, err.Error())
		}
		log.Debug().
			Str("tool", call.Name).
			Strs("details", details).
			Msg("rejected tool arguments")
		return nil, &ToolError{
			ToolName: call.Name,
			ToolID:   call.ID,
			Kind:     KindInvalidArguments,
			Message:  "arguments do not match the parameter contract",
			Details:  details,
		}
	}

	execCtx := ctx
	if r.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.config.ExecutionTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := r.execute(execCtx, e.def, args, s)
	if err != nil {
		kind := KindExecutorFailure
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, &ToolError{
			ToolName: call.Name,
			ToolID:   call.ID,
			Kind:     kind,
			Message:  err.Error(),
			Err:      err,
		}
	}
	if res == nil {
		res = &Result{}
	}
	res.ID = call.ID
	res.Duration = time.Since(start)
	return res, nil
}

func (e *entry) validate(args json.RawMessage) ([]string, error) {
	if e.schema == nil {
		var v map[string]any
		if err := json.Unmarshal(args, &v); err != nil {
			return nil, errors.Wrap(err, "arguments are not a JSON object")
		}
		return nil, nil
	}
	result, err := e.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return nil, errors.Wrap(err, "could not validate arguments")
	}
	if result.Valid() {
		return nil, nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return details, nil
}

type execution struct {
	res *Result
	err error
}

// execute runs the executor under the session's exclusive lock and stops
// waiting once ctx is done. An executor that ignores ctx keeps running in the
// background and its late result is dropped.
func (r *Registry) execute(ctx context.Context, def *Definition, args json.RawMessage, s *state.Session) (*Result, error) {
	done := make(chan execution, 1)
	go func() {
		var ret execution
		ret.err = s.Exclusive(func() error {
			var err error
			ret.res, err = runExecutor(ctx, def, args, s)
			return err
		})
		done <- ret
	}()

	select {
	case ret := <-done:
		return ret.res, ret.err
	case <-ctx.Done():
		log.Warn().
			Str("tool", def.Name).
			Err(ctx.Err()).
			Msg("abandoning tool executor")
		return nil, ctx.Err()
	}
}

func runExecutor(ctx context.Context, def *Definition, args json.RawMessage, s *state.Session) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panicked: %v", r)
		}
	}()
	return def.Executor.Execute(ctx, args, s)
}
