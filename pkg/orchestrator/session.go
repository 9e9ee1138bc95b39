package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/agents"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/conversation"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/domains"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/events"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/handoff"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/helpers"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/inference/engine"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionTerminated = errors.New("session terminated")
	ErrSessionNotStarted = errors.New("session not started")
	ErrSessionStarted    = errors.New("session already started")
	ErrUpstreamModel     = errors.New("upstream model failure")
)

const farewellInstructions = "The task is complete and saved. Thank the user and say a short goodbye."

// TurnResult is what the caller speaks back after a turn.
type TurnResult struct {
	Reply string `json:"reply"`
	Role  string `json:"role"`
	Voice string `json:"voice,omitempty"`
	// Handoff is set when the turn ended with another role taking over.
	Handoff *handoff.Record `json:"handoff,omitempty"`
	// Completed is set when the terminal tool succeeded, the session is over.
	Completed bool `json:"completed,omitempty"`
	Record    any  `json:"record,omitempty"`
}

// Session runs one conversation. Turns are strictly sequential, Close may be
// called concurrently at any time.
type Session struct {
	o        *Orchestrator
	state    *state.Session
	agents   *agents.Registry
	handoffs *handoff.Controller

	mu      sync.Mutex
	started bool
	active  *agents.Agent

	ctx        context.Context
	cancel     context.CancelFunc
	terminated atomic.Bool
	closeOnce  sync.Once
}

func (s *Session) ID() string {
	return s.state.ID
}

// State exposes the session state, read-only by convention.
func (s *Session) State() *state.Session {
	return s.state
}

func (s *Session) Agents() *agents.Registry {
	return s.agents
}

// ActiveRole returns the name of the role currently holding the conversation.
func (s *Session) ActiveRole() string {
	return s.state.ActiveRole
}

func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Session) Terminated() bool {
	return s.terminated.Load()
}

// Done is closed once the session terminated.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close terminates the session, e.g. on disconnect. A turn in flight stops at
// its next suspension point and its tool results are discarded.
func (s *Session) Close() {
	s.terminate("closed")
}

func (s *Session) terminate(reason string) {
	s.closeOnce.Do(func() {
		s.terminated.Store(true)
		s.cancel()
		s.o.metrics.ActiveSessions.WithLabelValues(s.o.domain.Name).Dec()
		log.Info().
			Str("session_id", s.state.ID).
			Str("domain", s.o.domain.Name).
			Str("reason", reason).
			Msg("session terminated")
	})
}

// turnContext is cancelled by the caller's ctx or by session termination.
func (s *Session) turnContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = helpers.ContextWithSessionID(ctx, s.state.ID)
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Start enters the initial role and returns its greeting.
func (s *Session) Start(ctx context.Context) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Terminated() {
		return nil, ErrSessionTerminated
	}
	if s.started {
		return nil, ErrSessionStarted
	}
	s.started = true

	ctx, cancel := s.turnContext(ctx)
	defer cancel()

	reply, err := s.enter(ctx, s.o.domain.InitialRole)
	if err != nil {
		return nil, err
	}
	return s.result(reply), nil
}

// HandleInput runs one turn for a user utterance: the active role answers,
// possibly after a series of tool calls, and the turn ends with a reply, a
// handoff or the completion of the task.
func (s *Session) HandleInput(ctx context.Context, text string) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Terminated() {
		return nil, ErrSessionTerminated
	}
	if !s.started {
		return nil, ErrSessionNotStarted
	}

	ctx, cancel := s.turnContext(ctx)
	defer cancel()
	logger := helpers.Logger(ctx)

	s.o.metrics.Turns.WithLabelValues(s.o.domain.Name).Inc()
	a := s.active
	a.Append(conversation.NewUserMessage(text, conversation.WithAgent(a.Name())))

	for round := 0; ; round++ {
		choice := tools.ToolChoiceAuto
		if s.o.config.MaxToolRounds > 0 && round >= s.o.config.MaxToolRounds {
			choice = tools.ToolChoiceNone
		}

		resp, err := s.invoke(ctx, a, s.request(a, choice, ""))
		if err != nil {
			if s.Terminated() {
				return nil, ErrSessionTerminated
			}
			if !errors.Is(err, ErrUpstreamModel) {
				return nil, err
			}
			apology := s.o.config.apology(s.state.Locale)
			a.Append(conversation.NewAssistantMessage(apology, conversation.WithAgent(a.Name())))
			return s.result(apology), nil
		}

		if len(resp.ToolCalls) == 0 || choice == tools.ToolChoiceNone {
			if len(resp.ToolCalls) > 0 {
				logger.Warn().Int("tool_calls", len(resp.ToolCalls)).Msg("ignoring tool calls on a reply without tools")
			}
			s.appendReply(a, resp.Text)
			return s.result(resp.Text), nil
		}

		outcome, err := s.runTools(ctx, a, resp)
		if err != nil {
			return nil, err
		}

		switch {
		case outcome.completed != nil:
			return s.complete(ctx, a, outcome.completed)

		case outcome.aborted != nil:
			logger.Warn().Err(outcome.aborted).Msg("turn aborted")
			return s.result(""), outcome.aborted

		case outcome.directive != nil:
			return s.applyHandoff(ctx, a, outcome.directive)
		}
	}
}

type toolOutcome struct {
	directive *handoff.Directive
	completed *tools.Result
	aborted   error
}

// runTools appends the model's tool calls and then executes them one at a
// time, in request order, appending each result right after execution.
func (s *Session) runTools(ctx context.Context, a *agents.Agent, resp *engine.Response) (*toolOutcome, error) {
	logger := helpers.Logger(ctx)

	if resp.Text != "" {
		s.appendReply(a, resp.Text)
	}
	for _, call := range resp.ToolCalls {
		a.Append(conversation.NewToolUseMessage(call.ID, call.Name, call.Arguments, conversation.WithAgent(a.Name())))
	}

	ret := &toolOutcome{}
	for _, call := range resp.ToolCalls {
		if s.Terminated() {
			return nil, ErrSessionTerminated
		}
		if ret.completed != nil || ret.aborted != nil {
			a.Append(conversation.NewToolResultMessage(call.ID, call.Name, "skipped", true, conversation.WithAgent(a.Name())))
			continue
		}

		res, err := s.execute(ctx, call)
		if s.Terminated() {
			logger.Debug().Str("tool", call.Name).Msg("discarding tool result of terminated session")
			return nil, ErrSessionTerminated
		}
		if err != nil {
			msg := err.Error()
			var te *tools.ToolError
			if errors.As(err, &te) {
				msg = te.ModelMessage()
			}
			logger.Warn().Err(err).Str("tool", call.Name).Msg("tool call failed")
			a.Append(conversation.NewToolResultMessage(call.ID, call.Name, msg, true, conversation.WithAgent(a.Name())))
			continue
		}

		content := res.Content
		if res.Transfer != nil {
			switch {
			case ret.directive != nil:
				content = fmt.Sprintf("ignored: already transferring to %s", ret.directive.Target())
			default:
				d, err := s.handoffs.Resolve(a.Name(), res.Transfer.Target, res.Transfer.Reason, s.state)
				if err != nil {
					a.Append(conversation.NewToolResultMessage(call.ID, call.Name,
						fmt.Sprintf("Error: no agent named %s", res.Transfer.Target), true, conversation.WithAgent(a.Name())))
					ret.aborted = err
					continue
				}
				ret.directive = d
			}
		}
		a.Append(conversation.NewToolResultMessage(call.ID, call.Name, content, false, conversation.WithAgent(a.Name())))

		if def, ok := s.o.tools.Get(call.Name); ok && def.Terminal {
			ret.completed = res
		}
	}
	return ret, nil
}

// execute runs one tool call. The executor is not interrupted by session
// termination, its result is dropped by the caller instead.
func (s *Session) execute(ctx context.Context, call tools.Call) (*tools.Result, error) {
	res, err := s.o.tools.Invoke(context.WithoutCancel(ctx), call, s.state)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var te *tools.ToolError
		if errors.As(err, &te) {
			outcome = string(te.Kind)
		}
	}
	s.o.metrics.ToolInvocations.WithLabelValues(s.o.domain.Name, call.Name, outcome).Inc()
	return res, err
}

func (s *Session) complete(ctx context.Context, a *agents.Agent, res *tools.Result) (*TurnResult, error) {
	s.o.metrics.Completions.WithLabelValues(s.o.domain.Name).Inc()
	s.o.publish(ctx, events.New(s.o.domain.CompletionEvent, s.state.ID, map[string]any{
		"domain":    s.o.domain.Name,
		"identity":  s.state.Identity,
		"target_id": s.state.TargetID,
		"record":    res.Record,
	}))

	reply := ""
	if s.o.config.FarewellOnComplete {
		resp, err := s.invoke(ctx, a, s.request(a, tools.ToolChoiceNone, farewellInstructions))
		if err == nil {
			reply = resp.Text
			s.appendReply(a, reply)
		}
	}

	ret := s.result(reply)
	ret.Completed = true
	ret.Record = res.Record
	s.terminate("completed")
	return ret, nil
}

func (s *Session) applyHandoff(ctx context.Context, from *agents.Agent, d *handoff.Directive) (*TurnResult, error) {
	if err := from.Exit(); err != nil {
		return nil, err
	}
	s.handoffs.Commit(d, s.state)
	s.o.metrics.Handoffs.WithLabelValues(s.o.domain.Name, d.Record.From, d.Record.To).Inc()
	helpers.Logger(ctx).Info().
		Str("from", d.Record.From).
		Str("to", d.Record.To).
		Str("reason", d.Record.Reason).
		Msg("handoff")

	reply, err := s.enter(ctx, d.Target())
	if err != nil {
		return nil, err
	}
	ret := s.result(reply)
	rec := d.Record
	ret.Handoff = &rec
	return ret, nil
}

// enter runs the entering transition of a role and produces its first reply
// with tools disabled.
func (s *Session) enter(ctx context.Context, name string) (string, error) {
	a, err := s.agents.Enter(name, s.state)
	if err != nil {
		return "", err
	}
	s.active = a

	reply := ""
	resp, err := s.invoke(ctx, a, s.request(a, tools.ToolChoiceNone, a.Role.OnEnter.Instructions))
	switch {
	case err == nil:
		reply = resp.Text
		s.appendReply(a, reply)
	case s.Terminated():
		return "", ErrSessionTerminated
	case errors.Is(err, ErrUpstreamModel):
		reply = s.o.config.apology(s.state.Locale)
		s.appendReply(a, reply)
	default:
		return "", err
	}

	if err := a.Activate(); err != nil {
		return "", err
	}
	return reply, nil
}

func (s *Session) request(a *agents.Agent, choice tools.ToolChoice, extra string) *engine.Request {
	instructions, err := a.Role.RenderInstructions(s.state)
	if err != nil {
		log.Warn().Err(err).Str("role", a.Name()).Msg("falling back to raw instructions")
		instructions = a.Role.InstructionsFor(s.state.Locale)
	}
	if extra != "" {
		instructions = instructions + "\n\n" + extra
	}
	return &engine.Request{
		Instructions: instructions,
		Conversation: conversation.Truncate(a.History(), s.o.config.Truncation),
		Tools:        s.o.tools.Subset(domains.RoleTools(a.Role)),
		ToolChoice:   choice,
	}
}

// invoke calls the model, retrying once after a backoff. Each attempt is
// framed by started_speaking and stopped_speaking events.
func (s *Session) invoke(ctx context.Context, a *agents.Agent, req *engine.Request) (*engine.Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.o.config.RetryBackoff):
			}
		}
		resp, err := s.invokeOnce(ctx, a, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		helpers.Logger(ctx).Warn().Err(err).Int("attempt", attempt+1).Str("role", a.Name()).Msg("model invocation failed")
	}
	return nil, errors.Wrapf(ErrUpstreamModel, "%v", lastErr)
}

func (s *Session) invokeOnce(ctx context.Context, a *agents.Agent, req *engine.Request) (*engine.Response, error) {
	domain := s.o.domain.Name
	s.o.publish(ctx, events.NewStartedSpeaking(s.state.ID, a.Name()))
	defer s.o.publish(ctx, events.NewStoppedSpeaking(s.state.ID, a.Name()))

	if s.o.config.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.o.config.ModelTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.o.engine.RunInference(ctx, req)
	s.o.metrics.ModelDuration.WithLabelValues(domain).Observe(time.Since(start).Seconds())
	if err == nil && resp == nil {
		err = errors.New("engine returned no response")
	}
	if err != nil {
		s.o.metrics.ModelInvocations.WithLabelValues(domain, "error").Inc()
		return nil, err
	}
	s.o.metrics.ModelInvocations.WithLabelValues(domain, "ok").Inc()
	return resp, nil
}

func (s *Session) appendReply(a *agents.Agent, text string) {
	if text == "" {
		return
	}
	a.Append(conversation.NewAssistantMessage(text, conversation.WithAgent(a.Name())))
}

func (s *Session) result(reply string) *TurnResult {
	ret := &TurnResult{Reply: reply}
	if s.active != nil {
		ret.Role = s.active.Name()
		ret.Voice = s.active.Role.VoiceFor(s.state.Locale)
	}
	return ret
}

// Run drives the session from a stream of utterances until the stream ends,
// ctx is done or the session terminates. The greeting and every turn result
// are handed to out. Cancelling ctx terminates the session immediately, even
// in the middle of a turn.
func (s *Session) Run(ctx context.Context, inputs <-chan string, out func(*TurnResult, error)) error {
	defer s.Close()
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()

	if !s.Started() {
		res, err := s.Start(ctx)
		out(res, err)
		if err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Done():
			return nil
		case text, ok := <-inputs:
			if !ok {
				return nil
			}
			res, err := s.HandleInput(ctx, text)
			if errors.Is(err, ErrSessionTerminated) {
				return nil
			}
			out(res, err)
			if s.Terminated() {
				return nil
			}
		}
	}
}
