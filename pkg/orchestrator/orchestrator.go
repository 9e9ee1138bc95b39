package orchestrator

import (
	"context"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/agents"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/domains"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/events"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/handoff"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/inference/engine"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/store"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Orchestrator creates sessions for one domain. It owns the domain's tool
// registry, validated once before the first session starts.
type Orchestrator struct {
	engine    engine.Engine
	domain    *domains.Domain
	tools     *tools.Registry
	publisher events.Publisher
	store     store.Store
	metrics   *Metrics
	config    Config
}

type Option func(*Orchestrator)

func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithStore lets new sessions resume from a previously saved record.
func WithStore(s store.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithConfig(c Config) Option {
	return func(o *Orchestrator) {
		o.config = c
	}
}

func New(e engine.Engine, d *domains.Domain, options ...Option) (*Orchestrator, error) {
	if e == nil {
		return nil, errors.New("orchestrator needs an engine")
	}
	if d == nil {
		return nil, errors.New("orchestrator needs a domain")
	}
	o := &Orchestrator{
		engine:    e,
		domain:    d,
		publisher: events.NopPublisher{},
		config:    DefaultConfig(),
	}
	for _, option := range options {
		option(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics("farwise", prometheus.NewRegistry())
	}

	reg, err := d.Registry(tools.WithConfig(tools.Config{ExecutionTimeout: o.config.ToolTimeout}))
	if err != nil {
		return nil, errors.Wrap(err, "invalid domain")
	}
	o.tools = reg
	return o, nil
}

func (o *Orchestrator) Domain() *domains.Domain {
	return o.domain
}

func (o *Orchestrator) Tools() *tools.Registry {
	return o.tools
}

// Bootstrap is what a connecting client tells us about itself.
type Bootstrap struct {
	Identity string
	TargetID string
	Locale   string
}

// NewSession prepares a session. Call Start to produce the greeting.
func (o *Orchestrator) NewSession(ctx context.Context, b Bootstrap) (*Session, error) {
	if b.Identity == "" {
		return nil, errors.New("session needs an identity")
	}
	if b.Locale == "" {
		b.Locale = "en"
	}
	seed := o.domain.NewSeed(b.Identity, b.TargetID, b.Locale)
	o.resume(ctx, &seed)

	roles, err := agents.NewRegistry(o.domain.Roles)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		o:        o,
		state:    state.New(seed),
		agents:   roles,
		handoffs: handoff.NewController(roles),
		ctx:      sctx,
		cancel:   cancel,
	}
	o.metrics.ActiveSessions.WithLabelValues(o.domain.Name).Inc()
	log.Info().
		Str("session_id", s.state.ID).
		Str("domain", o.domain.Name).
		Str("identity", b.Identity).
		Str("locale", b.Locale).
		Msg("session created")
	return s, nil
}

func (o *Orchestrator) resume(ctx context.Context, seed *state.Seed) {
	if o.store == nil {
		return
	}
	rec, err := o.store.Get(ctx, store.Key{Domain: o.domain.Name, Identity: seed.Identity, TargetID: seed.TargetID})
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("identity", seed.Identity).Msg("could not load stored record")
		}
		return
	}
	for k, v := range rec.Fields {
		seed.Values[k] = v
	}
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	events.BestEffort(ctx, o.publisher, o.domain.Topic, e, func(topic string, _ events.Event, _ error) {
		o.metrics.PublishFailures.WithLabelValues(topic).Inc()
	})
}
