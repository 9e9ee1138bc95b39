package events

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// ErrTransport wraps failures to hand an event to the transport.
var ErrTransport = errors.New("event transport failure")

// Publisher delivers events to a topic. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic string, e Event) error
}

type PublisherFunc func(ctx context.Context, topic string, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, topic string, e Event) error {
	return f(ctx, topic, e)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error {
	return nil
}

// MultiPublisher fans an event out to several publishers. All of them are
// tried, errors are combined.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, topic string, e Event) error {
	var ret error
	for _, p := range m {
		ret = multierr.Append(ret, p.Publish(ctx, topic, e))
	}
	return ret
}

// FailureHook is called for every event that could not be published.
type FailureHook func(topic string, e Event, err error)

const defaultPublishTimeout = 2 * time.Second

// BestEffort publishes e and swallows failures after logging them. The
// publish is bounded by a short timeout so a slow transport never holds up
// the conversation.
func BestEffort(ctx context.Context, p Publisher, topic string, e Event, hooks ...FailureHook) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPublishTimeout)
	defer cancel()

	if err := p.Publish(ctx, topic, e); err != nil {
		log.Warn().
			Err(err).
			Str("topic", topic).
			Str("event", string(e.Kind)).
			Str("session_id", e.SessionID).
			Msg("could not publish event")
		for _, h := range hooks {
			h(topic, e, err)
		}
	}
}
