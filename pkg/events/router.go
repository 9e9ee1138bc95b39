package events

import (
	"context"
	"encoding/json"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/helpers"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

// Router is the in-process event bus. Publishers write to it through
// Publisher, websocket clients read from it through Subscribe and logging
// handlers are attached with AddHandler.
type Router struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	buffer     int64
}

type RouterOption func(*Router)

func WithLogger(logger watermill.LoggerAdapter) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithVerbose(verbose bool) RouterOption {
	return func(r *Router) {
		if verbose {
			r.logger = helpers.NewWatermill(log.Logger)
		}
	}
}

// WithOutputBuffer sets the per-subscriber buffer of the in-memory pubsub.
// Publish still waits for every subscriber to ack, which keeps each topic in
// publish order.
func WithOutputBuffer(n int64) RouterOption {
	return func(r *Router) {
		r.buffer = n
	}
}

func NewRouter(options ...RouterOption) (*Router, error) {
	ret := &Router{
		logger: watermill.NopLogger{},
		buffer: 256,
	}
	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            ret.buffer,
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}
	ret.router = router

	return ret, nil
}

// EventPublisher returns a Publisher writing into this router.
func (r *Router) EventPublisher() *WatermillPublisher {
	return NewWatermillPublisher(r.Publisher)
}

func (r *Router) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	r.router.AddNoPublisherHandler(name, topic, r.Subscriber, f)
}

// Subscribe returns a stream of the topic's messages until ctx is done.
// Every subscriber sees every message.
func (r *Router) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return r.Subscriber.Subscribe(ctx, topic)
}

// LogEvents is a handler that logs every event passing through a topic.
func (r *Router) LogEvents(msg *message.Message) error {
	defer msg.Ack()

	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("undecodable event")
		return nil
	}
	log.Debug().
		Str("message_id", msg.UUID).
		Str("event", string(e.Kind)).
		Str("session_id", msg.Metadata.Get(MetadataSessionID)).
		Interface("payload", e.Payload).
		Msg("event")
	return nil
}

func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

func (r *Router) IsRunning() bool {
	return r.router.IsRunning()
}

func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

func (r *Router) Close() error {
	if err := r.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close pubsub")
	}
	if err := r.router.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close router")
	}
	return nil
}
