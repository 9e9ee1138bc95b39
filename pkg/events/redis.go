package events

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisPublisher publishes events on redis pub/sub channels named
// <prefix><topic>, for consumers outside this process.
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
}

type RedisPublisherOption func(*RedisPublisher)

func WithChannelPrefix(prefix string) RedisPublisherOption {
	return func(r *RedisPublisher) {
		r.prefix = prefix
	}
}

func NewRedisPublisher(client redis.UniversalClient, options ...RedisPublisherOption) *RedisPublisher {
	ret := &RedisPublisher{client: client}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (r *RedisPublisher) Channel(topic string) string {
	return r.prefix + topic
}

func (r *RedisPublisher) Publish(ctx context.Context, topic string, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "could not marshal event")
	}
	if err := r.client.Publish(ctx, r.Channel(topic), payload).Err(); err != nil {
		return errors.Wrapf(ErrTransport, "redis publish to %s: %v", r.Channel(topic), err)
	}
	log.Trace().Str("channel", r.Channel(topic)).Str("event", string(e.Kind)).Msg("published event to redis")
	return nil
}

var _ Publisher = (*RedisPublisher)(nil)
