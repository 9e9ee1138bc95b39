package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	MetadataSessionID = "session_id"
	MetadataEvent     = "event"
	MetadataSequence  = "sequence_number"
)

// WatermillPublisher publishes events as JSON watermill messages. The
// session id, event kind and a per-publisher sequence number are copied into
// the message metadata so subscribers can filter and order without decoding
// the payload.
type WatermillPublisher struct {
	publisher message.Publisher
	seq       atomic.Uint64
}

func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

func (w *WatermillPublisher) Publish(ctx context.Context, topic string, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "could not marshal event")
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataSessionID, e.SessionID)
	msg.Metadata.Set(MetadataEvent, string(e.Kind))
	msg.Metadata.Set(MetadataSequence, strconv.FormatUint(w.seq.Add(1), 10))
	msg.SetContext(ctx)

	// gochannel blocks until every subscriber acked, ctx bounds the wait
	done := make(chan error, 1)
	go func() {
		done <- w.publisher.Publish(topic, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return errors.Wrapf(ErrTransport, "watermill publish to %s: %v", topic, err)
		}
	case <-ctx.Done():
		return errors.Wrapf(ErrTransport, "watermill publish to %s: %v", topic, ctx.Err())
	}

	log.Trace().Str("topic", topic).Str("event", string(e.Kind)).Msg("published event to watermill")
	return nil
}

var _ Publisher = (*WatermillPublisher)(nil)
