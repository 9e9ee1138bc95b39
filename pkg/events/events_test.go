package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestEvent_WireFormatIsFlat(t *testing.T) {
	e := New("profile_completed", "s1", map[string]any{"record": map[string]any{"name": "Asha"}})
	b, err := json.Marshal(e)
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"profile_completed","session_id":"s1","record":{"name":"Asha"}}`, string(b))

	var out Event
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, Kind("profile_completed"), out.Kind)
	require.Equal(t, "s1", out.SessionID)
	require.NotContains(t, out.Payload, "event")

	require.Error(t, json.Unmarshal([]byte(`{"foo":1}`), &out))
}

func TestEvent_KindWinsOverPayloadKey(t *testing.T) {
	e := New(KindStartedSpeaking, "", map[string]any{"event": "spoofed"})
	b, err := json.Marshal(e)
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"started_speaking"}`, string(b))
}

func TestWatermillPublisher_DeliversToSubscribers(t *testing.T) {
	r, err := NewRouter()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := r.Subscribe(ctx, "profile")
	require.NoError(t, err)

	require.NoError(t, r.EventPublisher().Publish(ctx, "profile", NewStartedSpeaking("s1", "intake")))

	select {
	case msg := <-msgs:
		msg.Ack()
		require.Equal(t, "s1", msg.Metadata.Get(MetadataSessionID))
		require.Equal(t, "started_speaking", msg.Metadata.Get(MetadataEvent))
		require.Equal(t, "1", msg.Metadata.Get(MetadataSequence))
		require.JSONEq(t, `{"event":"started_speaking","session_id":"s1","role":"intake"}`, string(msg.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRouter_KeepsPublishOrderPerTopic(t *testing.T) {
	r, err := NewRouter()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := r.Subscribe(ctx, "activity")
	require.NoError(t, err)

	const rounds = 20
	go func() {
		p := r.EventPublisher()
		for i := 0; i < rounds; i++ {
			_ = p.Publish(ctx, "activity", NewStartedSpeaking("s1", "logger"))
			_ = p.Publish(ctx, "activity", NewStoppedSpeaking("s1", "logger"))
		}
	}()

	for i := 0; i < 2*rounds; i++ {
		want := string(KindStartedSpeaking)
		if i%2 == 1 {
			want = string(KindStoppedSpeaking)
		}
		select {
		case msg := <-msgs:
			msg.Ack()
			require.Equal(t, want, msg.Metadata.Get(MetadataEvent), "message %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d not received", i)
		}
	}
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "farwise:activity")
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(client, WithChannelPrefix("farwise:"))
	require.NoError(t, p.Publish(ctx, "activity", New("activity_logged", "s2", nil)))

	select {
	case msg := <-sub.Channel():
		require.Equal(t, "farwise:activity", msg.Channel)
		require.JSONEq(t, `{"event":"activity_logged","session_id":"s2"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no redis message received")
	}

	mr.Close()
	err = p.Publish(ctx, "activity", New("activity_logged", "s2", nil))
	require.True(t, errors.Is(err, ErrTransport))
}

func TestBestEffort_SwallowsAndReports(t *testing.T) {
	failing := PublisherFunc(func(ctx context.Context, topic string, e Event) error {
		return errors.New("down")
	})
	delivered := []Kind{}
	ok := PublisherFunc(func(ctx context.Context, topic string, e Event) error {
		delivered = append(delivered, e.Kind)
		return nil
	})

	failures := 0
	BestEffort(context.Background(), MultiPublisher{failing, ok}, "t", NewStoppedSpeaking("s", "r"),
		func(topic string, e Event, err error) { failures++ })
	require.Equal(t, 1, failures)
	require.Equal(t, []Kind{KindStoppedSpeaking}, delivered)

	// cancelled parent contexts still get their event out
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	BestEffort(ctx, PublisherFunc(func(ctx context.Context, topic string, e Event) error {
		return ctx.Err()
	}), "t", NewStoppedSpeaking("s", "r"), func(string, Event, error) { failures++ })
	require.Equal(t, 1, failures)

	BestEffort(context.Background(), nil, "t", Event{})
}
