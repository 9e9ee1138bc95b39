package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/domains/profile"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/events"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/inference/engine"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/orchestrator"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/store"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestServer(t *testing.T, e engine.Engine, options ...Option) (*httptest.Server, *events.Router) {
	t.Helper()
	router, err := events.NewRouter()
	require.NoError(t, err)
	t.Cleanup(func() { _ = router.Close() })

	reg := prometheus.NewRegistry()
	st := store.NewMemoryStore()
	o, err := orchestrator.New(e, profile.New(st),
		orchestrator.WithPublisher(router.EventPublisher()),
		orchestrator.WithStore(st),
		orchestrator.WithMetrics(orchestrator.NewMetrics("test", reg)),
	)
	require.NoError(t, err)

	options = append([]Option{WithEventRouter(router), WithGatherer(reg)}, options...)
	srv := httptest.NewServer(NewServer([]*orchestrator.Orchestrator{o}, options...).Handler())
	t.Cleanup(srv.Close)
	return srv, router
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) OutboundFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f OutboundFrame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func send(t *testing.T, conn *websocket.Conn, f InboundFrame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, f))
}

func TestSessionSocket_GreetsAndReplies(t *testing.T) {
	e := engine.NewScriptedEngine(engine.Reply("Namaste!"), engine.Reply("Tell me your village."))
	srv, _ := newTestServer(t, e)

	conn := dial(t, wsURL(srv, "/v1/sessions/profile?identity=U1&locale=en"))

	greeting := readFrame(t, conn)
	require.Equal(t, FrameReply, greeting.Type)
	require.Equal(t, "Namaste!", greeting.Text)
	require.Equal(t, profile.RoleIntake, greeting.Role)
	require.NotEmpty(t, greeting.SessionID)

	send(t, conn, InboundFrame{Type: "hello"})
	bad := readFrame(t, conn)
	require.Equal(t, FrameError, bad.Type)

	send(t, conn, InboundFrame{Type: FrameUserInput, Text: "I am Ram"})
	reply := readFrame(t, conn)
	require.Equal(t, FrameReply, reply.Type)
	require.Equal(t, "Tell me your village.", reply.Text)
	require.Equal(t, greeting.SessionID, reply.SessionID)
}

func TestSessionSocket_RateLimitsInput(t *testing.T) {
	e := engine.NewScriptedEngine(engine.Reply("hi"), engine.Reply("first"))
	srv, _ := newTestServer(t, e, WithInputRate(rate.Every(time.Hour), 1))

	conn := dial(t, wsURL(srv, "/v1/sessions/profile?identity=U1"))
	_ = readFrame(t, conn)

	send(t, conn, InboundFrame{Type: FrameUserInput, Text: "one"})
	require.Equal(t, "first", readFrame(t, conn).Text)

	send(t, conn, InboundFrame{Type: FrameUserInput, Text: "two"})
	f := readFrame(t, conn)
	require.Equal(t, FrameError, f.Type)
	require.Equal(t, errRateLimited.Error(), f.Error)
}

func TestSessionSocket_RejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, engine.EchoEngine{})

	res, err := http.Get(srv.URL + "/v1/sessions/weather?identity=U1")
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = http.Get(srv.URL + "/v1/sessions/profile")
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestEventSocket_StreamsSessionEvents(t *testing.T) {
	e := engine.NewScriptedEngine(engine.Reply("hi"))
	srv, _ := newTestServer(t, e)

	eventsConn := dial(t, wsURL(srv, "/v1/events/"+profile.Topic))
	conn := dial(t, wsURL(srv, "/v1/sessions/profile?identity=U1"))
	greeting := readFrame(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kinds := []events.Kind{}
	for len(kinds) < 2 {
		_, data, err := eventsConn.Read(ctx)
		require.NoError(t, err)
		var ev events.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		require.Equal(t, greeting.SessionID, ev.SessionID)
		kinds = append(kinds, ev.Kind)
	}
	require.Equal(t, []events.Kind{events.KindStartedSpeaking, events.KindStoppedSpeaking}, kinds)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, engine.EchoEngine{})

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}
