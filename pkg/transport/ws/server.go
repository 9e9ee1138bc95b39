package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/events"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/orchestrator"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	errRateLimited = errors.New("too many messages, slow down")
	errBadFrame    = errors.New("expected a user_input frame with text")
)

// Server exposes one orchestrator per domain over websockets.
type Server struct {
	orchestrators map[string]*orchestrator.Orchestrator
	router        *events.Router
	gatherer      prometheus.Gatherer
	inputRate     rate.Limit
	inputBurst    int
	writeTimeout  time.Duration
	origins       []string
}

type Option func(*Server)

// WithEventRouter enables the event socket.
func WithEventRouter(r *events.Router) Option {
	return func(s *Server) {
		s.router = r
	}
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithInputRate throttles user_input frames per connection.
func WithInputRate(r rate.Limit, burst int) Option {
	return func(s *Server) {
		s.inputRate = r
		s.inputBurst = burst
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithOriginPatterns allows cross origin clients matching the patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.origins = patterns
	}
}

func NewServer(orchestrators []*orchestrator.Orchestrator, options ...Option) *Server {
	ret := &Server{
		orchestrators: map[string]*orchestrator.Orchestrator{},
		gatherer:      prometheus.DefaultGatherer,
		inputRate:     rate.Every(500 * time.Millisecond),
		inputBurst:    4,
		writeTimeout:  10 * time.Second,
	}
	for _, o := range orchestrators {
		ret.orchestrators[o.Domain().Name] = o
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/v1/sessions/{domain}", s.handleSession).Methods(http.MethodGet)
	if s.router != nil {
		r.HandleFunc("/v1/events/{topic}", s.handleEvents).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]
	o, ok := s.orchestrators[domain]
	if !ok {
		http.Error(w, "unknown domain "+domain, http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	session, err := o.NewSession(r.Context(), orchestrator.Bootstrap{
		Identity: q.Get("identity"),
		TargetID: q.Get("target"),
		Locale:   q.Get("locale"),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer session.Close()

	conn, err := s.accept(w, r)
	if err != nil {
		log.Warn().Err(err).Str("session_id", session.ID()).Msg("websocket upgrade failed")
		return
	}
	defer func() {
		_ = conn.CloseNow()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inputs := make(chan string)
	go s.readInputs(ctx, cancel, conn, session.ID(), inputs)

	err = session.Run(ctx, inputs, func(res *orchestrator.TurnResult, err error) {
		if err != nil {
			s.write(ctx, conn, errorFrame(session.ID(), err))
			return
		}
		s.write(ctx, conn, replyFrame(session.ID(), res))
	})
	if ctx.Err() != nil {
		// client went away
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("session_id", session.ID()).Msg("session ended with error")
	}
	s.write(ctx, conn, OutboundFrame{Type: FrameSessionEnded, SessionID: session.ID()})
	_ = conn.Close(websocket.StatusNormalClosure, "session ended")
}

// readInputs forwards valid user_input frames to inputs. A read error means
// the client is gone, the session context is cancelled.
func (s *Server) readInputs(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sessionID string, inputs chan<- string) {
	defer cancel()
	limiter := rate.NewLimiter(s.inputRate, s.inputBurst)
	for {
		var in InboundFrame
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Debug().Err(err).Str("session_id", sessionID).Msg("session socket read failed")
			}
			return
		}
		if in.Type != FrameUserInput || in.Text == "" {
			s.write(ctx, conn, errorFrame(sessionID, errBadFrame))
			continue
		}
		if !limiter.Allow() {
			s.write(ctx, conn, errorFrame(sessionID, errRateLimited))
			continue
		}
		select {
		case inputs <- in.Text:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, v); err != nil {
		log.Debug().Err(err).Msg("websocket write failed")
	}
}

// handleEvents streams the events of a topic as raw JSON. The session query
// parameter restricts the stream to one session.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	sessionID := r.URL.Query().Get("session")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// subscribe before the upgrade so nothing published after the handshake is missed
	messages, err := s.router.Subscribe(ctx, topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := s.accept(w, r)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("websocket upgrade failed")
		return
	}
	defer func() {
		_ = conn.CloseNow()
	}()
	ctx = conn.CloseRead(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "event bus closed")
				return
			}
			msg.Ack()
			if sessionID != "" && msg.Metadata.Get(events.MetadataSessionID) != sessionID {
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, s.writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg.Payload)
			wcancel()
			if err != nil {
				log.Debug().Err(err).Str("topic", topic).Msg("event socket write failed")
				return
			}
		}
	}
}
