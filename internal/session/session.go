// Package session owns the agent's single connection to the controller:
// dialing, the startup announcement, the heartbeat, the inbound read
// loop, and the best-effort goodbye. No other component may touch the
// connection; they request frame transmission through Send.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/seaquell/outpost/internal/platform"
	"github.com/seaquell/outpost/pkg/protocol"
)

// ErrNoEndpoint is returned by New when no controller endpoint is
// configured. This is the only startup failure surfaced synchronously.
var ErrNoEndpoint = errors.New("session: controller endpoint is required")

// DefaultHeartbeatInterval stays under typical idle-connection timeouts
// of intermediary infrastructure.
const DefaultHeartbeatInterval = 25 * time.Second

// maxMessageSize bounds inbound frames; the connection drops past it.
const maxMessageSize = 512 * 1024

// TaskHandler receives each inbound task frame. The dispatcher
// implements it.
type TaskHandler interface {
	Dispatch(ctx context.Context, frame protocol.TaskFrame)
}

// Direction tags frames seen by the Observer.
const (
	DirIn  = "in"
	DirOut = "out"
)

// Observer sees every frame crossing the connection, in both
// directions. Purely informational; panics are contained.
type Observer func(dir string, frame any)

// Conn is the subset of the websocket connection the session uses.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens the connection. The default wraps gorilla's dialer.
type Dialer func(ctx context.Context, url string) (Conn, error)

func defaultDialer(ctx context.Context, u string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return conn, nil
}

// Options configure a session.
type Options struct {
	Endpoint          string // controller WebSocket URL, required
	AppID             string
	HeartbeatInterval time.Duration // default 25s
	Collector         platform.SnapshotCollector
	Handler           TaskHandler
	Observer          Observer
	Dialer            Dialer
}

// Session is one agent connection lifecycle. Created per process start;
// a dropped connection is not redialed.
type Session struct {
	opts Options
	id   string
	log  *slog.Logger

	mu       sync.Mutex
	conn     Conn
	open     bool
	stopping bool
	hbStop   chan struct{}

	cancel  context.CancelFunc
	stopped sync.Once
}

// New validates the options and mints the session identity. It fails
// fast, synchronously, when the endpoint is missing or unusable; no
// connection is attempted here.
func New(opts Options) (*Session, error) {
	if opts.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, errors.Join(ErrNoEndpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, ErrNoEndpoint
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.Collector == nil {
		opts.Collector = &platform.HostCollector{}
	}
	if opts.Dialer == nil {
		opts.Dialer = defaultDialer
	}

	id := uuid.NewString()
	return &Session{
		opts: opts,
		id:   id,
		log:  slog.With("session", id),
	}, nil
}

// ID returns the session identifier, available before the connection
// opens so callers can display or log it immediately.
func (s *Session) ID() string { return s.id }

// SetHandler installs the task handler. Must be called before Start;
// the session and the dispatcher reference each other, so one of the
// two links is wired after construction.
func (s *Session) SetHandler(h TaskHandler) { s.opts.Handler = h }

// Start launches the connection in the background and returns at once.
// Dial or handshake failures are logged, not returned; there is no
// reconnection.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// URL is the dial target: the configured endpoint with the agent role,
// session id and app id as query parameters.
func (s *Session) URL() string {
	u, _ := url.Parse(s.opts.Endpoint)
	q := u.Query()
	q.Set("role", "agent")
	q.Set("session", s.id)
	if s.opts.AppID != "" {
		q.Set("appId", s.opts.AppID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Session) run(ctx context.Context) {
	conn, err := s.opts.Dialer(ctx, s.URL())
	if err != nil {
		s.log.Error("connect failed", "endpoint", s.opts.Endpoint, "error", err)
		return
	}

	s.mu.Lock()
	if s.stopping || ctx.Err() != nil {
		// Stop won the race against the dial; the late connection must
		// not come up, or its heartbeat would outlive the session.
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.open = true
	s.hbStop = make(chan struct{})
	s.mu.Unlock()

	s.log.Info("connected", "endpoint", s.opts.Endpoint)

	go s.heartbeat(s.hbStop)

	snap := s.opts.Collector.Collect(ctx)
	s.Send(protocol.NewHello(s.id, s.opts.AppID, snap))

	s.readLoop(ctx)
}

// Send transmits a frame if the connection is currently open. Sends
// while closed or still connecting are dropped silently; the core does
// not buffer or retry.
func (s *Session) Send(frame any) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		s.log.Debug("send dropped, connection not open")
		return
	}
	err := s.conn.WriteJSON(frame)
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("send failed", "error", err)
		return
	}
	s.observe(DirOut, frame)
}

// heartbeat emits a ping on a fixed interval while the connection is
// open. The stop channel closes with the connection, so the ticker
// never outlives it.
func (s *Session) heartbeat(stop <-chan struct{}) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Send(protocol.NewPing())
		case <-stop:
			return
		}
	}
}

// readLoop parses each inbound message as a frame. Malformed payloads
// are discarded without surfacing an error; only task frames drive
// further behavior.
func (s *Session) readLoop(ctx context.Context) {
	defer s.closeConn()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Info("connection closed", "error", err)
			}
			return
		}

		frameType, err := protocol.ParseFrameType(data)
		if err != nil {
			continue
		}

		if frameType != protocol.FrameTypeTask {
			var raw map[string]any
			if json.Unmarshal(data, &raw) == nil {
				s.observe(DirIn, raw)
			}
			continue
		}

		var frame protocol.TaskFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.ID == "" {
			continue
		}
		s.observe(DirIn, frame)

		if s.opts.Handler != nil {
			s.opts.Handler.Dispatch(ctx, frame)
		}
	}
}

// Stop sends a best-effort goodbye, closes the connection and cancels
// in-flight runners. Teardown never fails loudly: goodbye and close
// errors are swallowed.
func (s *Session) Stop() {
	s.stopped.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()

		s.Send(protocol.NewGoodbye(s.id))
		s.closeConn()
		if s.cancel != nil {
			s.cancel()
		}
		s.log.Info("session stopped")
	})
}

// closeConn shuts the connection and the heartbeat exactly once.
// Transport errors and ordinary closes both land here.
func (s *Session) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	s.open = false
	close(s.hbStop)
	_ = s.conn.Close()
}

func (s *Session) observe(dir string, frame any) {
	obs := s.opts.Observer
	if obs == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			s.log.Warn("frame observer panicked", "panic", p)
		}
	}()
	obs(dir, frame)
}
