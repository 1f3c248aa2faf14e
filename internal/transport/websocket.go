package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goevery/courier/internal/realtime"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	closeWait      = time.Second
)

type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Timeout      time.Duration
}

var DefaultPolicy = Policy{
	Attempts:     10,
	InitialDelay: 1000 * time.Millisecond,
	MaxDelay:     5000 * time.Millisecond,
	Timeout:      20000 * time.Millisecond,
}

// Delay returns the wait before the given reconnection attempt, starting at 1.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 1; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}

	return min(delay, p.MaxDelay)
}

// Frame is the JSON envelope exchanged in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Dialer struct {
	logger  *zap.Logger
	clock   clockwork.Clock
	baseURL *url.URL
	policy  Policy
	dialer  *websocket.Dialer
}

// NewDialer accepts http(s) and ws(s) base URLs; namespaces are appended as
// a path segment.
func NewDialer(logger *zap.Logger, clock clockwork.Clock, baseURL string, policy Policy) (*Dialer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid socket url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported socket url scheme: %q", u.Scheme)
	}

	return &Dialer{
		logger:  logger,
		clock:   clock,
		baseURL: u,
		policy:  policy,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  policy.Timeout,
			EnableCompression: true,
		},
	}, nil
}

func (d *Dialer) URL(namespace realtime.Namespace, token string) string {
	u := d.baseURL.JoinPath(string(namespace))

	query := u.Query()
	query.Set("token", token)
	u.RawQuery = query.Encode()

	return u.String()
}

func (d *Dialer) Dial(namespace realtime.Namespace, token string, handler realtime.Handler) realtime.Socket {
	ctx, cancel := context.WithCancel(context.Background())

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	socket := &Socket{
		logger:  d.logger.With(zap.Stringer("namespace", namespace)),
		dialer:  d,
		url:     d.URL(namespace, token),
		header:  header,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}

	go socket.run()

	return socket
}

type Socket struct {
	logger  *zap.Logger
	dialer  *Dialer
	url     string
	header  http.Header
	handler realtime.Handler

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	conn *websocket.Conn
	id   string

	writeMu sync.Mutex
}

func (s *Socket) Id() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.id
}

func (s *Socket) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.conn != nil
}

func (s *Socket) Emit(event string, data any) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return realtime.ErrNotConnected
	}

	frame := Frame{Event: event}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", event, err)
		}

		frame.Data = payload
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return conn.WriteJSON(frame)
}

// Close stops the socket for good; no disconnect callback follows.
func (s *Socket) Close() error {
	s.cancel()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWait),
	)
	s.writeMu.Unlock()

	return conn.Close()
}

func (s *Socket) run() {
	policy := s.dialer.policy
	attempt := 0

	for {
		conn, err := s.connect()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}

			attempt++
			s.handler.OnConnectError(err)

			if attempt >= policy.Attempts {
				s.handler.OnConnectError(fmt.Errorf("%w after %d attempts", realtime.ErrRetriesExhausted, attempt))

				return
			}

			if !s.wait(policy.Delay(attempt)) {
				return
			}

			continue
		}

		attempt = 0

		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			_ = conn.Close()

			return
		}
		s.conn = conn
		s.id = gonanoid.Must()
		id := s.id
		s.mu.Unlock()

		s.handler.OnConnect(id)

		reason := s.readLoop(conn)

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()

		if s.ctx.Err() != nil {
			return
		}

		s.handler.OnDisconnect(reason)

		if !s.wait(policy.Delay(1)) {
			return
		}
	}
}

func (s *Socket) connect() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.dialer.policy.Timeout)
	defer cancel()

	conn, response, err := s.dialer.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("handshake rejected with status %d: %w", response.StatusCode, err)
		}

		return nil, err
	}

	conn.SetReadLimit(maxMessageSize)

	return conn, nil
}

func (s *Socket) readLoop(conn *websocket.Conn) string {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return disconnectReason(err)
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
			s.logger.Warn("invalid frame received", zap.Error(err))

			continue
		}

		s.handler.OnEvent(frame.Event, frame.Data)
	}
}

func (s *Socket) wait(delay time.Duration) bool {
	select {
	case <-s.ctx.Done():
		return false
	case <-s.dialer.clock.After(delay):
		return true
	}
}

func disconnectReason(err error) string {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway {
			return realtime.ReasonServerDisconnect
		}

		return realtime.ReasonTransportClose
	}

	return realtime.ReasonTransportError
}
