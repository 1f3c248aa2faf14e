package server

import (
	"context"
	"net/http"
	"time"

	"github.com/goevery/courier/internal/auth"
	"github.com/goevery/courier/internal/handler"
	"github.com/goevery/courier/internal/notification"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	outboundBuffer = 16
)

type StateSource interface {
	Watch(ctx context.Context) <-chan notification.State
}

// WebSocketServer pushes every store state to connected clients and routes
// their requests.
type WebSocketServer struct {
	logger        *zap.Logger
	upgrader      *websocket.Upgrader
	authenticator *auth.Authenticator
	states        StateSource
	router        *Router
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	authenticator *auth.Authenticator,
	states StateSource,
	router *Router,
) *WebSocketServer {
	return &WebSocketServer{
		logger,
		upgrader,
		authenticator,
		states,
		router,
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/stream", s.handle).Methods("GET")
}

func (s *WebSocketServer) handle(w http.ResponseWriter, r *http.Request) {
	authentication, err := s.authenticator.AuthenticateRequest(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if !authentication.CanRead() {
		http.Error(w, "read scope required", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	logger := s.logger.With(zap.String("subject", authentication.Subject))
	logger.Info("stream connection established")

	ctx, cancel := context.WithCancel(auth.WithAuthentication(context.Background(), authentication))
	defer cancel()

	conn.SetReadLimit(maxMessageSize)

	responses := make(chan handler.Response, outboundBuffer)
	go s.write(ctx, logger, conn, responses)

	for {
		var request handler.Request
		if err := conn.ReadJSON(&request); err != nil {
			logger.Debug("stream read finished", zap.Error(err))
			break
		}

		response := s.router.RouteRequest(ctx, request)
		if response == nil {
			continue
		}

		select {
		case responses <- *response:
		default:
			logger.Warn("stream response buffer full, dropping response",
				zap.Int("requestId", request.Id))
		}
	}

	_ = conn.Close()

	logger.Info("stream connection closed")
}

func (s *WebSocketServer) write(ctx context.Context, logger *zap.Logger, conn *websocket.Conn, responses <-chan handler.Response) {
	states := s.states.Watch(ctx)

	for {
		var message any

		select {
		case <-ctx.Done():
			return
		case response := <-responses:
			message = response
		case state, ok := <-states:
			if !ok {
				return
			}

			push, err := handler.NewNotification("state", state)
			if err != nil {
				logger.Error("failed to encode state", zap.Error(err))
				continue
			}

			message = push
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(message); err != nil {
			logger.Debug("stream write failed", zap.Error(err))
			_ = conn.Close()

			return
		}
	}
}
