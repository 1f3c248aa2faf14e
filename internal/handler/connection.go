package handler

import (
	"context"

	"github.com/goevery/courier/internal/realtime"
)

type Connections interface {
	Connect(namespace realtime.Namespace)
	Disconnect(namespace realtime.Namespace)
	State(namespace realtime.Namespace) realtime.ConnectionState
	SocketId(namespace realtime.Namespace) (string, bool)
}

type NamespaceRequest struct {
	Namespace string `json:"namespace"`
}

type ConnectionStatus struct {
	Namespace realtime.Namespace       `json:"namespace"`
	State     realtime.ConnectionState `json:"state"`
	SocketId  string                   `json:"socketId,omitempty"`
}

type ConnectionHandlerInterface interface {
	List(ctx context.Context) ([]ConnectionStatus, error)
	Connect(ctx context.Context, req NamespaceRequest) (ConnectionStatus, error)
	Disconnect(ctx context.Context, req NamespaceRequest) (ConnectionStatus, error)
}

type ConnectionHandler struct {
	connections Connections
}

func NewConnectionHandler(connections Connections) *ConnectionHandler {
	return &ConnectionHandler{
		connections,
	}
}

func (h *ConnectionHandler) List(ctx context.Context) ([]ConnectionStatus, error) {
	if err := requireRead(ctx); err != nil {
		return nil, err
	}

	statuses := make([]ConnectionStatus, 0, len(realtime.Namespaces))
	for _, namespace := range realtime.Namespaces {
		statuses = append(statuses, h.status(namespace))
	}

	return statuses, nil
}

// Connect starts connecting; the returned status is usually still connecting.
func (h *ConnectionHandler) Connect(ctx context.Context, req NamespaceRequest) (ConnectionStatus, error) {
	if err := requireWrite(ctx); err != nil {
		return ConnectionStatus{}, err
	}

	namespace, err := realtime.ParseNamespace(req.Namespace)
	if err != nil {
		return ConnectionStatus{}, err
	}

	h.connections.Connect(namespace)

	return h.status(namespace), nil
}

func (h *ConnectionHandler) Disconnect(ctx context.Context, req NamespaceRequest) (ConnectionStatus, error) {
	if err := requireWrite(ctx); err != nil {
		return ConnectionStatus{}, err
	}

	namespace, err := realtime.ParseNamespace(req.Namespace)
	if err != nil {
		return ConnectionStatus{}, err
	}

	h.connections.Disconnect(namespace)

	return h.status(namespace), nil
}

func (h *ConnectionHandler) status(namespace realtime.Namespace) ConnectionStatus {
	socketId, _ := h.connections.SocketId(namespace)

	return ConnectionStatus{
		Namespace: namespace,
		State:     h.connections.State(namespace),
		SocketId:  socketId,
	}
}
