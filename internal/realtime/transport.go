package realtime

import (
	"encoding/json"
	"errors"
)

var (
	ErrNotConnected     = errors.New("socket is not connected")
	ErrRetriesExhausted = errors.New("reconnection attempts exhausted")
)

// Handler receives the callbacks of a single socket. Callbacks may run on
// any goroutine but never concurrently for the same socket.
type Handler struct {
	// OnConnect receives the id the socket was given for this connection.
	OnConnect func(socketId string)
	// OnDisconnect is not called when the socket is closed by its owner.
	OnDisconnect func(reason string)
	// OnConnectError is called for every failed attempt. A final error
	// wrapping ErrRetriesExhausted means the socket stopped trying.
	OnConnectError func(err error)
	OnEvent        func(name string, data json.RawMessage)
}

type Socket interface {
	Id() string
	Connected() bool
	Emit(event string, data any) error
	Close() error
}

// Dialer opens a socket for a namespace. Dial returns immediately and the
// socket connects, and reconnects, in the background.
type Dialer interface {
	Dial(namespace Namespace, token string, handler Handler) Socket
}

// TokenSource reads the session credential used to authenticate sockets.
type TokenSource interface {
	Token() (string, bool)
}
