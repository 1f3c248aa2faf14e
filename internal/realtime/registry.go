package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// Listener handles an inbound event. Returned errors and panics are logged
// and never reach other listeners.
type Listener func(event Event) error

// Subscription identifies one listener registration.
type Subscription struct {
	key      string
	listener Listener
}

func (s *Subscription) Key() string {
	return s.key
}

type link struct {
	namespace Namespace
	state     ConnectionState
	socket    Socket
	socketId  string
}

// Registry owns at most one socket per namespace and fans inbound events out
// to listeners keyed by "<namespace>:<event>".
type Registry struct {
	logger *zap.Logger
	dialer Dialer
	tokens TokenSource

	mu        sync.RWMutex
	links     map[Namespace]*link
	listeners map[string][]*Subscription
}

func NewRegistry(
	logger *zap.Logger,
	dialer Dialer,
	tokens TokenSource,
) *Registry {
	return &Registry{
		logger:    logger,
		dialer:    dialer,
		tokens:    tokens,
		links:     make(map[Namespace]*link),
		listeners: make(map[string][]*Subscription),
	}
}

// Connect opens the namespace's socket unless one is already live or being
// established. Without a session token nothing is attempted.
func (r *Registry) Connect(namespace Namespace) {
	logger := r.logger.With(zap.Stringer("namespace", namespace))

	r.mu.Lock()
	if _, ok := r.links[namespace]; ok {
		r.mu.Unlock()
		logger.Debug("namespace already connected or connecting")

		return
	}

	l := &link{namespace: namespace, state: StateConnecting}
	r.links[namespace] = l
	r.mu.Unlock()

	token, ok := r.tokens.Token()
	if !ok {
		r.mu.Lock()
		if r.links[namespace] == l {
			delete(r.links, namespace)
		}
		r.mu.Unlock()

		logger.Error("no session token available, not connecting")

		return
	}

	logger.Info("connecting namespace")

	socket := r.dialer.Dial(namespace, token, r.handler(l))

	r.mu.Lock()
	current := r.links[namespace] == l
	if current {
		l.socket = socket
	}
	r.mu.Unlock()

	if !current {
		// Disconnected while dialing.
		_ = socket.Close()
	}
}

// Disconnect tears down the namespace's socket if there is one.
func (r *Registry) Disconnect(namespace Namespace) {
	r.mu.Lock()
	l, ok := r.links[namespace]
	delete(r.links, namespace)
	r.mu.Unlock()

	if !ok {
		return
	}

	if l.socket != nil {
		if err := l.socket.Close(); err != nil {
			r.logger.Warn("failed to close socket",
				zap.Stringer("namespace", namespace),
				zap.Error(err))
		}
	}

	r.logger.Info("namespace disconnected", zap.Stringer("namespace", namespace))

	if l.state == StateConnected {
		r.dispatch(Event{
			Namespace: namespace,
			Name:      string(EventDisconnect),
			Payload:   Lifecycle{Reason: ReasonClientDisconnect},
		})
	}
}

// Close disconnects every namespace.
func (r *Registry) Close() {
	r.mu.RLock()
	namespaces := make([]Namespace, 0, len(r.links))
	for namespace := range r.links {
		namespaces = append(namespaces, namespace)
	}
	r.mu.RUnlock()

	for _, namespace := range namespaces {
		r.Disconnect(namespace)
	}
}

// EmitServer sends a transport-native event. Nothing is queued: when the
// namespace is not connected the event is dropped.
func (r *Registry) EmitServer(namespace Namespace, event ServerEvent, data any) {
	r.emit(namespace, string(event), data)
}

// EmitClient sends a client action with the same drop policy as EmitServer.
func (r *Registry) EmitClient(namespace Namespace, action ClientAction, data any) {
	r.emit(namespace, string(action), data)
}

func (r *Registry) emit(namespace Namespace, name string, data any) {
	var socket Socket

	r.mu.RLock()
	if l, ok := r.links[namespace]; ok && l.state == StateConnected {
		socket = l.socket
	}
	r.mu.RUnlock()

	if socket == nil {
		r.logger.Warn("namespace not connected, dropping event",
			zap.Stringer("namespace", namespace),
			zap.String("event", name))

		return
	}

	if err := socket.Emit(name, data); err != nil {
		r.logger.Warn("failed to emit event",
			zap.Stringer("namespace", namespace),
			zap.String("event", name),
			zap.Error(err))
	}
}

func (r *Registry) On(key string, listener Listener) *Subscription {
	subscription := &Subscription{key: key, listener: listener}

	r.mu.Lock()
	r.listeners[key] = append(r.listeners[key], subscription)
	r.mu.Unlock()

	return subscription
}

// Off removes the subscription from key. Unknown subscriptions are ignored.
func (r *Registry) Off(key string, subscription *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscriptions := r.listeners[key]

	i := slices.Index(subscriptions, subscription)
	if i < 0 {
		return
	}

	subscriptions = slices.Delete(slices.Clone(subscriptions), i, i+1)
	if len(subscriptions) == 0 {
		delete(r.listeners, key)
		return
	}

	r.listeners[key] = subscriptions
}

func (r *Registry) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.links {
		if l.state == StateConnected {
			return true
		}
	}

	return false
}

func (r *Registry) IsNamespaceConnected(namespace Namespace) bool {
	return r.State(namespace) == StateConnected
}

func (r *Registry) State(namespace Namespace) ConnectionState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[namespace]
	if !ok {
		return StateDisconnected
	}

	return l.state
}

func (r *Registry) SocketId(namespace Namespace) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[namespace]
	if !ok || l.state != StateConnected {
		return "", false
	}

	return l.socketId, true
}

func (r *Registry) ConnectedNamespaces() []Namespace {
	r.mu.RLock()
	defer r.mu.RUnlock()

	namespaces := []Namespace{}
	for namespace, l := range r.links {
		if l.state == StateConnected {
			namespaces = append(namespaces, namespace)
		}
	}

	slices.Sort(namespaces)

	return namespaces
}

func (r *Registry) handler(l *link) Handler {
	namespace := l.namespace
	logger := r.logger.With(zap.Stringer("namespace", namespace))

	return Handler{
		OnConnect: func(socketId string) {
			if !r.transition(l, StateConnected, socketId) {
				return
			}

			logger.Info("namespace connected", zap.String("socketId", socketId))

			r.dispatch(Event{
				Namespace: namespace,
				Name:      string(EventConnect),
				Payload:   Lifecycle{SocketId: socketId},
			})
		},
		OnDisconnect: func(reason string) {
			if !r.transition(l, StateDisconnected, "") {
				return
			}

			logger.Warn("namespace lost connection", zap.String("reason", reason))

			r.dispatch(Event{
				Namespace: namespace,
				Name:      string(EventDisconnect),
				Payload:   Lifecycle{Reason: reason},
			})
		},
		OnConnectError: func(err error) {
			var ok bool
			if errors.Is(err, ErrRetriesExhausted) {
				ok = r.drop(l)
			} else {
				// The transport keeps retrying.
				ok = r.transition(l, StateConnecting, "")
			}

			if !ok {
				return
			}

			logger.Warn("namespace connection error", zap.Error(err))

			r.dispatch(Event{
				Namespace: namespace,
				Name:      string(EventError),
				Payload:   Lifecycle{Error: err.Error()},
			})
		},
		OnEvent: func(name string, data json.RawMessage) {
			if !r.current(l) {
				return
			}

			event, err := Decode(namespace, name, data)
			if err != nil {
				logger.Warn("unexpected event payload", zap.String("event", name), zap.Error(err))
			}

			r.dispatch(event)
		},
	}
}

func (r *Registry) current(l *link) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.links[l.namespace] == l
}

// transition updates the state and socket id of l if it is still the
// namespace's link.
func (r *Registry) transition(l *link, state ConnectionState, socketId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.links[l.namespace] != l {
		return false
	}

	l.state = state
	l.socketId = socketId

	return true
}

func (r *Registry) drop(l *link) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.links[l.namespace] != l {
		return false
	}

	delete(r.links, l.namespace)

	return true
}

func (r *Registry) dispatch(event Event) {
	key := event.Key()

	r.mu.RLock()
	subscriptions := r.listeners[key]
	r.mu.RUnlock()

	for _, subscription := range subscriptions {
		if err := invoke(subscription.listener, event); err != nil {
			r.logger.Error("listener failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

func invoke(listener Listener, event Event) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("listener panicked: %v", recovered)
		}
	}()

	return listener(event)
}
