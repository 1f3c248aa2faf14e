package notification

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

type expiry struct {
	timer clockwork.Timer
}

// Store is the authoritative, newest-first collection of notifications.
// All mutations go through its methods and each returns the resulting state.
type Store struct {
	logger *zap.Logger
	clock  clockwork.Clock

	mu            sync.Mutex
	notifications []*Notification
	unread        int
	revision      uint64
	expiries      map[string]*expiry
	watchers      map[chan State]struct{}
}

func NewStore(logger *zap.Logger, clock clockwork.Clock) *Store {
	return &Store{
		logger:   logger,
		clock:    clock,
		expiries: make(map[string]*expiry),
		watchers: make(map[chan State]struct{}),
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Store) Get(id string) (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, n := s.findLocked(id)
	if n == nil {
		return Notification{}, false
	}

	return n.clone(), true
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.unread
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.notifications)
}

func (s *Store) Add(draft Draft) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.newLocked(draft)
	s.notifications = append([]*Notification{n}, s.notifications...)
	s.unread++
	s.scheduleLocked(n)

	return s.commitLocked()
}

// AddMany prepends the whole batch, keeping the batch's own order.
func (s *Store) AddMany(drafts []Draft) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(drafts) == 0 {
		return s.snapshotLocked()
	}

	batch := make([]*Notification, 0, len(drafts)+len(s.notifications))
	for _, draft := range drafts {
		n := s.newLocked(draft)
		batch = append(batch, n)
		s.unread++
		s.scheduleLocked(n)
	}

	s.notifications = append(batch, s.notifications...)

	return s.commitLocked()
}

func (s *Store) MarkAsRead(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, n := s.findLocked(id)
	if n == nil || n.Read {
		return s.snapshotLocked()
	}

	n.Read = true
	s.unread--

	return s.commitLocked()
}

func (s *Store) MarkAllAsRead() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unread == 0 {
		return s.snapshotLocked()
	}

	for _, n := range s.notifications {
		n.Read = true
	}
	s.unread = 0

	return s.commitLocked()
}

func (s *Store) Remove(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeLocked(id) {
		return s.snapshotLocked()
	}

	return s.commitLocked()
}

func (s *Store) Clear() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.expiries {
		s.cancelLocked(id)
	}

	s.notifications = nil
	s.unread = 0

	return s.commitLocked()
}

// ClearRead drops read notifications. The unread count never included them.
func (s *Store) ClearRead() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.notifications[:0]
	removed := 0
	for _, n := range s.notifications {
		if n.Read {
			s.cancelLocked(n.Id)
			removed++
			continue
		}
		kept = append(kept, n)
	}

	if removed == 0 {
		return s.snapshotLocked()
	}

	clear(s.notifications[len(kept):])
	s.notifications = kept

	return s.commitLocked()
}

func (s *Store) Update(id string, patch Patch) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, n := s.findLocked(id)
	if n == nil {
		return s.snapshotLocked()
	}

	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Message != nil {
		n.Message = *patch.Message
	}
	if patch.Kind != nil {
		n.Kind = *patch.Kind
	}
	if patch.Action != nil {
		action := *patch.Action
		n.Action = &action
	}

	if patch.Read != nil && *patch.Read != n.Read {
		n.Read = *patch.Read
		if n.Read {
			s.unread--
		} else {
			s.unread++
		}
	}

	if patch.Duration != nil && *patch.Duration != n.Duration {
		n.Duration = max(*patch.Duration, 0)
		s.cancelLocked(n.Id)
		s.scheduleLocked(n)
	}

	return s.commitLocked()
}

// Watch returns a channel that receives the current state followed by every
// subsequent change. Slow readers only see the latest state. The channel is
// closed once ctx is done.
func (s *Store) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()

		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

func (s *Store) newLocked(draft Draft) *Notification {
	kind := draft.Kind
	if !kind.Valid() {
		kind = KindInfo
	}

	duration := DefaultDuration
	if draft.Duration != nil {
		duration = max(*draft.Duration, 0)
	}

	var action *Action
	if draft.Action != nil {
		a := *draft.Action
		action = &a
	}

	return &Notification{
		Id:         gonanoid.Must(),
		Title:      draft.Title,
		Message:    draft.Message,
		Kind:       kind,
		CreateTime: s.clock.Now(),
		Duration:   duration,
		Action:     action,
	}
}

func (s *Store) findLocked(id string) (int, *Notification) {
	for i, n := range s.notifications {
		if n.Id == id {
			return i, n
		}
	}

	return -1, nil
}

func (s *Store) removeLocked(id string) bool {
	i, n := s.findLocked(id)
	if n == nil {
		return false
	}

	if !n.Read {
		s.unread--
	}

	s.cancelLocked(id)
	s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)

	return true
}

func (s *Store) scheduleLocked(n *Notification) {
	if !n.Expires() {
		return
	}

	deadline := n.CreateTime.Add(n.Duration + ExpiryGrace)
	wait := max(deadline.Sub(s.clock.Now()), 0)

	id := n.Id
	e := &expiry{}
	e.timer = s.clock.AfterFunc(wait, func() {
		s.expire(id, e)
	})
	s.expiries[id] = e
}

func (s *Store) cancelLocked(id string) {
	e, ok := s.expiries[id]
	if !ok {
		return
	}

	e.timer.Stop()
	delete(s.expiries, id)
}

func (s *Store) expire(id string, e *expiry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A rescheduled or already removed notification owns a different entry.
	if s.expiries[id] != e {
		return
	}

	if !s.removeLocked(id) {
		return
	}

	s.logger.Debug("notification expired", zap.String("notificationId", id))

	s.commitLocked()
}

func (s *Store) commitLocked() State {
	s.revision++
	state := s.snapshotLocked()

	for ch := range s.watchers {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}

	return state
}

func (s *Store) snapshotLocked() State {
	notifications := make([]Notification, len(s.notifications))
	for i, n := range s.notifications {
		notifications[i] = n.clone()
	}

	return State{
		Revision:      s.revision,
		Notifications: notifications,
		UnreadCount:   s.unread,
	}
}
