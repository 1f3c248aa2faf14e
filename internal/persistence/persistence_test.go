package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goevery/courier/internal/notification"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Setup(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockEngine) Save(ctx context.Context, n notification.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockEngine) List(ctx context.Context, lastSeenId string, limit int) ([]Record, error) {
	args := m.Called(ctx, lastSeenId, limit)
	return args.Get(0).([]Record), args.Error(1)
}

func withId(id string) any {
	return mock.MatchedBy(func(n notification.Notification) bool {
		return n.Id == id
	})
}

func TestArchiver(t *testing.T) {
	t.Run("saves each notification once, oldest first", func(t *testing.T) {
		engine := &mockEngine{}
		archiver := NewArchiver(zap.NewNop(), engine)

		var order []string
		engine.On("Save", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				order = append(order, args.Get(1).(notification.Notification).Id)
			}).
			Return(nil)

		first := notification.State{Notifications: []notification.Notification{{Id: "b"}, {Id: "a"}}}
		second := notification.State{Notifications: []notification.Notification{{Id: "c"}, {Id: "b"}, {Id: "a"}}}

		saved := archiver.archive(context.Background(), first, map[string]struct{}{})
		archiver.archive(context.Background(), second, saved)

		assert.Equal(t, []string{"a", "b", "c"}, order)
		engine.AssertNumberOfCalls(t, "Save", 3)
	})

	t.Run("retries failed saves while present", func(t *testing.T) {
		engine := &mockEngine{}
		archiver := NewArchiver(zap.NewNop(), engine)

		engine.On("Save", mock.Anything, withId("a")).Return(errors.New("unavailable")).Once()
		engine.On("Save", mock.Anything, withId("a")).Return(nil).Once()

		state := notification.State{Notifications: []notification.Notification{{Id: "a"}}}

		saved := archiver.archive(context.Background(), state, map[string]struct{}{})
		assert.Empty(t, saved)

		saved = archiver.archive(context.Background(), state, saved)
		assert.Contains(t, saved, "a")
		engine.AssertExpectations(t)
	})

	t.Run("forgets removed notifications", func(t *testing.T) {
		engine := &mockEngine{}
		archiver := NewArchiver(zap.NewNop(), engine)
		engine.On("Save", mock.Anything, mock.Anything).Return(nil)

		saved := archiver.archive(context.Background(), notification.State{
			Notifications: []notification.Notification{{Id: "a"}},
		}, map[string]struct{}{})
		saved = archiver.archive(context.Background(), notification.State{}, saved)

		assert.Empty(t, saved)
	})

	t.Run("runs against a store watch", func(t *testing.T) {
		engine := &mockEngine{}
		archiver := NewArchiver(zap.NewNop(), engine)

		archived := make(chan string, 10)
		engine.On("Save", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				archived <- args.Get(1).(notification.Notification).Id
			}).
			Return(nil)

		store := notification.NewStore(zap.NewNop(), clockwork.NewFakeClock())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan struct{})
		go func() {
			archiver.Run(ctx, store.Watch(ctx))
			close(done)
		}()

		state := store.Add(notification.Draft{Title: "Order Confirmed", Message: "Your order is confirmed"})

		select {
		case id := <-archived:
			assert.Equal(t, state.Notifications[0].Id, id)
		case <-time.After(time.Second):
			t.Fatal("notification was not archived")
		}

		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("archiver did not stop")
		}
	})
}
