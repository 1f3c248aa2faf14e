package persistence

import (
	"context"
	"time"

	"github.com/goevery/courier/internal/notification"
	"go.uber.org/zap"
)

const DefaultPageSize = 50

type Engine interface {
	Setup(ctx context.Context) error
	Save(ctx context.Context, n notification.Notification) error
	// List returns archived records newest first, starting after lastSeenId
	// when it is not empty.
	List(ctx context.Context, lastSeenId string, limit int) ([]Record, error)
}

type Record struct {
	Id           string                    `json:"id"`
	ArchiveTime  time.Time                 `json:"archiveTime"`
	Notification notification.Notification `json:"notification"`
}

// Archiver copies every notification that shows up in the store into an
// Engine. Delivery is best-effort: a notification added and removed between
// two observed states is never seen, and failed saves are retried only while
// the notification is still present.
type Archiver struct {
	logger      *zap.Logger
	engine      Engine
	saveTimeout time.Duration
}

func NewArchiver(logger *zap.Logger, engine Engine) *Archiver {
	return &Archiver{
		logger:      logger,
		engine:      engine,
		saveTimeout: 5 * time.Second,
	}
}

func (a *Archiver) Run(ctx context.Context, states <-chan notification.State) {
	saved := map[string]struct{}{}

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}

			saved = a.archive(ctx, state, saved)
		}
	}
}

func (a *Archiver) archive(ctx context.Context, state notification.State, saved map[string]struct{}) map[string]struct{} {
	present := make(map[string]struct{}, len(state.Notifications))

	// Oldest first, so the archive order follows creation order.
	for i := len(state.Notifications) - 1; i >= 0; i-- {
		n := state.Notifications[i]

		if _, ok := saved[n.Id]; ok {
			present[n.Id] = struct{}{}
			continue
		}

		if err := a.save(ctx, n); err != nil {
			a.logger.Warn("failed to archive notification",
				zap.String("notificationId", n.Id),
				zap.Error(err))

			continue
		}

		present[n.Id] = struct{}{}
	}

	return present
}

func (a *Archiver) save(ctx context.Context, n notification.Notification) error {
	saveCtx, cancel := context.WithTimeout(ctx, a.saveTimeout)
	defer cancel()

	return a.engine.Save(saveCtx, n)
}
