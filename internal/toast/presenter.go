package toast

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/goevery/courier/internal/notification"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	MaxVisible   = 3
	TickInterval = 100 * time.Millisecond
	ExitDelay    = notification.ExpiryGrace
)

type Remover interface {
	Remove(id string) notification.State
}

type Toast struct {
	Notification notification.Notification `json:"notification"`
	Visible      bool                      `json:"visible"`
	Progress     float64                   `json:"progress"`
}

type entry struct {
	notification notification.Notification
	visible      bool
	progress     float64
	step         float64
	exiting      bool
	removed      bool

	timer  clockwork.Timer
	ticker clockwork.Ticker
	done   chan struct{}
}

func (e *entry) stopTicker() {
	if e.ticker == nil {
		return
	}

	e.ticker.Stop()
	e.ticker = nil
	close(e.done)
}

func (e *entry) cancel() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	e.stopTicker()
}

// Presenter shows the newest notifications as toasts. Every toast counts
// down its notification's duration, then hides and asks the remover to drop
// the notification once the exit animation is over.
type Presenter struct {
	logger  *zap.Logger
	clock   clockwork.Clock
	remover Remover

	mu     sync.Mutex
	toasts map[string]*entry
	order  []string
}

func NewPresenter(logger *zap.Logger, clock clockwork.Clock, remover Remover) *Presenter {
	return &Presenter{
		logger:  logger,
		clock:   clock,
		remover: remover,
		toasts:  make(map[string]*entry),
	}
}

func (p *Presenter) Run(ctx context.Context, states <-chan notification.State) {
	defer p.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}

			p.Render(state)
		}
	}
}

// Render reconciles the toasts with the newest notifications of state.
func (p *Presenter) Render(state notification.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	newest := state.Newest(MaxVisible)

	order := make([]string, 0, len(newest))
	for _, n := range newest {
		order = append(order, n.Id)
	}

	for id, e := range p.toasts {
		if slices.Contains(order, id) {
			continue
		}

		// A closing toast pushed out by newer notifications still owes the
		// store its removal.
		if _, ok := state.Find(id); ok && e.exiting && !e.removed {
			continue
		}

		e.cancel()
		delete(p.toasts, id)
	}

	for _, n := range newest {
		e, ok := p.toasts[n.Id]
		if !ok {
			p.toasts[n.Id] = p.mountLocked(n, n.Duration)

			continue
		}

		if n.Duration != e.notification.Duration && !e.exiting && !e.removed {
			e.cancel()
			p.toasts[n.Id] = p.mountLocked(n, n.CreateTime.Add(n.Duration).Sub(p.clock.Now()))

			continue
		}

		e.notification = n
	}

	p.order = order
}

// Close hides the toast immediately and removes its notification after the
// exit delay.
func (p *Presenter) Close(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.toasts[id]
	if !ok || e.exiting || e.removed {
		return false
	}

	p.exitLocked(id, e)

	return true
}

func (p *Presenter) Toasts() []Toast {
	p.mu.Lock()
	defer p.mu.Unlock()

	toasts := make([]Toast, 0, len(p.order))
	for _, id := range p.order {
		e, ok := p.toasts[id]
		if !ok || e.removed {
			continue
		}

		toasts = append(toasts, Toast{
			Notification: e.notification,
			Visible:      e.visible,
			Progress:     e.progress,
		})
	}

	return toasts
}

func (p *Presenter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, e := range p.toasts {
		e.cancel()
		delete(p.toasts, id)
	}

	p.order = nil
}

// mountLocked shows n with remaining time left on its countdown.
func (p *Presenter) mountLocked(n notification.Notification, remaining time.Duration) *entry {
	e := &entry{
		notification: n,
		visible:      true,
		progress:     100,
	}

	if !n.Expires() {
		return e
	}

	remaining = min(max(remaining, 0), n.Duration)

	id := n.Id
	e.progress = 100 * float64(remaining) / float64(n.Duration)
	e.step = 100 / (float64(n.Duration) / float64(TickInterval))
	e.timer = p.clock.AfterFunc(remaining, func() {
		p.expire(id, e)
	})
	e.ticker = p.clock.NewTicker(TickInterval)
	e.done = make(chan struct{})

	go p.tick(id, e, e.ticker.Chan(), e.done)

	return e
}

func (p *Presenter) tick(id string, e *entry, ticks <-chan time.Time, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticks:
			p.mu.Lock()
			if p.toasts[id] == e && !e.exiting {
				e.progress = max(e.progress-e.step, 0)
			}
			p.mu.Unlock()
		}
	}
}

func (p *Presenter) expire(id string, e *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.toasts[id] != e || e.exiting {
		return
	}

	p.exitLocked(id, e)
}

func (p *Presenter) exitLocked(id string, e *entry) {
	e.cancel()
	e.visible = false
	e.exiting = true
	e.timer = p.clock.AfterFunc(ExitDelay, func() {
		p.dismiss(id, e)
	})
}

func (p *Presenter) dismiss(id string, e *entry) {
	p.mu.Lock()
	if p.toasts[id] != e || e.removed {
		p.mu.Unlock()
		return
	}

	// The entry stays until a render no longer lists the notification, so a
	// stale state cannot mount it again.
	e.removed = true
	e.timer = nil
	p.mu.Unlock()

	p.logger.Debug("toast dismissed", zap.String("notificationId", id))

	p.remover.Remove(id)
}
