// Package timer arms one-shot, in-memory callbacks keyed by id.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/logger"
	"go.uber.org/zap"
)

// Callback runs when a timer fires. ctx is cancelled only when Stop gives up
// waiting for running callbacks.
type Callback func(ctx context.Context, id string)

type armed struct {
	t *time.Timer
}

// Engine owns every pending timer of the process. The zero value is not usable; use New.
type Engine struct {
	lateFire bool
	now      func() time.Time
	log      *zap.Logger

	mu      sync.Mutex
	timers  map[string]*armed
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Engine)

// WithLateFire controls what happens to a fire time already in the past:
// fire immediately (true, the default) or drop the arm.
func WithLateFire(on bool) Option {
	return func(e *Engine) { e.lateFire = on }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = logger.OrNop(l) }
}

func New(opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		lateFire: true,
		now:      time.Now,
		log:      zap.NewNop(),
		timers:   make(map[string]*armed),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Arm schedules fn for fireAt, replacing any timer already armed under id.
// It returns false when nothing was armed: the engine is stopped, or fireAt
// has passed and late firing is off.
func (e *Engine) Arm(id string, fireAt time.Time, fn Callback) bool {
	delay := fireAt.Sub(e.now())
	if delay <= 0 {
		if !e.lateFire {
			e.log.Warn("dropping overdue timer", zap.String("id", id), zap.Time("fire_at", fireAt))
			return false
		}
		delay = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return false
	}

	if old, ok := e.timers[id]; ok {
		old.t.Stop()
	}
	h := &armed{}
	// fire blocks on e.mu until h.t is set and h is in the map
	h.t = time.AfterFunc(delay, func() { e.fire(id, h, fn) })
	e.timers[id] = h
	return true
}

func (e *Engine) fire(id string, h *armed, fn Callback) {
	e.mu.Lock()
	if e.stopped || e.timers[id] != h {
		// cancelled or superseded after the runtime timer already expired
		e.mu.Unlock()
		return
	}
	delete(e.timers, id)
	e.wg.Add(1)
	e.mu.Unlock()

	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("timer callback panicked", zap.String("id", id), zap.Any("panic", r))
		}
	}()
	fn(e.ctx, id)
}

// Cancel disarms id. Unknown, fired and already cancelled ids are a no-op.
func (e *Engine) Cancel(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.timers[id]
	if !ok {
		return false
	}
	h.t.Stop()
	delete(e.timers, id)
	return true
}

// Pending is the number of armed timers that have not fired yet.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// Stop disarms everything and waits for running callbacks. When ctx expires
// first, the callback context is cancelled and ctx's error returned.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.stopped {
		e.stopped = true
		for id, h := range e.timers {
			h.t.Stop()
			delete(e.timers, id)
		}
	}
	e.mu.Unlock()
	defer e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
