package transport

import (
	"sync"
	"time"
)

type state int

const (
	closed state = iota
	open
	halfOpen
)

func (s state) String() string {
	switch s {
	case open:
		return "open"
	case halfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker trips after failThreshold consecutive failures and lets a single
// probe through once openFor has elapsed.
type Breaker struct {
	mu               sync.Mutex
	st               state
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
	now              func() time.Time
}

func NewBreaker(threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	return &Breaker{failThreshold: threshold, openFor: openFor, now: time.Now}
}

func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.st {
	case open:
		return !b.now().Before(b.nextTryAt) && !b.probeInFlight
	case halfOpen:
		return !b.probeInFlight
	default:
		return true
	}
}

func (b *Breaker) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case open:
		if !b.now().Before(b.nextTryAt) && !b.probeInFlight {
			b.st = halfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case halfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = closed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == halfOpen {
		b.trip()
		return
	}
	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.st = open
	b.nextTryAt = b.now().Add(b.openFor)
	b.probeInFlight = false
}

// State is exposed for health reporting.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st.String()
}
