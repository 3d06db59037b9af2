package transport

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrNoHealthy = errors.New("no healthy providers")
	ErrNoAcquire = errors.New("provider not acquired")
)

// Sender is what the reminder and reply flows depend on.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Pool spreads sends round-robin over providers whose breaker is ready.
// Each Send makes exactly one provider attempt.
type Pool struct {
	providers         []Provider
	roundRobinCounter atomic.Uint64
}

func NewPool(provs ...Provider) *Pool {
	return &Pool{providers: provs}
}

func (p *Pool) selectProvider() (Provider, error) {
	healthy := make([]Provider, 0, len(p.providers))
	for _, pr := range p.providers {
		if pr.Ready() {
			healthy = append(healthy, pr)
		}
	}

	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := p.roundRobinCounter.Add(1)
	idx := int((x - 1) % uint64(len(healthy)))

	return healthy[idx], nil
}

func (p *Pool) Send(ctx context.Context, msg Message) (string, error) {
	pr, err := p.selectProvider()
	if err != nil {
		return "", err
	}
	if !pr.Acquire() {
		return "", ErrNoAcquire
	}
	return pr.Send(ctx, msg)
}

// Providers lists provider names with their readiness.
func (p *Pool) Providers() map[string]bool {
	out := make(map[string]bool, len(p.providers))
	for _, pr := range p.providers {
		out[pr.Name()] = pr.Ready()
	}
	return out
}
