package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolClosed is returned by WithSession after Close has been called.
var ErrPoolClosed = errors.New("session pool is closed")

// Pool bounds the number of concurrently live browser sessions. Excess
// requests queue and are served strictly in FIFO order. Every session is torn
// down after its task finishes, on every exit path.
type Pool struct {
	launcher Launcher
	logger   *slog.Logger

	mu        sync.Mutex
	active    int
	maxActive int
	waiters   []chan struct{}
	closed    bool
}

// Stats is a snapshot of pool occupancy.
type Stats struct {
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
	Max     int `json:"max"`
}

// NewPool creates a pool that allows at most maxConcurrent simultaneous
// sessions.
func NewPool(launcher Launcher, maxConcurrent int, logger *slog.Logger) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		launcher:  launcher,
		maxActive: maxConcurrent,
		logger:    logger,
	}
}

// WithSession acquires pool capacity, launches a session, runs fn with it and
// guarantees teardown. If the launcher fails, the capacity is released (or
// transferred to the next waiter) and a *LaunchError is returned. Errors from
// fn propagate unchanged.
func (p *Pool) WithSession(ctx context.Context, fn func(ctx context.Context, s Session) error) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}

	s, err := p.launcher.Launch(ctx)
	if err != nil {
		p.release()
		p.logger.Error("Browser session launch failed", "error", err)
		return &LaunchError{Err: err}
	}

	defer func() {
		s.Close()
		p.release()
	}()

	return fn(ctx, s)
}

// acquire takes one unit of capacity, blocking FIFO behind earlier waiters
// when the pool is full.
func (p *Pool) acquire(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.active < p.maxActive {
		p.active++
		p.mu.Unlock()
		return nil
	}

	ready := make(chan struct{}, 1)
	p.waiters = append(p.waiters, ready)
	waiting := len(p.waiters)
	p.mu.Unlock()

	p.logger.Debug("Session pool at capacity, queueing", "waiting", waiting)

	select {
	case _, transferred := <-ready:
		if !transferred {
			// Close woke us without a slot transfer.
			return ErrPoolClosed
		}
		// The releaser transferred its slot to us; active already counts it.
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			// The pool closed after the transfer; give the slot back so the
			// active count still drains to zero.
			p.release()
			return ErrPoolClosed
		}
		p.mu.Unlock()
		return nil

	case <-ctx.Done():
		p.mu.Lock()
		for i, w := range p.waiters {
			if w == ready {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return ctx.Err()
			}
		}
		p.mu.Unlock()
		// We were woken concurrently with cancellation and already hold a
		// slot; hand it to the next waiter.
		p.release()
		return ctx.Err()
	}
}

// release frees one unit of capacity. If anyone is queued, the slot transfers
// to the head waiter and exactly that waiter is woken; otherwise the active
// count drops.
func (p *Pool) release() {
	p.mu.Lock()
	if len(p.waiters) > 0 {
		ready := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		ready <- struct{}{}
		return
	}
	if p.active > 0 {
		p.active--
	}
	p.mu.Unlock()
}

// Stats returns current pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:  p.active,
		Waiting: len(p.waiters),
		Max:     p.maxActive,
	}
}

// Close marks the pool closed and wakes all queued waiters, which then fail
// with ErrPoolClosed. In-flight sessions finish normally.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}
