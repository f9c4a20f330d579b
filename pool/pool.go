/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package pool implements a generic, bounded, thread-safe resource pool: a
// factory builds handles, a healthcheck predicate validates them on a
// maintenance cadence, and the pool never holds its internal lock across a
// network operation. It is instantiated twice in this module (*gorm.DB in
// package dal, *nats.Conn in package rpcpool) instead of being duplicated
// per backend. maintainOnce follows a snapshot-then-process pattern: it
// takes the number of idle handles under the lock, then pops and probes
// them one at a time without holding it.
package pool

import (
	"context"
	"sync"
	"time"

	liberr "github.com/nabbar/imcore/errors"
)

func init() {
	liberr.RegisterMessage(errPoolClosed.Code(), "resource pool is closed")
}

// errPoolClosed is returned by Acquire once the pool has been closed.
var errPoolClosed = liberr.New(liberr.MinPkgPool + 1)

// ErrClosedCode is the code carried by errPoolClosed, exported for callers that
// want to branch on it without string matching.
var ErrClosedCode = errPoolClosed.Code()

// Factory builds one fresh handle.
type Factory[T any] func(ctx context.Context) (T, error)

// HealthCheck performs a cheap liveness probe against a handle (e.g.
// `SELECT 1`, or a NATS ping). It must not be called while the pool's
// internal lock is held.
type HealthCheck[T any] func(ctx context.Context, h T) bool

// CloseFunc releases a handle that failed its health check.
type CloseFunc[T any] func(h T)

// Pool is a bounded set of reusable handles of type T.
type Pool[T comparable] struct {
	mu   sync.Mutex
	cond *sync.Cond

	avail  []T
	lastOp map[T]int64

	outstanding int
	size        int
	closed      bool
	staleTime   time.Duration

	factory Factory[T]
	health  HealthCheck[T]
	closeFn CloseFunc[T]
}

// SetStaleAfter overrides the idle duration that triggers a health probe.
// Production callers leave the 5s default; tests use a shorter window so
// maintenance passes are observable without real delay.
func (p *Pool[T]) SetStaleAfter(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staleTime = d
}

// DefaultStaleAfter is the minimum idle time since a handle was last
// released before it is re-probed during maintenance.
const DefaultStaleAfter = 5 * time.Second

// New builds a Pool of size handles using factory. If factory fails for any
// of the initial handles, every handle built so far is discarded and the
// error is returned.
func New[T comparable](ctx context.Context, size int, factory Factory[T], health HealthCheck[T], closeFn CloseFunc[T]) (*Pool[T], error) {
	p := &Pool[T]{
		size:      size,
		lastOp:    make(map[T]int64, size),
		factory:   factory,
		health:    health,
		closeFn:   closeFn,
		staleTime: DefaultStaleAfter,
	}
	p.cond = sync.NewCond(&p.mu)

	now := time.Now().UnixNano()
	for i := 0; i < size; i++ {
		h, err := factory(ctx)
		if err != nil {
			for _, built := range p.avail {
				if closeFn != nil {
					closeFn(built)
				}
			}
			return nil, err
		}
		p.avail = append(p.avail, h)
		p.lastOp[h] = now
	}

	return p, nil
}

// Acquire blocks until a handle is available or the pool is closed. FIFO
// fairness across waiters is not guaranteed.
func (p *Pool[T]) Acquire() (T, liberr.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.avail) == 0 && !p.closed {
		p.cond.Wait()
	}

	var zero T
	if p.closed {
		return zero, errPoolClosed
	}

	h := p.avail[len(p.avail)-1]
	p.avail = p.avail[:len(p.avail)-1]
	p.outstanding++

	return h, nil
}

// Release returns h to the pool, unless the pool has been closed, in which
// case h is dropped (and closed, if a CloseFunc was configured).
func (p *Pool[T]) Release(h T) {
	p.mu.Lock()

	p.outstanding--
	if p.closed {
		p.mu.Unlock()
		if p.closeFn != nil {
			p.closeFn(h)
		}
		return
	}

	p.lastOp[h] = time.Now().UnixNano()
	p.avail = append(p.avail, h)
	p.cond.Signal()
	p.mu.Unlock()
}

// Close marks the pool closed and wakes every blocked Acquire, which then
// returns the closed sentinel. Outstanding handles are returned normally by
// their callers' Release and are dropped at that point.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.cond.Broadcast()

	if p.closeFn != nil {
		for _, h := range p.avail {
			p.closeFn(h)
		}
	}
	p.avail = nil
}

// Available reports the current number of idle handles. For tests only.
func (p *Pool[T]) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.avail)
}

// Outstanding reports the number of handles currently on loan.
func (p *Pool[T]) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}

// RunMaintenance runs the health-check/reconnect pass on interval until ctx
// is done. Call it in its own goroutine; interval should be >= 60s in
// production (tests use a much shorter interval).
func (p *Pool[T]) RunMaintenance(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.maintainOnce(ctx)
		}
	}
}

// maintainOnce is one health-check/reconnect pass: a snapshot of the
// current pool size is taken before popping, at most that many handles are
// processed, and the handle is popped, released from the lock, probed, then
// re-locked to push — never holding the lock across the probe or the
// reconnect factory call.
func (p *Pool[T]) maintainOnce(ctx context.Context) {
	p.mu.Lock()
	target := len(p.avail)
	p.mu.Unlock()

	failed := 0
	now := time.Now().UnixNano()

	p.mu.Lock()
	stale := p.staleTime
	p.mu.Unlock()

	for i := 0; i < target; i++ {
		p.mu.Lock()
		if len(p.avail) == 0 {
			p.mu.Unlock()
			break
		}
		h := p.avail[0]
		p.avail = p.avail[1:]
		last := p.lastOp[h]
		delete(p.lastOp, h)
		p.mu.Unlock()

		healthy := true
		if time.Duration(now-last) >= stale {
			healthy = p.health(ctx, h) // network I/O, lock not held
			if healthy {
				last = now
			}
		}

		if healthy {
			p.mu.Lock()
			p.lastOp[h] = last
			p.avail = append(p.avail, h)
			p.cond.Signal()
			p.mu.Unlock()
		} else {
			failed++
			if p.closeFn != nil {
				p.closeFn(h)
			}
		}
	}

	for failed > 0 {
		h, err := p.factory(ctx) // network I/O, lock not held
		if err != nil {
			break // retried next cycle
		}
		p.mu.Lock()
		p.lastOp[h] = time.Now().UnixNano()
		p.avail = append(p.avail, h)
		p.cond.Signal()
		p.mu.Unlock()
		failed--
	}
}

// MaintainNow runs one synchronous health-check/reconnect pass, useful for
// tests that don't want to wait out a RunMaintenance ticker.
func (p *Pool[T]) MaintainNow(ctx context.Context) {
	p.maintainOnce(ctx)
}
