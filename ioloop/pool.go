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

// Package ioloop implements the fixed-size I/O worker pool:
// a set of independent event loops, each a goroutine draining its own task
// queue, handed out to new sessions round-robin so a session's socket
// work always lands on the same loop for its whole lifetime.
package ioloop

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the per-loop task queue depth.
const DefaultQueueSize = 256

// Loop is a single worker: a goroutine draining tasks posted to it, in
// order, one at a time.
type Loop struct {
	tasks chan func()
}

func newLoop(queueSize int) *Loop {
	return &Loop{tasks: make(chan func(), queueSize)}
}

func (l *Loop) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for fn := range l.tasks {
		fn()
	}
}

// Post schedules fn to run on this loop. Callers on the loop's own
// goroutine must not call Post synchronously in a way that would deadlock
// a full queue; Post blocks until there is room.
func (l *Loop) Post(fn func()) {
	l.tasks <- fn
}

func (l *Loop) stop() {
	close(l.tasks)
}

// Pool is a fixed set of Loops, acquired round-robin.
type Pool struct {
	loops []*Loop
	next  uint64

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// New starts n loops, each with queueSize buffered task slots, and returns
// the Pool that dispatches across them.
func New(n int, queueSize int) *Pool {
	if n <= 0 {
		n = 1
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	p := &Pool{loops: make([]*Loop, n)}
	for i := range p.loops {
		p.loops[i] = newLoop(queueSize)
	}

	p.wg.Add(n)
	for i := range p.loops {
		go p.loops[i].run(&p.wg)
	}

	return p
}

// Acquire returns the next Loop in round-robin order. Safe for concurrent
// use by acceptor goroutines handing off freshly accepted connections.
func (p *Pool) Acquire() *Loop {
	idx := atomic.AddUint64(&p.next, 1) - 1
	return p.loops[idx%uint64(len(p.loops))]
}

// Size reports the number of loops in the pool.
func (p *Pool) Size() int {
	return len(p.loops)
}

// Stop closes every loop's queue and waits for all worker goroutines to
// drain and exit. Safe to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for _, l := range p.loops {
		l.stop()
	}
	p.wg.Wait()
}
