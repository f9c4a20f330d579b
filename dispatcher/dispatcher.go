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

// Package dispatcher implements the single-threaded Logic Dispatcher: one
// goroutine drains a FIFO queue of (session, frame) pairs and dispatches
// each to a handler looked up by message id. Handlers are registered once
// at startup and never mutated afterwards, so lookup needs no lock once
// the dispatcher is running. The queue itself is a buffered Go channel
// standing in for a condvar-guarded queue plus callback map.
package dispatcher

import (
	"sync"
	"sync/atomic"

	"github.com/nabbar/imcore/frame"
	"github.com/nabbar/imcore/logger"
	"github.com/nabbar/imcore/session"
)

// DefaultQueueSize is the dispatcher's backlog depth before Post blocks.
const DefaultQueueSize = 1024

// Handler processes one frame for one session. It runs on the dispatcher's
// single goroutine: it must not block on I/O that depends on another frame
// being dispatched, or the whole system stalls.
type Handler func(s *session.Session, f frame.Frame)

// node is one queued unit of work, the Go equivalent of LogicSystem's
// LogicNode.
type node struct {
	session *session.Session
	frame   frame.Frame
}

// Dispatcher owns the message-id -> Handler registry and the single
// consumer goroutine that drains queued frames in arrival order.
type Dispatcher struct {
	queue    chan node
	handlers map[uint16]Handler

	started int32
	stop    chan struct{}
	wg      sync.WaitGroup

	log logger.Logger
}

// New builds a Dispatcher with the given backlog depth. A depth of 0 uses
// DefaultQueueSize.
func New(queueSize int, log logger.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		queue:    make(chan node, queueSize),
		handlers: make(map[uint16]Handler),
		stop:     make(chan struct{}),
		log:      log,
	}
}

// Register binds h to msgID. Must be called before Start; registering after
// Start would race the consumer goroutine's read-only map access and is
// refused.
func (d *Dispatcher) Register(msgID uint16, h Handler) {
	if atomic.LoadInt32(&d.started) == 1 {
		panic("dispatcher: Register called after Start")
	}
	d.handlers[msgID] = h
}

// Start launches the single consumer goroutine. Calling Start more than
// once is a no-op.
func (d *Dispatcher) Start() {
	if !atomic.CompareAndSwapInt32(&d.started, 0, 1) {
		return
	}
	d.wg.Add(1)
	go d.run()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.queue:
			d.dispatch(n)
		case <-d.stop:
			// drain whatever is already queued before exiting, so a
			// shutdown never silently drops a frame that was already
			// accepted by Post.
			for {
				select {
				case n := <-d.queue:
					d.dispatch(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) dispatch(n node) {
	h, ok := d.handlers[n.frame.ID]
	if !ok {
		if d.log != nil {
			d.log.WithFields(logger.Fields{"msg_id": n.frame.ID}).Warn("dispatcher: no handler registered")
		}
		return
	}
	h(n.session, n.frame)
}

// Post enqueues a frame for dispatch. It blocks if the backlog is full,
// applying backpressure to the session's reader goroutine rather than
// dropping work.
func (d *Dispatcher) Post(s *session.Session, f frame.Frame) {
	d.queue <- node{session: s, frame: f}
}

// Stop signals the consumer goroutine to drain the remaining backlog and
// exit, then blocks until it has.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()
}

// QueueDepth reports the number of frames currently queued for dispatch,
// for the backlog-depth gauge exposed on /metrics.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}
