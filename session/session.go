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

// Package session implements the per-connection chat Session: a
// length-prefixed framing state machine over a net.Conn, a send queue that
// keeps exactly one write in flight at a time, and a heartbeat watchdog.
// The read side is realized as one goroutine per session, since
// net.Conn.Read blocks a single OS thread; the write side keeps the
// ioloop.Loop assignment so the single-in-flight write ordering still
// holds.
package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/imcore/frame"
	"github.com/nabbar/imcore/ioloop"
)

// Handler receives events from a Session. OnFrame and OnClose are called
// from the session's own goroutines; implementations that touch shared
// state must do their own enqueue onto a single-threaded consumer (package
// dispatcher) rather than mutate it directly.
type Handler interface {
	OnFrame(s *Session, f frame.Frame)
	OnClose(s *Session)
}

// Session is one accepted TCP connection carrying the chat wire protocol.
type Session struct {
	id   string
	conn net.Conn
	loop *ioloop.Loop
	dec  *frame.Decoder

	uid int64 // atomic, 0 means not yet authenticated

	sendMu    sync.Mutex
	sendQueue [][]byte

	closed    int32
	closeOnce sync.Once

	lastHeartbeat int64 // atomic, unix nano

	handler Handler
}

// New builds a Session bound to conn and loop. StartReading must be called
// to begin processing inbound bytes.
func New(id string, conn net.Conn, loop *ioloop.Loop, maxBody int, h Handler) *Session {
	s := &Session{
		id:      id,
		conn:    conn,
		loop:    loop,
		dec:     frame.NewDecoder(maxBody),
		handler: h,
	}
	s.touch()
	return s
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the authenticated user id bound to this session, or 0.
func (s *Session) UserID() int64 { return atomic.LoadInt64(&s.uid) }

// SetUserID binds this session to uid after a successful login.
func (s *Session) SetUserID(uid int64) { atomic.StoreInt64(&s.uid, uid) }

// IsClosed reports whether Close has run.
func (s *Session) IsClosed() bool { return atomic.LoadInt32(&s.closed) == 1 }

// touch records that data was just received from the peer.
func (s *Session) touch() {
	atomic.StoreInt64(&s.lastHeartbeat, time.Now().UnixNano())
}

// IdleFor reports how long it has been since the last byte was received.
func (s *Session) IdleFor() time.Duration {
	last := atomic.LoadInt64(&s.lastHeartbeat)
	return time.Since(time.Unix(0, last))
}

// StartReading launches the session's reader goroutine.
func (s *Session) StartReading() {
	go s.readLoop()
}

func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.touch()
			frames, ferr := s.dec.Feed(buf[:n])
			for _, f := range frames {
				if s.handler != nil {
					s.handler.OnFrame(s, f)
				}
			}
			if ferr != nil {
				s.Close()
				return
			}
		}
		if err != nil {
			s.Close()
			return
		}
	}
}

// WatchHeartbeat starts a goroutine that closes the session once it has
// been idle longer than timeout, polling at timeout/2.
func (s *Session) WatchHeartbeat(timeout time.Duration) {
	go func() {
		interval := timeout / 2
		if interval <= 0 {
			interval = time.Second
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for range t.C {
			if s.IsClosed() {
				return
			}
			if s.IdleFor() > timeout {
				s.Close()
				return
			}
		}
	}()
}

// Send enqueues f for delivery. If the send queue was empty, a write task
// is posted to the session's assigned loop; otherwise the in-flight write
// will pick this frame up when it finishes, preserving byte-stream order
// without ever holding more than one outstanding Write per session.
func (s *Session) Send(f frame.Frame) {
	if s.IsClosed() {
		return
	}

	data := frame.Encode(f)

	s.sendMu.Lock()
	wasEmpty := len(s.sendQueue) == 0
	s.sendQueue = append(s.sendQueue, data)
	s.sendMu.Unlock()

	if wasEmpty {
		s.loop.Post(s.writeNext)
	}
}

func (s *Session) writeNext() {
	s.sendMu.Lock()
	if len(s.sendQueue) == 0 {
		s.sendMu.Unlock()
		return
	}
	data := s.sendQueue[0]
	s.sendMu.Unlock()

	if _, err := s.conn.Write(data); err != nil {
		s.Close()
		return
	}

	s.sendMu.Lock()
	s.sendQueue = s.sendQueue[1:]
	more := len(s.sendQueue) > 0
	s.sendMu.Unlock()

	if more {
		s.loop.Post(s.writeNext)
	}
}

// Close shuts down the connection and notifies the handler exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.closed, 1)
		_ = s.conn.Close()
		if s.handler != nil {
			s.handler.OnClose(s)
		}
	})
}
