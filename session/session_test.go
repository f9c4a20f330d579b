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

package session_test

import (
	"net"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/imcore/frame"
	"github.com/nabbar/imcore/ioloop"
	"github.com/nabbar/imcore/session"
)

func TestSession(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "session suite")
}

type recorder struct {
	mu     sync.Mutex
	frames []frame.Frame
	closed bool
	done   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{}, 8)}
}

func (r *recorder) OnFrame(_ *session.Session, f frame.Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recorder) OnClose(_ *session.Session) {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]frame.Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]frame.Frame{}, r.frames...)
	return out, r.closed
}

var _ = Describe("Session", func() {
	It("decodes frames arriving in one write and dispatches them to the handler", func() {
		server, client := net.Pipe()
		defer client.Close()

		pool := ioloop.New(1, 4)
		defer pool.Stop()

		rec := newRecorder()
		s := session.New("sess-1", server, pool.Acquire(), frame.DefaultMaxBody, rec)
		s.StartReading()

		go func() {
			_, _ = client.Write(frame.Encode(frame.Frame{ID: 7, Body: []byte("hello")}))
		}()

		Eventually(rec.done, time.Second).Should(Receive())

		frames, _ := rec.snapshot()
		Expect(frames).To(HaveLen(1))
		Expect(frames[0].ID).To(Equal(uint16(7)))
		Expect(frames[0].Body).To(Equal([]byte("hello")))
	})

	It("decodes frames arriving one byte at a time", func() {
		server, client := net.Pipe()
		defer client.Close()

		pool := ioloop.New(1, 4)
		defer pool.Stop()

		rec := newRecorder()
		s := session.New("sess-2", server, pool.Acquire(), frame.DefaultMaxBody, rec)
		s.StartReading()

		wire := frame.Encode(frame.Frame{ID: 3, Body: []byte("ab")})
		go func() {
			for _, b := range wire {
				_, _ = client.Write([]byte{b})
			}
		}()

		Eventually(rec.done, time.Second).Should(Receive())

		frames, _ := rec.snapshot()
		Expect(frames).To(HaveLen(1))
		Expect(frames[0].ID).To(Equal(uint16(3)))
		Expect(frames[0].Body).To(Equal([]byte("ab")))
	})

	It("closes and notifies the handler when the peer hangs up", func() {
		server, client := net.Pipe()

		pool := ioloop.New(1, 4)
		defer pool.Stop()

		rec := newRecorder()
		s := session.New("sess-3", server, pool.Acquire(), frame.DefaultMaxBody, rec)
		s.StartReading()

		_ = client.Close()

		Eventually(func() bool {
			_, closed := rec.snapshot()
			return closed
		}, time.Second).Should(BeTrue())

		Expect(s.IsClosed()).To(BeTrue())
	})

	It("delivers queued sends in order over a single in-flight write", func() {
		server, client := net.Pipe()
		defer server.Close()

		pool := ioloop.New(1, 4)
		defer pool.Stop()

		rec := newRecorder()
		s := session.New("sess-4", server, pool.Acquire(), frame.DefaultMaxBody, rec)

		s.Send(frame.Frame{ID: 1, Body: []byte("a")})
		s.Send(frame.Frame{ID: 2, Body: []byte("b")})
		s.Send(frame.Frame{ID: 3, Body: []byte("c")})

		dec := frame.NewDecoder(frame.DefaultMaxBody)
		var got []frame.Frame
		buf := make([]byte, 64)

		Eventually(func() int {
			_ = client.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
			n, err := client.Read(buf)
			if n > 0 {
				fs, _ := dec.Feed(buf[:n])
				got = append(got, fs...)
			}
			_ = err
			return len(got)
		}, 2*time.Second, 10*time.Millisecond).Should(Equal(3))

		Expect(got[0].ID).To(Equal(uint16(1)))
		Expect(got[1].ID).To(Equal(uint16(2)))
		Expect(got[2].ID).To(Equal(uint16(3)))
	})

	It("closes the session on an oversize frame header without enqueueing it", func() {
		server, client := net.Pipe()
		defer client.Close()

		pool := ioloop.New(1, 4)
		defer pool.Stop()

		rec := newRecorder()
		s := session.New("sess-5", server, pool.Acquire(), 8192, rec)
		s.StartReading()

		hdr := []byte{0x27, 0x0F, 0xFF, 0xFF} // id=9999, len=65535 > 8192
		go func() { _, _ = client.Write(hdr) }()

		Eventually(func() bool {
			_, closed := rec.snapshot()
			return closed
		}, time.Second).Should(BeTrue())

		frames, _ := rec.snapshot()
		Expect(frames).To(BeEmpty())
		Expect(s.IsClosed()).To(BeTrue())
	})

	It("closes a session idle past the heartbeat watchdog timeout", func() {
		server, client := net.Pipe()
		defer client.Close()

		pool := ioloop.New(1, 4)
		defer pool.Stop()

		rec := newRecorder()
		s := session.New("sess-6", server, pool.Acquire(), frame.DefaultMaxBody, rec)
		s.StartReading()
		s.WatchHeartbeat(50 * time.Millisecond)

		Eventually(func() bool {
			_, closed := rec.snapshot()
			return closed
		}, time.Second).Should(BeTrue())
	})
})
