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

package dispatcher_test

import (
	"net"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/imcore/dispatcher"
	"github.com/nabbar/imcore/frame"
	"github.com/nabbar/imcore/ioloop"
	"github.com/nabbar/imcore/session"
)

func TestDispatcher(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "dispatcher suite")
}

type noopHandler struct{}

func (noopHandler) OnFrame(*session.Session, frame.Frame) {}
func (noopHandler) OnClose(*session.Session)              {}

func newTestSession(pool *ioloop.Pool) *session.Session {
	srv, _ := net.Pipe()
	return session.New("t", srv, pool.Acquire(), frame.DefaultMaxBody, noopHandler{})
}

var _ = Describe("Dispatcher", func() {
	It("dispatches frames to the handler registered for their message id, in order", func() {
		d := dispatcher.New(8, nil)

		var mu sync.Mutex
		var seen []uint16
		done := make(chan struct{}, 8)

		d.Register(1, func(_ *session.Session, f frame.Frame) {
			mu.Lock()
			seen = append(seen, f.ID)
			mu.Unlock()
			done <- struct{}{}
		})
		d.Register(2, func(_ *session.Session, f frame.Frame) {
			mu.Lock()
			seen = append(seen, f.ID)
			mu.Unlock()
			done <- struct{}{}
		})
		d.Start()
		defer d.Stop()

		pool := ioloop.New(1, 4)
		defer pool.Stop()
		s := newTestSession(pool)

		d.Post(s, frame.Frame{ID: 1, Body: []byte("a")})
		d.Post(s, frame.Frame{ID: 2, Body: []byte("b")})
		d.Post(s, frame.Frame{ID: 1, Body: []byte("c")})

		for i := 0; i < 3; i++ {
			Eventually(done, time.Second).Should(Receive())
		}

		mu.Lock()
		defer mu.Unlock()
		Expect(seen).To(Equal([]uint16{1, 2, 1}))
	})

	It("logs and drops a frame with no registered handler instead of panicking", func() {
		d := dispatcher.New(8, nil)
		d.Start()
		defer d.Stop()

		pool := ioloop.New(1, 4)
		defer pool.Stop()
		s := newTestSession(pool)

		Expect(func() {
			d.Post(s, frame.Frame{ID: 999})
		}).NotTo(Panic())
	})

	It("drains the backlog before Stop returns", func() {
		d := dispatcher.New(8, nil)

		var processed int32
		var mu sync.Mutex
		d.Register(5, func(_ *session.Session, _ frame.Frame) {
			mu.Lock()
			processed++
			mu.Unlock()
		})
		d.Start()

		pool := ioloop.New(1, 4)
		defer pool.Stop()
		s := newTestSession(pool)

		for i := 0; i < 5; i++ {
			d.Post(s, frame.Frame{ID: 5})
		}

		d.Stop()

		mu.Lock()
		defer mu.Unlock()
		Expect(processed).To(Equal(int32(5)))
	})

	It("panics if Register is called after Start", func() {
		d := dispatcher.New(8, nil)
		d.Start()
		defer d.Stop()

		Expect(func() {
			d.Register(1, func(*session.Session, frame.Frame) {})
		}).To(Panic())
	})
})
