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

package pool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/imcore/pool"
)

// handle is a unique pointer per construction, satisfying the comparable
// constraint the same way *gorm.DB / *nats.Conn would in production.
type handle struct {
	id     int64
	closed int32
}

func newCountingFactory() (pool.Factory[*handle], *int64) {
	var n int64
	return func(_ context.Context) (*handle, error) {
		return &handle{id: atomic.AddInt64(&n, 1)}, nil
	}, &n
}

var _ = Describe("Pool", func() {
	It("conserves the pool size across acquire and release", func() {
		factory, _ := newCountingFactory()
		p, err := pool.New[*handle](context.Background(), 3, factory,
			func(context.Context, *handle) bool { return true },
			func(*handle) {})
		Expect(err).NotTo(HaveOccurred())

		h1, e1 := p.Acquire()
		h2, e2 := p.Acquire()
		h3, e3 := p.Acquire()
		Expect(e1).NotTo(HaveOccurred())
		Expect(e2).NotTo(HaveOccurred())
		Expect(e3).NotTo(HaveOccurred())
		Expect(h1).NotTo(Equal(h2))

		Expect(p.Available()).To(Equal(0))
		Expect(p.Outstanding()).To(Equal(3))

		p.Release(h1)
		p.Release(h2)
		p.Release(h3)

		Expect(p.Available()).To(Equal(3))
		Expect(p.Outstanding()).To(Equal(0))
	})

	It("blocks Acquire until a handle is released", func() {
		factory, _ := newCountingFactory()
		p, err := pool.New[*handle](context.Background(), 1, factory,
			func(context.Context, *handle) bool { return true },
			func(*handle) {})
		Expect(err).NotTo(HaveOccurred())

		h, aerr := p.Acquire()
		Expect(aerr).NotTo(HaveOccurred())

		got := make(chan *handle, 1)
		go func() {
			blocked, _ := p.Acquire()
			got <- blocked
		}()

		Consistently(got, 100*time.Millisecond).ShouldNot(Receive())

		p.Release(h)

		Eventually(got, time.Second).Should(Receive(Equal(h)))
	})

	It("rejects Acquire once Close has been called", func() {
		factory, _ := newCountingFactory()
		p, err := pool.New[*handle](context.Background(), 1, factory,
			func(context.Context, *handle) bool { return true },
			func(*handle) {})
		Expect(err).NotTo(HaveOccurred())

		p.Close()

		_, aerr := p.Acquire()
		Expect(aerr).To(HaveOccurred())
		Expect(aerr.Code()).To(Equal(pool.ErrClosedCode))
	})

	It("drops a released handle through CloseFunc once closed", func() {
		factory, _ := newCountingFactory()
		var closedIDs []int64
		var mu sync.Mutex

		p, err := pool.New[*handle](context.Background(), 1, factory,
			func(context.Context, *handle) bool { return true },
			func(h *handle) {
				mu.Lock()
				closedIDs = append(closedIDs, h.id)
				mu.Unlock()
			})
		Expect(err).NotTo(HaveOccurred())

		h, _ := p.Acquire()
		p.Close()
		p.Release(h)

		mu.Lock()
		defer mu.Unlock()
		Expect(closedIDs).To(ContainElement(h.id))
	})

	It("leaves a healthy, fresh pool untouched by maintenance", func() {
		factory, _ := newCountingFactory()
		probes := int32(0)

		p, err := pool.New[*handle](context.Background(), 2, factory,
			func(context.Context, *handle) bool {
				atomic.AddInt32(&probes, 1)
				return true
			},
			func(*handle) {})
		Expect(err).NotTo(HaveOccurred())

		p.MaintainNow(context.Background())

		Expect(p.Available()).To(Equal(2))
		Expect(atomic.LoadInt32(&probes)).To(Equal(int32(0)))
	})

	It("replaces a handle that fails its health probe once stale", func() {
		factory, created := newCountingFactory()

		p, err := pool.New[*handle](context.Background(), 1, factory,
			func(_ context.Context, h *handle) bool {
				return h.id != 1 // the original handle always fails its probe
			},
			func(h *handle) { atomic.StoreInt32(&h.closed, 1) })
		Expect(err).NotTo(HaveOccurred())

		p.SetStaleAfter(time.Nanosecond)
		time.Sleep(time.Millisecond)

		p.MaintainNow(context.Background())

		Expect(p.Available()).To(Equal(1))
		Expect(atomic.LoadInt64(created)).To(Equal(int64(2)))

		replacement, aerr := p.Acquire()
		Expect(aerr).NotTo(HaveOccurred())
		Expect(replacement.id).To(Equal(int64(2)))
	})

	It("does not hold its lock while a health probe is in flight", func() {
		factory, _ := newCountingFactory()
		release := make(chan struct{})

		p, err := pool.New[*handle](context.Background(), 2, factory,
			func(context.Context, *handle) bool {
				<-release // simulates a slow network probe
				return true
			},
			func(*handle) {})
		Expect(err).NotTo(HaveOccurred())

		p.SetStaleAfter(time.Nanosecond)
		time.Sleep(time.Millisecond)

		done := make(chan struct{})
		go func() {
			p.MaintainNow(context.Background())
			close(done)
		}()

		// If the pool's internal mutex were held across the probe, this
		// Acquire would stall until the probe unblocks.
		acquired := make(chan struct{})
		go func() {
			_, _ = p.Acquire()
			close(acquired)
		}()

		Eventually(acquired, time.Second).Should(BeClosed())

		close(release)
		Eventually(done, time.Second).Should(BeClosed())
	})
})
