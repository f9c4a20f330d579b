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

package statusserver_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/imcore/statusserver"
)

type fakeCache struct {
	mu  sync.Mutex
	loc map[int64]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{loc: make(map[int64]string)}
}

func (f *fakeCache) SetLocation(_ context.Context, uid int64, instance string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loc[uid] = instance
	return nil
}

func (f *fakeCache) GetLocation(_ context.Context, uid int64) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.loc[uid]
	return inst, ok, nil
}

func (f *fakeCache) ClearLocation(_ context.Context, uid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.loc, uid)
	return nil
}

func (f *fakeCache) Close() error { return nil }

var _ = Describe("Status", func() {
	var reg *statusserver.Registry
	var cache *fakeCache
	var st *statusserver.Status

	BeforeEach(func() {
		reg = statusserver.NewRegistry()
		reg.Heartbeat(statusserver.ChatInstance{Name: "chat-1", Host: "10.0.0.9", Port: 9100}, 3)
		cache = newFakeCache()
		st = statusserver.New(reg, cache)
	})

	It("issues a token from GetChatServer that Login later accepts exactly once", func() {
		host, port, token, err := st.GetChatServer(101)
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("10.0.0.9"))
		Expect(port).To(Equal(9100))
		Expect(token).NotTo(BeEmpty())

		Expect(st.Login(context.Background(), 101, token)).To(Succeed())

		inst, found, err := cache.GetLocation(context.Background(), 101)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(inst).To(Equal("chat-1"))

		// the token is single-use
		Expect(st.Login(context.Background(), 101, token)).To(MatchError(statusserver.ErrTokenInvalid))
	})

	It("rejects Login with a token that was never issued", func() {
		Expect(st.Login(context.Background(), 202, "bogus")).To(MatchError(statusserver.ErrTokenInvalid))
	})

	It("fails GetChatServer when no chat instance is registered", func() {
		empty := statusserver.New(statusserver.NewRegistry(), cache)
		_, _, _, err := empty.GetChatServer(1)
		Expect(err).To(MatchError(statusserver.ErrNoChatInstance))
	})
})
