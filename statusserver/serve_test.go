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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	natsrv "github.com/nats-io/nats-server/v2/server"

	"github.com/nabbar/imcore/rpcpool"
	"github.com/nabbar/imcore/statusserver"
)

var _ = Describe("Status.Serve", func() {
	It("answers GetChatServer over NATS and absorbs Chat-instance heartbeats into the registry", func() {
		opts := &natsrv.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true}
		srv, err := natsrv.NewServer(opts)
		Expect(err).NotTo(HaveOccurred())
		go srv.Start()
		Expect(srv.ReadyForConnections(2 * time.Second)).To(BeTrue())
		defer srv.Shutdown()

		pool, err := rpcpool.New(context.Background(), srv.ClientURL(), 2)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		reg := statusserver.NewRegistry()
		cache := newFakeCache()
		st := statusserver.New(reg, cache)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = st.Serve(ctx, pool) }()

		// give the three subscriptions time to register before publishing
		Eventually(func() error {
			return pool.Notify(rpcpool.SubjectChatHeartbeat, statusserver.HeartbeatRequest{
				Name: "chat-1", Host: "127.0.0.1", Port: 9100, Load: 2,
			})
		}).Should(Succeed())

		Eventually(func() (string, error) {
			inst, err := reg.LeastLoaded()
			return inst.Name, err
		}, 2*time.Second, 20*time.Millisecond).Should(Equal("chat-1"))

		var reply struct {
			Host  string `json:"host"`
			Port  int    `json:"port"`
			Token string `json:"token"`
			Error int    `json:"error"`
		}
		reqCtx, reqCancel := context.WithTimeout(context.Background(), rpcpool.DefaultTimeout)
		defer reqCancel()
		Expect(pool.Request(reqCtx, rpcpool.SubjectGetChatServer, struct {
			UID int64 `json:"uid"`
		}{UID: 55}, &reply)).To(Succeed())

		Expect(reply.Error).To(Equal(0))
		Expect(reply.Host).To(Equal("127.0.0.1"))
		Expect(reply.Port).To(Equal(9100))
		Expect(reply.Token).NotTo(BeEmpty())
	})
})
