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

package rpcpool_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nats-io/nats.go"

	natsrv "github.com/nats-io/nats-server/v2/server"

	"github.com/nabbar/imcore/rpcpool"
)

func TestRPCPool(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "rpcpool suite")
}

func startEmbeddedServer() (*natsrv.Server, string) {
	opts := &natsrv.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true}
	srv, err := natsrv.NewServer(opts)
	Expect(err).NotTo(HaveOccurred())

	go srv.Start()
	Expect(srv.ReadyForConnections(2 * time.Second)).To(BeTrue())

	return srv, srv.ClientURL()
}

type pingRequest struct {
	N int `json:"n"`
}

type pongReply struct {
	N int `json:"n"`
}

var _ = Describe("Pool", func() {
	var srv *natsrv.Server
	var url string

	BeforeEach(func() {
		srv, url = startEmbeddedServer()
	})

	AfterEach(func() {
		srv.Shutdown()
	})

	It("round-trips a request/reply call through Subscribe and Request", func() {
		p, err := rpcpool.New(context.Background(), url, 2)
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		sub, err := p.Subscribe("test.ping", func(msg *nats.Msg) {
			var req pingRequest
			Expect(json.Unmarshal(msg.Data, &req)).To(Succeed())
			body, _ := json.Marshal(pongReply{N: req.N + 1})
			_ = msg.Respond(body)
		})
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = sub.Unsubscribe() }()

		var reply pongReply
		ctx, cancel := context.WithTimeout(context.Background(), rpcpool.DefaultTimeout)
		defer cancel()
		Expect(p.Request(ctx, "test.ping", pingRequest{N: 41}, &reply)).To(Succeed())
		Expect(reply.N).To(Equal(42))
	})

	It("delivers a fire-and-forget Notify to a subscriber", func() {
		p, err := rpcpool.New(context.Background(), url, 2)
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		received := make(chan pingRequest, 1)
		sub, err := p.Subscribe("test.notify", func(msg *nats.Msg) {
			var req pingRequest
			Expect(json.Unmarshal(msg.Data, &req)).To(Succeed())
			received <- req
		})
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = sub.Unsubscribe() }()

		Expect(p.Notify("test.notify", pingRequest{N: 7})).To(Succeed())

		Eventually(received).Should(Receive(Equal(pingRequest{N: 7})))
	})

	It("returns a timeout error when nobody answers the subject", func() {
		p, err := rpcpool.New(context.Background(), url, 1)
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		var reply pongReply
		Expect(p.Request(ctx, "test.nobody", pingRequest{N: 1}, &reply)).To(HaveOccurred())
	})

	It("reports zero Outstanding when no connection is on loan", func() {
		p, err := rpcpool.New(context.Background(), url, 1)
		Expect(err).NotTo(HaveOccurred())

		sub, err := p.Subscribe("test.occupancy", func(msg *nats.Msg) {
			_ = msg.Respond(nil)
		})
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = sub.Unsubscribe() }()

		Expect(p.Outstanding()).To(Equal(0))
		p.Close()
	})
})
