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

// Package rpcpool realizes an RPC-stub pool: a pool of *nats.Conn handles
// serving both the Status RPC surface (GetChatServer, Login) and the
// chat-internal notify surface (NotifyAddFriend, NotifyAuthFriend,
// NotifyChatMsg), built over NATS request/reply and pub/sub.
package rpcpool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nabbar/imcore/pool"
)

// Subjects used by the RPC surfaces this pool serves.
const (
	SubjectGetChatServer    = "im.status.get_chat_server"
	SubjectStatusLogin      = "im.status.login"
	SubjectChatHeartbeat    = "im.status.chat_heartbeat"
	SubjectNotifyAddFriend  = "im.chat.notify_add_friend"
	SubjectNotifyAuthFriend = "im.chat.notify_auth_friend"
	SubjectNotifyChatMsg    = "im.chat.notify_chat_msg"
	SubjectVarifySend       = "im.varify.send"
	SubjectVarifyCheck      = "im.varify.check"
)

// DefaultTimeout bounds a single request/reply round trip.
const DefaultTimeout = 3 * time.Second

// Pool is a bounded set of NATS connections used for RPC request/reply.
type Pool struct {
	p *pool.Pool[*nats.Conn]
}

// New dials size NATS connections against url.
func New(ctx context.Context, url string, size int) (*Pool, error) {
	p, err := pool.New[*nats.Conn](ctx, size,
		func(context.Context) (*nats.Conn, error) {
			return nats.Connect(url)
		},
		func(_ context.Context, c *nats.Conn) bool {
			return c.Status() == nats.CONNECTED
		},
		func(c *nats.Conn) {
			c.Close()
		},
	)
	if err != nil {
		return nil, fmt.Errorf("rpcpool: dial %s: %w", url, err)
	}
	return &Pool{p: p}, nil
}

// Request marshals req as JSON, sends it on subject, and unmarshals the
// reply into resp. It acquires one connection for the duration of the
// call and releases it before returning, never holding the pool's lock
// across the network round trip (package pool's invariant).
func (p *Pool) Request(ctx context.Context, subject string, req, resp interface{}) error {
	conn, aerr := p.p.Acquire()
	if aerr != nil {
		return aerr
	}
	defer p.p.Release(conn)

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("rpcpool: marshal request: %w", err)
	}

	msg, err := conn.RequestWithContext(ctx, subject, body)
	if err != nil {
		return fmt.Errorf("rpcpool: request %s: %w", subject, err)
	}

	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(msg.Data, resp); err != nil {
		return fmt.Errorf("rpcpool: unmarshal reply from %s: %w", subject, err)
	}
	return nil
}

// Notify marshals req as JSON and publishes it on subject without waiting
// for a reply, for fire-and-forget chat-internal notifications.
func (p *Pool) Notify(subject string, req interface{}) error {
	conn, aerr := p.p.Acquire()
	if aerr != nil {
		return aerr
	}
	defer p.p.Release(conn)

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("rpcpool: marshal notification: %w", err)
	}
	return conn.Publish(subject, body)
}

// Subscribe registers h as the handler for subject's request/reply calls
// on one connection drawn from the pool, used by the RPC server side
// (Status, Chat) to expose its own surface.
func (p *Pool) Subscribe(subject string, h nats.MsgHandler) (*nats.Subscription, error) {
	conn, aerr := p.p.Acquire()
	if aerr != nil {
		return nil, aerr
	}
	defer p.p.Release(conn)
	return conn.Subscribe(subject, h)
}

// Close releases every connection in the pool.
func (p *Pool) Close() {
	p.p.Close()
}

// Outstanding reports the number of *nats.Conn handles currently on loan,
// for the pool-occupancy gauge exposed on /metrics.
func (p *Pool) Outstanding() int {
	return p.p.Outstanding()
}

// RunMaintenance runs the pool's health-check/reconnect pass on interval
// until ctx is done. Call it in its own goroutine.
func (p *Pool) RunMaintenance(ctx context.Context, interval time.Duration) {
	p.p.RunMaintenance(ctx, interval)
}
