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

package statusserver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/nats-io/nats.go"

	"github.com/nabbar/imcore/rpcpool"
	"github.com/nabbar/imcore/sessioncache"
)

// ErrTokenInvalid is returned by Login when the presented token does not
// match the one issued for uid, has already been consumed, or has expired.
var ErrTokenInvalid = errTokenInvalid{}

type errTokenInvalid struct{}

func (errTokenInvalid) Error() string { return "statusserver: token invalid or expired" }

// DefaultTokenTTL bounds how long a token issued by GetChatServer remains
// valid for the matching Login call, the same length as DefaultLocationTTL.
const DefaultTokenTTL = 90 * time.Second

// DefaultLocationTTL bounds how long the uid -> instance routing entry
// written on a successful Login stays valid in the shared cache, matching
// the same default usermanager.Manager uses for its own writes.
const DefaultLocationTTL = 90 * time.Second

type issuedToken struct {
	token     string
	instance  string
	expiresAt time.Time
}

// Status answers the Status RPC surface over a Registry of live Chat
// instances and a shared cache of uid -> owning-instance routing entries.
type Status struct {
	mu       sync.Mutex
	tokens   map[int64]issuedToken
	tokenTTL time.Duration

	registry *Registry
	cache    sessioncache.Store
}

// New builds a Status service over reg and cache.
func New(reg *Registry, cache sessioncache.Store) *Status {
	return &Status{
		tokens:   make(map[int64]issuedToken),
		tokenTTL: DefaultTokenTTL,
		registry: reg,
		cache:    cache,
	}
}

type getChatServerRequest struct {
	UID int64 `json:"uid"`
}

type getChatServerReply struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Token string `json:"token"`
	Error int    `json:"error"`
}

// GetChatServer places uid on the least-loaded live Chat instance and
// issues a one-time token the client presents back in its login frame.
func (s *Status) GetChatServer(uid int64) (host string, port int, token string, err error) {
	inst, err := s.registry.LeastLoaded()
	if err != nil {
		return "", 0, "", err
	}

	tok, err := uuid.GenerateUUID()
	if err != nil {
		return "", 0, "", err
	}

	s.mu.Lock()
	s.tokens[uid] = issuedToken{token: tok, instance: inst.Name, expiresAt: time.Now().Add(s.tokenTTL)}
	s.mu.Unlock()

	return inst.Host, inst.Port, tok, nil
}

// HeartbeatRequest is published by each Chat instance on
// rpcpool.SubjectChatHeartbeat to report its current load.
type HeartbeatRequest struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
	Load int    `json:"load"`
}

type loginRequest struct {
	UID   int64  `json:"uid"`
	Token string `json:"token"`
}

type loginReply struct {
	Error int `json:"error"`
}

// Login verifies the token previously issued to uid by GetChatServer. On
// success it records uid's new owning instance in the shared cache and
// consumes the token, so the same token cannot authenticate twice.
func (s *Status) Login(ctx context.Context, uid int64, token string) error {
	s.mu.Lock()
	entry, ok := s.tokens[uid]
	if ok {
		delete(s.tokens, uid)
	}
	s.mu.Unlock()

	if !ok || entry.token != token || time.Now().After(entry.expiresAt) {
		return ErrTokenInvalid
	}

	if s.cache != nil {
		if err := s.cache.SetLocation(ctx, uid, entry.instance, DefaultLocationTTL); err != nil {
			return err
		}
	}
	return nil
}

// Serve subscribes the Status RPC surface's two request subjects and the
// Chat heartbeat subject on pool, replying to each request inline. It
// blocks until ctx is done.
func (s *Status) Serve(ctx context.Context, pool *rpcpool.Pool) error {
	subGet, err := pool.Subscribe(rpcpool.SubjectGetChatServer, func(msg *nats.Msg) {
		var req getChatServerRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			_ = msg.Respond(mustJSON(getChatServerReply{Error: 1}))
			return
		}

		host, port, token, err := s.GetChatServer(req.UID)
		if err != nil {
			_ = msg.Respond(mustJSON(getChatServerReply{Error: 1}))
			return
		}
		_ = msg.Respond(mustJSON(getChatServerReply{Host: host, Port: port, Token: token}))
	})
	if err != nil {
		return err
	}
	defer func() { _ = subGet.Unsubscribe() }()

	subLogin, err := pool.Subscribe(rpcpool.SubjectStatusLogin, func(msg *nats.Msg) {
		var req loginRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			_ = msg.Respond(mustJSON(loginReply{Error: 1}))
			return
		}

		if err := s.Login(context.Background(), req.UID, req.Token); err != nil {
			_ = msg.Respond(mustJSON(loginReply{Error: 1}))
			return
		}
		_ = msg.Respond(mustJSON(loginReply{Error: 0}))
	})
	if err != nil {
		return err
	}
	defer func() { _ = subLogin.Unsubscribe() }()

	subHeartbeat, err := pool.Subscribe(rpcpool.SubjectChatHeartbeat, func(msg *nats.Msg) {
		var req HeartbeatRequest
		if json.Unmarshal(msg.Data, &req) != nil {
			return
		}
		s.registry.Heartbeat(ChatInstance{Name: req.Name, Host: req.Host, Port: req.Port}, req.Load)
	})
	if err != nil {
		return err
	}
	defer func() { _ = subHeartbeat.Unsubscribe() }()

	<-ctx.Done()
	return ctx.Err()
}

func mustJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
