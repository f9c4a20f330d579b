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

package appctx

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nabbar/imcore/chatserver"
	"github.com/nabbar/imcore/config"
	"github.com/nabbar/imcore/dal"
	"github.com/nabbar/imcore/dispatcher"
	"github.com/nabbar/imcore/ioloop"
	"github.com/nabbar/imcore/logger"
	"github.com/nabbar/imcore/rpcpool"
	"github.com/nabbar/imcore/sessioncache"
	"github.com/nabbar/imcore/statusserver"
	"github.com/nabbar/imcore/usermanager"
)

// DefaultHeartbeatInterval is how often a Chat instance reports its open
// session count to the Status placement service.
const DefaultHeartbeatInterval = 10 * time.Second

// ChatApp wires the Chat TCP service: the I/O pool, the logic dispatcher,
// the local user manager, the DAL store, and the chatserver.Server tying
// them to an accepted-connection listener.
type ChatApp struct {
	Config config.Config
	Log    logger.Logger

	Store *dal.Store
	Cache sessioncache.Store
	UM    *usermanager.Manager
	IO    *ioloop.Pool
	D     *dispatcher.Dispatcher
	RPC   *rpcpool.Pool

	Server *chatserver.Server

	Metrics *Metrics
}

// NewChatApp opens every subsystem a Chat instance needs and listens on
// cfg.SelfServer.Host:Port for incoming client connections.
func NewChatApp(ctx context.Context, cfg config.Config, log logger.Logger) (*ChatApp, error) {
	store, err := dal.Open(ctx, cfg.DSN(), cfg.ChatServer.PoolSize, log)
	if err != nil {
		return nil, fmt.Errorf("appctx: open dal store: %w", err)
	}

	cache, err := sessioncache.Open(cfg.SessionCache.Dir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("appctx: open session cache: %w", err)
	}

	rpc, err := rpcpool.New(ctx, cfg.RPC.URL, cfg.RPC.PoolSize)
	if err != nil {
		_ = cache.Close()
		store.Close()
		return nil, fmt.Errorf("appctx: open rpc pool: %w", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.SelfServer.Host, cfg.SelfServer.Port))
	if err != nil {
		rpc.Close()
		_ = cache.Close()
		store.Close()
		return nil, fmt.Errorf("appctx: listen chat: %w", err)
	}

	um := usermanager.New(cfg.SelfServer.Name, cache)
	io := ioloop.New(cfg.ChatServer.IOLoops, ioloop.DefaultQueueSize)
	d := dispatcher.New(dispatcher.DefaultQueueSize, log)

	srvCfg := chatserver.Config{
		SelfName:         cfg.SelfServer.Name,
		MaxFrameBody:     cfg.ChatServer.MaxFrameBody,
		HeartbeatTimeout: chatserver.DefaultHeartbeatTimeout,
		PersistOffline:   cfg.ChatServer.PersistOffline,
	}
	srv := chatserver.New(ln, io, d, store, um, rpc, srvCfg, log)
	d.Start()

	m := NewMetrics()
	m.SetSampler(func() {
		m.SetPoolOccupancy("dal", store.Outstanding())
		m.SetPoolOccupancy("rpc", rpc.Outstanding())
		m.SetDispatchBacklog(d.QueueDepth())
		m.SetSessionCount(srv.Count())
	})

	return &ChatApp{
		Config:  cfg,
		Log:     log,
		Store:   store,
		Cache:   cache,
		UM:      um,
		IO:      io,
		D:       d,
		RPC:     rpc,
		Server:  srv,
		Metrics: m,
	}, nil
}

// Serve runs the TCP acceptor, the peer-notification subscriber, and the
// periodic heartbeat publisher concurrently, stopping all three as soon as
// any one fails or ctx is cancelled.
func (a *ChatApp) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.Server.Serve)
	g.Go(func() error { return a.Server.ServeNotifications(gctx) })
	g.Go(func() error { return a.heartbeatLoop(gctx) })

	go func() {
		<-gctx.Done()
		a.Server.Shutdown()
	}()

	return g.Wait()
}

func (a *ChatApp) heartbeatLoop(ctx context.Context) error {
	t := time.NewTicker(DefaultHeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			req := statusserver.HeartbeatRequest{
				Name: a.Config.SelfServer.Name,
				Host: a.Config.SelfServer.Host,
				Port: a.Config.SelfServer.Port,
				Load: a.Server.Count(),
			}
			_ = a.RPC.Notify(rpcpool.SubjectChatHeartbeat, req)
		}
	}
}

// Close releases the RPC pool, session cache, and DAL store, in that order.
// The I/O pool and dispatcher are stopped by Server.Shutdown, called from
// Serve's context-cancellation watcher.
func (a *ChatApp) Close() {
	a.RPC.Close()
	_ = a.Cache.Close()
	a.Store.Close()
}
