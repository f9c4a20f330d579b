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

	"github.com/nabbar/imcore/config"
	"github.com/nabbar/imcore/logger"
	"github.com/nabbar/imcore/rpcpool"
	"github.com/nabbar/imcore/sessioncache"
	"github.com/nabbar/imcore/statusserver"
)

// StatusApp wires the Status RPC/placement service: a shared session cache,
// a live-instance Registry, and the Status service answering requests over
// an RPC pool.
type StatusApp struct {
	Config   config.Config
	Log      logger.Logger
	Cache    sessioncache.Store
	Registry *statusserver.Registry
	Status   *statusserver.Status
	RPC      *rpcpool.Pool
	Metrics  *Metrics
}

// NewStatusApp opens the session cache and RPC pool described by cfg and
// constructs the Status service over them.
func NewStatusApp(ctx context.Context, cfg config.Config, log logger.Logger) (*StatusApp, error) {
	cache, err := sessioncache.Open(cfg.SessionCache.Dir)
	if err != nil {
		return nil, fmt.Errorf("appctx: open session cache: %w", err)
	}

	rpc, err := rpcpool.New(ctx, cfg.RPC.URL, cfg.RPC.PoolSize)
	if err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("appctx: open rpc pool: %w", err)
	}

	reg := statusserver.NewRegistry()
	st := statusserver.New(reg, cache)

	m := NewMetrics()
	m.SetSampler(func() {
		m.SetPoolOccupancy("rpc", rpc.Outstanding())
	})

	return &StatusApp{
		Config:   cfg,
		Log:      log,
		Cache:    cache,
		Registry: reg,
		Status:   st,
		RPC:      rpc,
		Metrics:  m,
	}, nil
}

// Serve blocks answering the Status RPC surface until ctx is done.
func (a *StatusApp) Serve(ctx context.Context) error {
	return a.Status.Serve(ctx, a.RPC)
}

// Close releases the RPC pool and session cache, in that order.
func (a *StatusApp) Close() {
	a.RPC.Close()
	_ = a.Cache.Close()
}
