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
	"github.com/nabbar/imcore/dal"
	"github.com/nabbar/imcore/gate"
	"github.com/nabbar/imcore/logger"
	"github.com/nabbar/imcore/rpcpool"
	"github.com/nabbar/imcore/varifyclient"
)

// GateApp wires the Gate HTTP service: a DAL store, an RPC pool reaching
// Status and the verification service, and the gate.Server built over both.
type GateApp struct {
	Config  config.Config
	Log     logger.Logger
	Store   *dal.Store
	RPC     *rpcpool.Pool
	Varify  *varifyclient.Client
	Server  *gate.Server
	Metrics *Metrics
}

// NewGateApp opens the DAL store and RPC pool described by cfg and
// constructs the Gate server over them.
func NewGateApp(ctx context.Context, cfg config.Config, log logger.Logger) (*GateApp, error) {
	store, err := dal.Open(ctx, cfg.DSN(), cfg.ChatServer.PoolSize, log)
	if err != nil {
		return nil, fmt.Errorf("appctx: open dal store: %w", err)
	}

	rpc, err := rpcpool.New(ctx, cfg.RPC.URL, cfg.RPC.PoolSize)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("appctx: open rpc pool: %w", err)
	}

	varify := varifyclient.New(rpc)
	srv := gate.New(store, varify, rpc)

	m := NewMetrics()
	m.SetSampler(func() {
		m.SetPoolOccupancy("dal", store.Outstanding())
		m.SetPoolOccupancy("rpc", rpc.Outstanding())
	})

	return &GateApp{
		Config:  cfg,
		Log:     log,
		Store:   store,
		RPC:     rpc,
		Varify:  varify,
		Server:  srv,
		Metrics: m,
	}, nil
}

// Close releases the RPC pool and DAL store, in that order.
func (a *GateApp) Close() {
	a.RPC.Close()
	a.Store.Close()
}
