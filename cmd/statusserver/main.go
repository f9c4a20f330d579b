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

// Command statusserver runs the Status RPC/placement service: it assigns
// new logins to the least-loaded live Chat instance and later validates the
// one-time token each assignment issues.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nabbar/imcore/appctx"
	"github.com/nabbar/imcore/config"
	"github.com/nabbar/imcore/console"
	"github.com/nabbar/imcore/logger"
)

const version = "0.1.0"
const shutdownGrace = 5 * time.Second

func main() {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "statusserver",
		Short: "Status RPC / placement service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}
	config.RegisterFlags(cmd, v)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(v *viper.Viper) error {
	cfg, err := config.Load(config.Path(v))
	if err != nil {
		return err
	}

	log := logger.New(os.Stdout, logger.ParseLevel(config.LogLevel(v)))

	metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
	console.Banner(os.Stdout, "statusserver", version, fmt.Sprintf("rpc:%s metrics:%s", cfg.RPC.URL, metricsAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := appctx.NewStatusApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("statusserver: startup failed", err)
		return err
	}
	defer app.Close()

	metricsSrv := &http.Server{Addr: metricsAddr, Handler: app.Metrics.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Serve(gctx) })
	g.Go(func() error {
		err := metricsSrv.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})

	go func() {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("statusserver: exited with error", err)
		return err
	}
	return nil
}
