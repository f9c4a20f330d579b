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

// Package appctx wires together every subsystem one binary needs into a
// single constructed-once struct (GateApp, StatusApp, ChatApp), replacing
// the package-level singletons a smaller program might reach for. It also
// owns the prometheus gauges shared by all three binaries and the small
// HTTP handler that exposes them.
package appctx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gauges sampled just before each /metrics scrape. There
// is no push path: a handler installed by Handler() calls the sampler set
// by SetSampler immediately before delegating to the Prometheus registry's own exposition
// format.
type Metrics struct {
	reg *prometheus.Registry

	poolOccupancy   *prometheus.GaugeVec
	dispatchBacklog prometheus.Gauge
	sessionCount    prometheus.Gauge

	sample func()
}

// NewMetrics builds an empty Metrics with its gauges registered but not yet
// wired to a live sampling function; call SetSampler before serving.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		poolOccupancy: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "imcore",
			Name:      "pool_outstanding",
			Help:      "Handles currently on loan from a resource pool.",
		}, []string{"pool"}),
		dispatchBacklog: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "imcore",
			Name:      "dispatcher_queue_depth",
			Help:      "Frames currently queued for dispatch.",
		}),
		sessionCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "imcore",
			Name:      "chat_open_sessions",
			Help:      "TCP sessions currently tracked by this chat instance.",
		}),
	}
	m.sample = func() {}
	return m
}

// SetSampler installs fn, called on every scrape to refresh the gauges from
// live subsystem state before the registry renders its response.
func (m *Metrics) SetSampler(fn func()) {
	if fn != nil {
		m.sample = fn
	}
}

// SetPoolOccupancy records outstanding handles for the named pool (e.g.
// "dal", "rpc").
func (m *Metrics) SetPoolOccupancy(pool string, outstanding int) {
	m.poolOccupancy.WithLabelValues(pool).Set(float64(outstanding))
}

// SetDispatchBacklog records the dispatcher's current queue depth.
func (m *Metrics) SetDispatchBacklog(depth int) {
	m.dispatchBacklog.Set(float64(depth))
}

// SetSessionCount records the number of sessions currently tracked locally.
func (m *Metrics) SetSessionCount(n int) {
	m.sessionCount.Set(float64(n))
}

// Handler returns the /metrics HTTP handler, sampling live state on every
// request before rendering the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.sample()
		inner.ServeHTTP(w, r)
	})
}
