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

// Package statusserver implements the Status RPC surface:
// GetChatServer(uid) -> (host, port, token) and Login(uid, token) -> error.
// Chat-instance placement policy is least-loaded, since each Chat instance
// already reports its own open-connection count as a health/load signal.
package statusserver

import (
	"errors"
	"sync"
	"time"
)

// ErrNoChatInstance is returned when no chat instance is currently
// registered to serve a new placement.
var ErrNoChatInstance = errors.New("statusserver: no chat instance available")

// ChatInstance describes one registered Chat server the Status service can
// place users on.
type ChatInstance struct {
	Name string
	Host string
	Port int
}

type instanceState struct {
	inst     ChatInstance
	load     int
	lastSeen time.Time
}

// Registry tracks the set of live Chat instances and their current load,
// refreshed by periodic heartbeats from each Chat process.
type Registry struct {
	mu      sync.Mutex
	byName  map[string]*instanceState
	maxIdle time.Duration
}

// DefaultHeartbeatTimeout bounds how long a Chat instance can go without a
// heartbeat before it's excluded from new placements.
const DefaultHeartbeatTimeout = 15 * time.Second

// NewRegistry builds an empty Registry using the default heartbeat timeout.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*instanceState), maxIdle: DefaultHeartbeatTimeout}
}

// Heartbeat registers inst if unseen, and records its current load and the
// time of this call.
func (r *Registry) Heartbeat(inst ChatInstance, load int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.byName[inst.Name]
	if !ok {
		st = &instanceState{}
		r.byName[inst.Name] = st
	}
	st.inst = inst
	st.load = load
	st.lastSeen = time.Now()
}

// Remove drops an instance from the registry, e.g. on graceful shutdown.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
}

// LeastLoaded returns the live instance with the smallest reported load.
// Instances silent for longer than the heartbeat timeout are ignored.
func (r *Registry) LeastLoaded() (ChatInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *instanceState
	cutoff := time.Now().Add(-r.maxIdle)
	for _, st := range r.byName {
		if st.lastSeen.Before(cutoff) {
			continue
		}
		if best == nil || st.load < best.load {
			best = st
		}
	}
	if best == nil {
		return ChatInstance{}, ErrNoChatInstance
	}
	return best.inst, nil
}

// Count reports how many instances are currently registered (live or
// stale).
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}
