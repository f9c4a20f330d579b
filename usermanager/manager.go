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

// Package usermanager implements the User Manager: a local
// uid -> Session map for this chat instance, backed by the shared
// package sessioncache lookup so a message addressed to a uid that is not
// connected here can be forwarded to whichever instance does hold it.
package usermanager

import (
	"context"
	"sync"
	"time"

	"github.com/nabbar/imcore/session"
	"github.com/nabbar/imcore/sessioncache"
)

// DefaultLocationTTL bounds how long a stale instance-ownership record can
// survive a crash before a lookup simply finds nothing.
const DefaultLocationTTL = 90 * time.Second

// Manager tracks which local Session, if any, belongs to each uid, and
// publishes that ownership to the shared cache so peer instances can find
// it.
type Manager struct {
	selfName string
	cache    sessioncache.Store

	mu    sync.Mutex
	byUID map[int64]*session.Session
}

// New builds a Manager for the chat instance named selfName.
func New(selfName string, cache sessioncache.Store) *Manager {
	return &Manager{
		selfName: selfName,
		cache:    cache,
		byUID:    make(map[int64]*session.Session),
	}
}

// Bind records that uid's live session is s, both locally and in the
// shared cache.
func (m *Manager) Bind(ctx context.Context, uid int64, s *session.Session) error {
	m.mu.Lock()
	m.byUID[uid] = s
	m.mu.Unlock()

	s.SetUserID(uid)

	if m.cache == nil {
		return nil
	}
	return m.cache.SetLocation(ctx, uid, m.selfName, DefaultLocationTTL)
}

// Unbind removes uid's local binding, but only if it still points at s —
// a stale Close racing a newer login must not evict the new session.
func (m *Manager) Unbind(ctx context.Context, uid int64, s *session.Session) {
	m.mu.Lock()
	cur, ok := m.byUID[uid]
	if ok && cur == s {
		delete(m.byUID, uid)
	}
	m.mu.Unlock()

	if ok && cur == s && m.cache != nil {
		_ = m.cache.ClearLocation(ctx, uid)
	}
}

// Local returns the Session bound to uid on this instance, if any.
func (m *Manager) Local(uid int64) (*session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUID[uid]
	return s, ok
}

// Locate returns the name of the chat instance holding uid's live session:
// this one if bound locally, otherwise whatever the shared cache last
// recorded.
func (m *Manager) Locate(ctx context.Context, uid int64) (instance string, found bool, err error) {
	if _, ok := m.Local(uid); ok {
		return m.selfName, true, nil
	}
	if m.cache == nil {
		return "", false, nil
	}
	return m.cache.GetLocation(ctx, uid)
}

// Count reports the number of sessions bound locally.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUID)
}
