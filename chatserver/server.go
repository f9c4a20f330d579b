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

// Package chatserver implements the chat TCP acceptor: it owns the
// listener, constructs a session.Session for every accepted connection,
// indexes sessions by id, and removes them from its table (and from the
// user manager) on close.
package chatserver

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/nats-io/nats.go"

	"github.com/nabbar/imcore/chatmsg"
	"github.com/nabbar/imcore/dal"
	"github.com/nabbar/imcore/dispatcher"
	"github.com/nabbar/imcore/frame"
	"github.com/nabbar/imcore/ioloop"
	"github.com/nabbar/imcore/logger"
	"github.com/nabbar/imcore/session"
)

// UserStore is the subset of dal.Store the chat handlers need, named as an
// interface so this package is testable without a live MySQL pool — the
// same seam gate.UserStore cuts on the HTTP side.
type UserStore interface {
	GetUserByUID(ctx context.Context, uid int64) (*dal.UserInfo, error)
	GetUserByName(ctx context.Context, name string) (*dal.UserInfo, error)
	ApplyFriend(ctx context.Context, from, to int64, backName string) error
	AuthFriend(ctx context.Context, from, to int64, remark string) error
	FriendList(ctx context.Context, uid int64) ([]*dal.UserInfo, error)
	StoreOfflineMessage(ctx context.Context, uid int64, f frame.Frame) error
	DrainOfflineMessages(ctx context.Context, uid int64) ([]frame.Frame, error)
}

// UserManager is the subset of usermanager.Manager the Server needs.
type UserManager interface {
	Bind(ctx context.Context, uid int64, s *session.Session) error
	Unbind(ctx context.Context, uid int64, s *session.Session)
	Local(uid int64) (*session.Session, bool)
	Locate(ctx context.Context, uid int64) (instance string, found bool, err error)
	Count() int
}

// RPCClient is the subset of rpcpool.Pool the Server needs: a request/reply
// call to Status and fire-and-forget notifications to peer Chat instances.
type RPCClient interface {
	Request(ctx context.Context, subject string, req, resp interface{}) error
	Notify(subject string, req interface{}) error
	Subscribe(subject string, h nats.MsgHandler) (*nats.Subscription, error)
}

// DefaultHeartbeatTimeout is the grace period applied when Config doesn't
// set one: a session idle longer than this is closed by its own watchdog.
const DefaultHeartbeatTimeout = 30 * time.Second

// Config carries the Server's tunables, sourced from config.ini's
// ChatServer and SelfServer sections.
type Config struct {
	SelfName         string
	MaxFrameBody     int
	HeartbeatTimeout time.Duration
	PersistOffline   bool
}

// Server is the chat TCP acceptor: a listener, a session table, and the
// logic wiring that ties accepted connections to the Dispatcher.
type Server struct {
	cfg Config
	log logger.Logger

	ln net.Listener
	io *ioloop.Pool
	d  *dispatcher.Dispatcher

	users UserStore
	um    UserManager
	rpc   RPCClient

	mu       sync.Mutex
	sessions map[string]*session.Session

	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a Server over an already-listening ln. io must already be
// running; d must not be started yet, since New registers the chat handlers
// on it, and the caller Starts it afterwards. The caller owns both
// lifecycles jointly with the Server's.
func New(ln net.Listener, io *ioloop.Pool, d *dispatcher.Dispatcher, users UserStore, um UserManager, rpc RPCClient, cfg Config, log logger.Logger) *Server {
	if cfg.MaxFrameBody <= 0 {
		cfg.MaxFrameBody = frame.DefaultMaxBody
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = DefaultHeartbeatTimeout
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		ln:       ln,
		io:       io,
		d:        d,
		users:    users,
		um:       um,
		rpc:      rpc,
		sessions: make(map[string]*session.Session),
		stopped:  make(chan struct{}),
	}
	RegisterHandlers(s)
	return s
}

// Serve accepts connections in a loop until Shutdown closes the listener:
// on success it indexes the session and reissues accept; on failure it
// logs and reissues, except when the listener is closing.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopped:
				return nil
			default:
			}
			if s.log != nil {
				s.log.Warn("chatserver: accept failed", logger.Fields{"err": err.Error()})
			}
			continue
		}
		s.onAccept(conn)
	}
}

func (s *Server) onAccept(conn net.Conn) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		_ = conn.Close()
		return
	}

	loop := s.io.Acquire()
	sess := session.New(id, conn, loop, s.cfg.MaxFrameBody, s)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	sess.StartReading()
	sess.WatchHeartbeat(s.cfg.HeartbeatTimeout)
}

// OnFrame implements session.Handler: every decoded frame is handed to the
// Dispatcher, preserving per-session FIFO order since a session only ever
// has one frame in flight between its reader goroutine and the queue.
func (s *Server) OnFrame(sess *session.Session, f frame.Frame) {
	s.d.Post(sess, f)
}

// OnClose implements session.Handler: erases sess from the session table
// and unbinds its user-id from the User Manager.
func (s *Server) OnClose(sess *session.Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()

	if uid := sess.UserID(); uid != 0 {
		s.um.Unbind(context.Background(), uid, sess)
	}
}

// Count reports the number of sessions currently in the table, used by the
// Status heartbeat to report this instance's load.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown closes the listener (unblocking Serve), closes every tracked
// session, and stops the Dispatcher and I/O pool in that order. Safe to
// call more than once.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		_ = s.ln.Close()

		s.mu.Lock()
		sessions := make([]*session.Session, 0, len(s.sessions))
		for _, sess := range s.sessions {
			sessions = append(sessions, sess)
		}
		s.mu.Unlock()

		for _, sess := range sessions {
			sess.Close()
		}

		s.d.Stop()
		s.io.Stop()
	})
}

// deliverLocalOrForward sends f to to's local session if bound here,
// forwards it to the owning peer instance over rpc if Locate resolves one
// elsewhere, and reports delivered=false, forwarded=false when neither
// happened (to not located, located on this instance but not bound, or the
// forward failed).
func (s *Server) deliverLocalOrForward(ctx context.Context, to int64, f frame.Frame, peerSubject string) (delivered bool, forwarded bool) {
	if target, ok := s.um.Local(to); ok {
		target.Send(f)
		return true, false
	}

	instance, found, err := s.um.Locate(ctx, to)
	if err != nil || !found || instance == s.cfg.SelfName {
		return false, false
	}

	env := peerEnvelope{To: to, MsgID: f.ID, Body: f.Body}
	if err := s.rpc.Notify(peerSubject, env); err != nil {
		if s.log != nil {
			s.log.Error("chatserver: peer forward failed", err, logger.Fields{"to": to, "subject": peerSubject})
		}
		return false, false
	}
	return false, true
}

// loginSuccess is the single place that finishes a successful Login: bind
// the session, drain any offline messages queued for uid, and reply.
func (s *Server) loginSuccess(ctx context.Context, sess *session.Session, uid int64, name string) {
	_ = s.um.Bind(ctx, uid, sess)

	if s.cfg.PersistOffline {
		msgs, err := s.users.DrainOfflineMessages(ctx, uid)
		if err == nil {
			for _, m := range msgs {
				sess.Send(m)
			}
		}
	}

	sendJSON(sess, chatmsg.LoginReply, chatmsg.LoginResponse{Error: chatmsg.ErrOK, UID: uid, Name: name})
}
