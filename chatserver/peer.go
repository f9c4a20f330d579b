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

package chatserver

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/nabbar/imcore/frame"
	"github.com/nabbar/imcore/rpcpool"
)

// peerEnvelope wraps one forwarded frame addressed to To, the payload
// carried over the chat-internal NATS subjects (NotifyAddFriend,
// NotifyAuthFriend, NotifyChatMsg).
type peerEnvelope struct {
	To    int64  `json:"to"`
	MsgID uint16 `json:"msg_id"`
	Body  []byte `json:"body"`
}

// ServeNotifications subscribes the three chat-internal notify subjects and
// delivers each forwarded frame to its addressee's local session, if still
// bound here. A notification whose addressee is no longer bound here is
// stored as an offline message when PersistOffline is set, and dropped
// otherwise. It blocks until ctx is done.
func (s *Server) ServeNotifications(ctx context.Context) error {
	subs := make([]*nats.Subscription, 0, 3)
	for _, subject := range []string{
		rpcpool.SubjectNotifyAddFriend,
		rpcpool.SubjectNotifyAuthFriend,
		rpcpool.SubjectNotifyChatMsg,
	} {
		sub, err := s.rpc.Subscribe(subject, s.onPeerNotify)
		if err != nil {
			for _, sub := range subs {
				_ = sub.Unsubscribe()
			}
			return err
		}
		subs = append(subs, sub)
	}

	<-ctx.Done()
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	return ctx.Err()
}

func (s *Server) onPeerNotify(msg *nats.Msg) {
	var env peerEnvelope
	if json.Unmarshal(msg.Data, &env) != nil {
		return
	}

	target, ok := s.um.Local(env.To)
	if !ok {
		if s.cfg.PersistOffline {
			_ = s.users.StoreOfflineMessage(context.Background(), env.To, frame.Frame{ID: env.MsgID, Body: env.Body})
		}
		return
	}

	target.Send(frame.Frame{ID: env.MsgID, Body: env.Body})
}
