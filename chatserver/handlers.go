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

	"github.com/nabbar/imcore/chatmsg"
	"github.com/nabbar/imcore/frame"
	"github.com/nabbar/imcore/rpcpool"
	"github.com/nabbar/imcore/session"
)

// RegisterHandlers binds every chat message id onto s's Dispatcher. Called
// once from New, before the Dispatcher is started.
func RegisterHandlers(s *Server) {
	s.d.Register(chatmsg.Login, s.handleLogin)
	s.d.Register(chatmsg.SearchUser, s.handleSearchUser)
	s.d.Register(chatmsg.AddFriendApply, s.handleAddFriendApply)
	s.d.Register(chatmsg.AuthFriendApply, s.handleAuthFriendApply)
	s.d.Register(chatmsg.ChatText, s.handleChatText)
	s.d.Register(chatmsg.Heartbeat, s.handleHeartbeat)
	s.d.Register(chatmsg.FriendList, s.handleFriendList)
}

func sendJSON(sess *session.Session, id uint16, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	sess.Send(frame.Frame{ID: id, Body: body})
}

// handleLogin verifies the token Status previously issued for uid, binds
// the session, and replies with the caller's basic profile.
func (s *Server) handleLogin(sess *session.Session, f frame.Frame) {
	var req chatmsg.LoginRequest
	if json.Unmarshal(f.Body, &req) != nil {
		sendJSON(sess, chatmsg.LoginReply, chatmsg.LoginResponse{Error: chatmsg.ErrGeneric})
		return
	}

	ctx := context.Background()

	if s.rpc != nil {
		var reply struct {
			Error int `json:"error"`
		}
		type statusLoginRequest struct {
			UID   int64  `json:"uid"`
			Token string `json:"token"`
		}
		if err := s.rpc.Request(ctx, rpcpool.SubjectStatusLogin, statusLoginRequest{UID: req.UID, Token: req.Token}, &reply); err != nil || reply.Error != 0 {
			sendJSON(sess, chatmsg.LoginReply, chatmsg.LoginResponse{Error: chatmsg.ErrTokenInvalid})
			return
		}
	}

	info, err := s.users.GetUserByUID(ctx, req.UID)
	if err != nil {
		sendJSON(sess, chatmsg.LoginReply, chatmsg.LoginResponse{Error: chatmsg.ErrNotFound})
		return
	}

	s.loginSuccess(ctx, sess, info.UID, info.Name)
}

// handleSearchUser resolves by uid when present, otherwise by name.
func (s *Server) handleSearchUser(sess *session.Session, f frame.Frame) {
	var req chatmsg.SearchUserRequest
	if json.Unmarshal(f.Body, &req) != nil {
		sendJSON(sess, chatmsg.SearchUserReply, chatmsg.SearchUserResponse{Error: chatmsg.ErrGeneric})
		return
	}

	ctx := context.Background()
	var (
		uid   int64
		name  string
		email string
		err   error
	)
	if req.UID != 0 {
		u, e := s.users.GetUserByUID(ctx, req.UID)
		err = e
		if e == nil {
			uid, name, email = u.UID, u.Name, u.Email
		}
	} else {
		u, e := s.users.GetUserByName(ctx, req.Name)
		err = e
		if e == nil {
			uid, name, email = u.UID, u.Name, u.Email
		}
	}

	if err != nil {
		sendJSON(sess, chatmsg.SearchUserReply, chatmsg.SearchUserResponse{Error: chatmsg.ErrNotFound})
		return
	}

	sendJSON(sess, chatmsg.SearchUserReply, chatmsg.SearchUserResponse{UID: uid, Name: name, Email: email})
}

// handleAddFriendApply persists the pending request and pushes a
// notification to the target's session, locally or via peer forwarding.
func (s *Server) handleAddFriendApply(sess *session.Session, f frame.Frame) {
	from := sess.UserID()
	if from == 0 {
		return
	}

	var req chatmsg.AddFriendApplyRequest
	if json.Unmarshal(f.Body, &req) != nil {
		return
	}

	ctx := context.Background()
	if err := s.users.ApplyFriend(ctx, from, req.To, req.BackName); err != nil {
		return
	}

	fromInfo, err := s.users.GetUserByUID(ctx, from)
	fromName := ""
	if err == nil {
		fromName = fromInfo.Name
	}

	notify := chatmsg.AddFriendApplyNotifyMsg{From: from, FromName: fromName, BackName: req.BackName}
	body, _ := json.Marshal(notify)
	s.deliverLocalOrForward(ctx, req.To, frame.Frame{ID: chatmsg.AddFriendApplyNotify, Body: body}, rpcpool.SubjectNotifyAddFriend)
}

// handleAuthFriendApply confirms a pending request, persists the symmetric
// friendship, and notifies the original requester if accepted.
func (s *Server) handleAuthFriendApply(sess *session.Session, f frame.Frame) {
	uid := sess.UserID()
	if uid == 0 {
		return
	}

	var req chatmsg.AuthFriendApplyRequest
	if json.Unmarshal(f.Body, &req) != nil {
		return
	}
	if !req.Accept {
		return
	}

	ctx := context.Background()
	if err := s.users.AuthFriend(ctx, req.From, uid, req.Remark); err != nil {
		return
	}

	notify := chatmsg.AuthFriendApplyNotifyMsg{From: uid}
	body, _ := json.Marshal(notify)
	s.deliverLocalOrForward(ctx, req.From, frame.Frame{ID: chatmsg.AuthFriendApplyNotify, Body: body}, rpcpool.SubjectNotifyAuthFriend)
}

// handleChatText forwards a text message to its addressee, locally,
// peer-forwarded, or persisted as an offline message when nobody currently
// owns the addressee's session.
func (s *Server) handleChatText(sess *session.Session, f frame.Frame) {
	from := sess.UserID()
	if from == 0 {
		return
	}

	var req chatmsg.ChatTextRequest
	if json.Unmarshal(f.Body, &req) != nil {
		return
	}

	ctx := context.Background()
	notify := chatmsg.ChatTextNotifyMsg{From: from, Text: req.Text}
	body, _ := json.Marshal(notify)
	frm := frame.Frame{ID: chatmsg.ChatTextNotify, Body: body}

	delivered, forwarded := s.deliverLocalOrForward(ctx, req.To, frm, rpcpool.SubjectNotifyChatMsg)
	if !delivered && !forwarded && s.cfg.PersistOffline {
		_ = s.users.StoreOfflineMessage(ctx, req.To, frm)
	}
}

// handleHeartbeat acknowledges a client-initiated ping. The session's idle
// deadline is already refreshed on every byte received, so this handler
// has no other side effect.
func (s *Server) handleHeartbeat(sess *session.Session, f frame.Frame) {
	sendJSON(sess, chatmsg.HeartbeatReply, chatmsg.HeartbeatReplyMsg{Error: chatmsg.ErrOK})
}

// handleFriendList answers with the caller's confirmed friend roster.
func (s *Server) handleFriendList(sess *session.Session, f frame.Frame) {
	uid := sess.UserID()
	if uid == 0 {
		sendJSON(sess, chatmsg.FriendListReply, chatmsg.FriendListResponse{Error: chatmsg.ErrTokenInvalid})
		return
	}

	friends, err := s.users.FriendList(context.Background(), uid)
	if err != nil {
		sendJSON(sess, chatmsg.FriendListReply, chatmsg.FriendListResponse{Error: chatmsg.ErrGeneric})
		return
	}

	entries := make([]chatmsg.FriendListEntry, 0, len(friends))
	for _, u := range friends {
		entries = append(entries, chatmsg.FriendListEntry{UID: u.UID, Name: u.Name, Remark: u.Remark})
	}
	sendJSON(sess, chatmsg.FriendListReply, chatmsg.FriendListResponse{Friends: entries})
}
