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

// Package chatmsg declares the message ids and JSON body shapes carried in
// a frame.Frame's Body on the chat TCP stream: login, user search, friend
// requests, text delivery, heartbeat, and the friend roster.
package chatmsg

// Message ids. A frame carrying an id not in this table is logged and
// dropped by the dispatcher; the connection is never closed for an
// unknown id.
const (
	Login      uint16 = 1005
	LoginReply uint16 = 1006

	SearchUser      uint16 = 1021
	SearchUserReply uint16 = 1022

	AddFriendApply       uint16 = 1031
	AddFriendApplyNotify uint16 = 1032

	AuthFriendApply       uint16 = 1033
	AuthFriendApplyNotify uint16 = 1034

	ChatText       uint16 = 1041
	ChatTextNotify uint16 = 1042

	Heartbeat      uint16 = 1051
	HeartbeatReply uint16 = 1052

	FriendList      uint16 = 1061
	FriendListReply uint16 = 1062
)

// Chat-level error codes, carried in each reply's Error field. These are a
// separate namespace from the Gate HTTP error codes — the chat wire
// protocol never shares a client with the Gate HTTP surface.
const (
	ErrOK           int = 0
	ErrGeneric      int = 1
	ErrTokenInvalid int = 2
	ErrNotFound     int = 3
	ErrApplyLimit   int = 4
)

// LoginRequest is the body of a Login frame: the uid and one-time token
// issued by the Status service's GetChatServer RPC.
type LoginRequest struct {
	UID   int64  `json:"uid"`
	Token string `json:"token"`
}

// LoginResponse answers a Login frame with the same {error, ...} shape the
// Gate HTTP surface uses, plus the caller's basic profile on success.
type LoginResponse struct {
	Error    int    `json:"error"`
	UID      int64  `json:"uid,omitempty"`
	Name     string `json:"name,omitempty"`
}

// SearchUserRequest resolves by numeric uid when UID is non-zero, otherwise
// by Name.
type SearchUserRequest struct {
	UID  int64  `json:"uid,omitempty"`
	Name string `json:"name,omitempty"`
}

// SearchUserResponse carries the resolved public profile, or a non-zero
// Error when no such user exists.
type SearchUserResponse struct {
	Error int    `json:"error"`
	UID   int64  `json:"uid,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// AddFriendApplyRequest is a friend request from the caller's uid to To.
type AddFriendApplyRequest struct {
	To       int64  `json:"to"`
	BackName string `json:"back_name,omitempty"`
}

// AddFriendApplyNotifyMsg is pushed to the target's session (locally or via
// peer forwarding) once a request has been persisted.
type AddFriendApplyNotifyMsg struct {
	From     int64  `json:"from"`
	FromName string `json:"from_name,omitempty"`
	BackName string `json:"back_name,omitempty"`
}

// AuthFriendApplyRequest accepts (or rejects) a pending request the caller
// received, addressed back to From.
type AuthFriendApplyRequest struct {
	From   int64  `json:"from"`
	Accept bool   `json:"accept"`
	Remark string `json:"remark,omitempty"`
}

// AuthFriendApplyNotifyMsg informs the original requester that their apply
// was accepted.
type AuthFriendApplyNotifyMsg struct {
	From int64 `json:"from"`
}

// ChatTextRequest is a text message the caller's uid is sending To.
type ChatTextRequest struct {
	To   int64  `json:"to"`
	Text string `json:"text"`
}

// ChatTextNotifyMsg is delivered to the addressee, either immediately (if
// locally connected) or drained from offline storage on their next login.
type ChatTextNotifyMsg struct {
	From int64  `json:"from"`
	Text string `json:"text"`
}

// HeartbeatReplyMsg acknowledges a client-initiated Heartbeat frame. It
// carries no fields beyond success; the session's idle watchdog is reset
// by any frame arriving, not specific to this id.
type HeartbeatReplyMsg struct {
	Error int `json:"error"`
}

// FriendListResponse answers a FriendList frame with the caller's confirmed
// roster.
type FriendListResponse struct {
	Error   int              `json:"error"`
	Friends []FriendListEntry `json:"friends,omitempty"`
}

// FriendListEntry is one row of a FriendListResponse.
type FriendListEntry struct {
	UID    int64  `json:"uid"`
	Name   string `json:"name"`
	Remark string `json:"remark,omitempty"`
}
