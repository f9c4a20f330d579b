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

// Package dal is the Data Access Layer, sitting on top of
// the pool package's generic handle pool instantiated for *gorm.DB. User
// registration, login, friend requests, and the friend roster are all
// expressed as gorm.io/gorm models and queries.
package dal

import "time"

// User is a registered account. Its auto-increment ID doubles as the uid
// used on the wire, the same role MySqlDao's integer uid plays over the
// original schema's primary key.
type User struct {
	ID           uint   `gorm:"primarykey"`
	Name         string `gorm:"uniqueIndex;size:64"`
	Email        string `gorm:"uniqueIndex;size:128"`
	PasswordHash string `gorm:"size:128"`
	CreatedAt    time.Time
}

// UID returns the business identifier used on the wire and in every other
// DAL method's uid parameter.
func (u User) UID() int64 { return int64(u.ID) }

// TableName pins the table name the way the original schema names it.
func (User) TableName() string { return "user" }

// FriendApplyStatus tracks an outstanding or resolved friend request.
type FriendApplyStatus int

const (
	ApplyPending FriendApplyStatus = iota
	ApplyConfirmed
)

// FriendApply is one pending/confirmed friend request, grounded on
// MysqlDao::AddFriendApply / ConfirmFriendApply.
type FriendApply struct {
	ID        uint `gorm:"primarykey"`
	FromUID   int64
	ToUID     int64  `gorm:"index"`
	BackName  string `gorm:"size:64"`
	Status    FriendApplyStatus
	CreatedAt time.Time
}

func (FriendApply) TableName() string { return "friend_apply" }

// Friend is one directed edge of a confirmed friendship; a confirmation
// writes both directions so either side's FriendList is a plain lookup.
type Friend struct {
	ID        uint `gorm:"primarykey"`
	UID       int64 `gorm:"index:idx_friend_uid"`
	FriendUID int64
	Remark    string `gorm:"size:64"`
	CreatedAt time.Time
}

func (Friend) TableName() string { return "friend" }

// OfflineMessage persists a chat frame addressed to a uid that had no live
// session at delivery time, so it can be delivered on that uid's next
// login instead of being dropped (persistence is on by default).
type OfflineMessage struct {
	ID        uint `gorm:"primarykey"`
	UID       int64 `gorm:"index"`
	MsgID     uint16
	Body      []byte
	CreatedAt time.Time
}

func (OfflineMessage) TableName() string { return "offline_message" }

// UserInfo is the read-oriented projection returned to callers, mirroring
// the original's UserInfo data struct without exposing gorm internals.
type UserInfo struct {
	UID    int64
	Name   string
	Email  string
	Remark string
}
