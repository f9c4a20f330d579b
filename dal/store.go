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

package dal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	liberr "github.com/nabbar/imcore/errors"
	"github.com/nabbar/imcore/frame"
	"github.com/nabbar/imcore/logger"
	"github.com/nabbar/imcore/pool"
)

func init() {
	liberr.RegisterMessage(ErrDuplicateUser.Code(), "a user with that name already exists")
	liberr.RegisterMessage(ErrNotFound.Code(), "no matching record")
	liberr.RegisterMessage(ErrBadPassword.Code(), "invalid credentials")
	liberr.RegisterMessage(ErrApplyLimit.Code(), "too many pending friend requests")
	liberr.RegisterMessage(ErrApplyExists.Code(), "a pending friend request already exists between these users")
}

var (
	ErrDuplicateUser = liberr.New(liberr.MinPkgDal + 1)
	ErrNotFound      = liberr.New(liberr.MinPkgDal + 2)
	ErrBadPassword   = liberr.New(liberr.MinPkgDal + 3)
	ErrApplyLimit    = liberr.New(liberr.MinPkgDal + 4)
	ErrApplyExists   = liberr.New(liberr.MinPkgDal + 5)
)

// MaxPendingApply caps outstanding friend requests per recipient.
const MaxPendingApply = 100

// Store is the Data Access Layer, backed by a pool of *gorm.DB handles.
type Store struct {
	pool *pool.Pool[*gorm.DB]
}

// Open builds a Store with size gorm.DB handles against dsn, running
// AutoMigrate on the first handle. log may be nil to disable gorm query
// logging.
func Open(ctx context.Context, dsn string, size int, log logger.Logger) (*Store, error) {
	return OpenDialector(ctx, func() gorm.Dialector { return mysql.Open(dsn) }, size, log)
}

// OpenDialector builds a Store the same way Open does, but against an
// arbitrary gorm.Dialector factory rather than a hardcoded MySQL DSN — the
// seam tests use to run the same queries against an in-memory SQLite
// database instead of a live MySQL server.
func OpenDialector(ctx context.Context, dialector func() gorm.Dialector, size int, log logger.Logger) (*Store, error) {
	p, err := pool.New[*gorm.DB](ctx, size,
		func(ctx context.Context) (*gorm.DB, error) {
			return openGorm(dialector(), log)
		},
		func(ctx context.Context, db *gorm.DB) bool {
			sqlDB, err := db.DB()
			if err != nil {
				return false
			}
			return sqlDB.PingContext(ctx) == nil
		},
		func(db *gorm.DB) {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("dal: open pool: %w", err)
	}

	s := &Store{pool: p}

	db, aerr := s.pool.Acquire()
	if aerr != nil {
		return nil, aerr
	}
	defer s.pool.Release(db)

	if err := db.AutoMigrate(&User{}, &FriendApply{}, &Friend{}, &OfflineMessage{}); err != nil {
		return nil, fmt.Errorf("dal: automigrate: %w", err)
	}

	return s, nil
}

func (s *Store) with(fn func(db *gorm.DB) error) error {
	db, aerr := s.pool.Acquire()
	if aerr != nil {
		return aerr
	}
	defer s.pool.Release(db)
	return fn(db)
}

// RegisterUser creates a new account and returns its uid.
func (s *Store) RegisterUser(ctx context.Context, name, email, pwd string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("dal: hash password: %w", err)
	}

	var uid int64
	err = s.with(func(db *gorm.DB) error {
		var count int64
		if err := db.WithContext(ctx).Model(&User{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateUser
		}

		u := User{Name: name, Email: email, PasswordHash: string(hash), CreatedAt: time.Now()}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			return err
		}
		uid = u.UID()
		return nil
	})
	return uid, err
}

// CheckPassword validates email/pwd (login identifies the account by email,
// not by username) and returns the matching user info.
func (s *Store) CheckPassword(ctx context.Context, email, pwd string) (*UserInfo, error) {
	var u User
	err := s.with(func(db *gorm.DB) error {
		res := db.WithContext(ctx).Where("email = ?", email).First(&u)
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return res.Error
	})
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pwd)) != nil {
		return nil, ErrBadPassword
	}

	return &UserInfo{UID: u.UID(), Name: u.Name, Email: u.Email}, nil
}

// GetUserByUID looks up a user by uid.
func (s *Store) GetUserByUID(ctx context.Context, uid int64) (*UserInfo, error) {
	var u User
	err := s.with(func(db *gorm.DB) error {
		res := db.WithContext(ctx).Where("id = ?", uid).First(&u)
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return res.Error
	})
	if err != nil {
		return nil, err
	}
	return &UserInfo{UID: u.UID(), Name: u.Name, Email: u.Email}, nil
}

// GetUserByName looks up a user by login name.
func (s *Store) GetUserByName(ctx context.Context, name string) (*UserInfo, error) {
	var u User
	err := s.with(func(db *gorm.DB) error {
		res := db.WithContext(ctx).Where("name = ?", name).First(&u)
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return res.Error
	})
	if err != nil {
		return nil, err
	}
	return &UserInfo{UID: u.UID(), Name: u.Name, Email: u.Email}, nil
}

// UpdatePassword overwrites name's password hash after the Gate has already
// verified the email/verify-code pair, mirroring MysqlDao::UpdatePassword.
func (s *Store) UpdatePassword(ctx context.Context, name, pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("dal: hash password: %w", err)
	}

	return s.with(func(db *gorm.DB) error {
		res := db.WithContext(ctx).Model(&User{}).Where("name = ?", name).Update("password_hash", string(hash))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ApplyFriend records a pending friend request from -> to, refusing once to
// already has MaxPendingApply outstanding requests, and refusing a second
// Pending row for the same unordered (from, to) pair: at most one Pending
// ApplyInfo row may exist between any two users, regardless of direction.
func (s *Store) ApplyFriend(ctx context.Context, from, to int64, backName string) error {
	return s.with(func(db *gorm.DB) error {
		var existing int64
		if err := db.WithContext(ctx).Model(&FriendApply{}).
			Where("status = ? AND ((from_uid = ? AND to_uid = ?) OR (from_uid = ? AND to_uid = ?))",
				ApplyPending, from, to, to, from).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrApplyExists
		}

		var count int64
		if err := db.WithContext(ctx).Model(&FriendApply{}).
			Where("to_uid = ? AND status = ?", to, ApplyPending).Count(&count).Error; err != nil {
			return err
		}
		if count >= MaxPendingApply {
			return ErrApplyLimit
		}

		return db.WithContext(ctx).Create(&FriendApply{
			FromUID: from, ToUID: to, BackName: backName,
			Status: ApplyPending, CreatedAt: time.Now(),
		}).Error
	})
}

// AuthFriend confirms a pending request and writes the symmetric Friend
// rows, mirroring MysqlDao::ConfirmFriendApply.
func (s *Store) AuthFriend(ctx context.Context, from, to int64, remark string) error {
	return s.with(func(db *gorm.DB) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&FriendApply{}).
				Where("from_uid = ? AND to_uid = ? AND status = ?", from, to, ApplyPending).
				Update("status", ApplyConfirmed)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}

			now := time.Now()
			if err := tx.Create(&Friend{UID: to, FriendUID: from, Remark: remark, CreatedAt: now}).Error; err != nil {
				return err
			}
			return tx.Create(&Friend{UID: from, FriendUID: to, Remark: "", CreatedAt: now}).Error
		})
	})
}

// FriendList returns uid's confirmed friends.
func (s *Store) FriendList(ctx context.Context, uid int64) ([]*UserInfo, error) {
	var rows []Friend
	if err := s.with(func(db *gorm.DB) error {
		return db.WithContext(ctx).Where("uid = ?", uid).Find(&rows).Error
	}); err != nil {
		return nil, err
	}

	out := make([]*UserInfo, 0, len(rows))
	for _, r := range rows {
		u, err := s.GetUserByUID(ctx, r.FriendUID)
		if err != nil {
			continue
		}
		u.Remark = r.Remark
		out = append(out, u)
	}
	return out, nil
}

// StoreOfflineMessage persists one frame addressed to a uid with no live
// session, per the ChatServer setting enabling persistence by default.
func (s *Store) StoreOfflineMessage(ctx context.Context, uid int64, f frame.Frame) error {
	return s.with(func(db *gorm.DB) error {
		return db.WithContext(ctx).Create(&OfflineMessage{
			UID: uid, MsgID: f.ID, Body: append([]byte{}, f.Body...), CreatedAt: time.Now(),
		}).Error
	})
}

// DrainOfflineMessages fetches and deletes every offline message queued for
// uid, in the order they were stored.
func (s *Store) DrainOfflineMessages(ctx context.Context, uid int64) ([]frame.Frame, error) {
	var rows []OfflineMessage
	err := s.with(func(db *gorm.DB) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("uid = ?", uid).Order("id asc").Find(&rows).Error; err != nil {
				return err
			}
			if len(rows) == 0 {
				return nil
			}
			return tx.Where("uid = ?", uid).Delete(&OfflineMessage{}).Error
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]frame.Frame, 0, len(rows))
	for _, r := range rows {
		out = append(out, frame.Frame{ID: r.MsgID, Body: r.Body})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Outstanding reports the number of *gorm.DB handles currently on loan, for
// the pool-occupancy gauge exposed on /metrics.
func (s *Store) Outstanding() int {
	return s.pool.Outstanding()
}

// RunMaintenance runs the pool's health-check/reconnect pass on interval
// until ctx is done. Call it in its own goroutine.
func (s *Store) RunMaintenance(ctx context.Context, interval time.Duration) {
	s.pool.RunMaintenance(ctx, interval)
}
