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

// Package sessioncache stands in for the shared, cross-instance lookup
// cache: a uid -> owning-chat-instance mapping that the Status service and the
// peer-forwarding path in package usermanager both consult. The concrete
// implementation is built on nutsdb, an embedded KV store. The Store
// interface is the seam: swapping in a real Redis client later needs no
// caller change.
package sessioncache

import (
	"context"
	"fmt"
	"time"

	"github.com/nutsdb/nutsdb"
)

const bucket = "session_location"

// Store maps a uid to the name of the chat instance currently holding its
// live session.
type Store interface {
	SetLocation(ctx context.Context, uid int64, instance string, ttl time.Duration) error
	GetLocation(ctx context.Context, uid int64) (instance string, found bool, err error)
	ClearLocation(ctx context.Context, uid int64) error
	Close() error
}

type store struct {
	db *nutsdb.DB
}

// Open starts (or attaches to) a nutsdb instance rooted at dir.
func Open(dir string) (Store, error) {
	opts := nutsdb.DefaultOptions
	opts.Dir = dir

	db, err := nutsdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("sessioncache: open %s: %w", dir, err)
	}

	return &store{db: db}, nil
}

func key(uid int64) []byte {
	return []byte(fmt.Sprintf("uid:%d", uid))
}

func (s *store) SetLocation(_ context.Context, uid int64, instance string, ttl time.Duration) error {
	seconds := uint32(ttl / time.Second)
	if seconds == 0 {
		seconds = 1
	}
	return s.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(bucket, key(uid), []byte(instance), seconds)
	})
}

func (s *store) GetLocation(_ context.Context, uid int64) (string, bool, error) {
	var instance string
	found := false

	err := s.db.View(func(tx *nutsdb.Tx) error {
		e, err := tx.Get(bucket, key(uid))
		if err != nil {
			if err == nutsdb.ErrKeyNotFound || err == nutsdb.ErrBucketNotFound || err == nutsdb.ErrKeyExpired {
				return nil
			}
			return err
		}
		instance = string(e.Value)
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return instance, found, nil
}

func (s *store) ClearLocation(_ context.Context, uid int64) error {
	err := s.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Delete(bucket, key(uid))
	})
	if err == nutsdb.ErrKeyNotFound || err == nutsdb.ErrBucketNotFound {
		return nil
	}
	return err
}

func (s *store) Close() error {
	return s.db.Close()
}
