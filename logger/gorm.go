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

package logger

import (
	"context"
	"errors"
	"time"

	gormlog "gorm.io/gorm/logger"
)

// GORMLogger adapts Logger to gorm's logger.Interface so every pool.Pool's
// *gorm.DB handle reports through the same structured sink as the rest of
// the process.
type GORMLogger struct {
	Log                  Logger
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
}

func (g GORMLogger) LogMode(gormlog.LogLevel) gormlog.Interface {
	return g
}

func (g GORMLogger) Info(_ context.Context, msg string, args ...interface{}) {
	g.Log.Info(msg, Fields{"args": args})
}

func (g GORMLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	g.Log.Warn(msg, Fields{"args": args})
}

func (g GORMLogger) Error(_ context.Context, msg string, args ...interface{}) {
	g.Log.Error(msg, nil, Fields{"args": args})
}

func (g GORMLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := Fields{"sql": sql, "rows": rows, "elapsed": elapsed.String()}

	switch {
	case err != nil && !(g.IgnoreRecordNotFound && errors.Is(err, gormlog.ErrRecordNotFound)):
		g.Log.Error("gorm query failed", err, fields)
	case g.SlowThreshold > 0 && elapsed > g.SlowThreshold:
		g.Log.Warn("gorm slow query", fields)
	default:
		g.Log.Debug("gorm query", fields)
	}
}
