/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

// Package logger is a structured-logging wrapper over logrus, exposing the
// level/fields/writer surface this module's components actually call.
package logger

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields are arbitrary structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is the logging surface shared by every component in this module.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level

	WithFields(f Fields) Logger

	Debug(msg string, f ...Fields)
	Info(msg string, f ...Fields)
	Warn(msg string, f ...Fields)
	Error(msg string, err error, f ...Fields)
	Fatal(msg string, err error, f ...Fields)
}

type logger struct {
	mu  sync.RWMutex
	lvl Level
	l   *logrus.Logger
	f   Fields
}

// New builds a Logger writing to w (os.Stdout in production, a buffer in
// tests) at the given starting level.
func New(w io.Writer, lvl Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl.logrus())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &logger{lvl: lvl, l: l}
}

func (g *logger) SetLevel(lvl Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lvl = lvl
	g.l.SetLevel(lvl.logrus())
}

func (g *logger) GetLevel() Level {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lvl
}

func (g *logger) WithFields(f Fields) Logger {
	g.mu.RLock()
	defer g.mu.RUnlock()

	merged := make(Fields, len(g.f)+len(f))
	for k, v := range g.f {
		merged[k] = v
	}
	for k, v := range f {
		merged[k] = v
	}

	return &logger{lvl: g.lvl, l: g.l, f: merged}
}

func (g *logger) entry(f ...Fields) *logrus.Entry {
	merged := make(logrus.Fields, len(g.f))
	for k, v := range g.f {
		merged[k] = v
	}
	for _, m := range f {
		for k, v := range m {
			merged[k] = v
		}
	}
	return g.l.WithFields(merged)
}

func (g *logger) Debug(msg string, f ...Fields) { g.entry(f...).Debug(msg) }
func (g *logger) Info(msg string, f ...Fields)  { g.entry(f...).Info(msg) }
func (g *logger) Warn(msg string, f ...Fields)  { g.entry(f...).Warn(msg) }

func (g *logger) Error(msg string, err error, f ...Fields) {
	e := g.entry(f...)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

func (g *logger) Fatal(msg string, err error, f ...Fields) {
	e := g.entry(f...)
	if err != nil {
		e = e.WithError(err)
	}
	e.Fatal(msg)
}
