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

// Package errors provides a lightweight coded-error type shared by every
// package in this module. Each package reserves a contiguous range of
// CodeError values and registers human messages for its own codes.
package errors

import "sync"

// CodeError is a numeric error code, similar in spirit to an HTTP status.
type CodeError uint16

const (
	// UnknownError is the zero value, used when no specific code applies.
	UnknownError CodeError = 0

	MinPkgPool       CodeError = 100
	MinPkgSession     CodeError = 200
	MinPkgDispatcher CodeError = 300
	MinPkgDal        CodeError = 400
	MinPkgRPC        CodeError = 500
	MinPkgGate       CodeError = 600
	MinPkgIOLoop     CodeError = 700
	MinPkgConfig     CodeError = 800
	MinPkgChat       CodeError = 900

	MinAvailable CodeError = 1000
)

var (
	mu  sync.RWMutex
	msg = make(map[CodeError]string)
)

// RegisterMessage associates a human-readable message with a code. Called
// once from each package's init().
func RegisterMessage(code CodeError, message string) {
	mu.Lock()
	defer mu.Unlock()
	msg[code] = message
}

func messageFor(code CodeError) string {
	mu.RLock()
	defer mu.RUnlock()
	if m, ok := msg[code]; ok {
		return m
	}
	return "unknown error"
}
