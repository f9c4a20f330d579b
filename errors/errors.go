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

package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Error is the coded-error type passed between layers of this module. A nil
// Error means success; callers check (Error == nil) the same way the
// teacher package does.
type Error interface {
	error

	// Code returns the numeric code carried by this error.
	Code() CodeError

	// ErrorParent returns a new Error with the given cause appended as a
	// parent, preserving the code and message.
	ErrorParent(parent error) Error

	// AddParent appends a cause without allocating a new Error.
	AddParent(parent error) Error

	// HasParent reports whether any parent error has been recorded.
	HasParent() bool

	// JSON renders {"error": code, "message": "..."} for HTTP responses.
	JSON() []byte
}

type coded struct {
	code    CodeError
	message string
	parents []error
}

// Declare returns a constructor bound to a fixed code and message. Packages
// call this once per code at init time.
func Declare(code CodeError, message string) func() Error {
	RegisterMessage(code, message)
	return func() Error {
		return &coded{code: code, message: message}
	}
}

// New builds an Error for a code, looking up its registered message.
func New(code CodeError) Error {
	return &coded{code: code, message: messageFor(code)}
}

func (e *coded) Code() CodeError {
	return e.code
}

func (e *coded) Error() string {
	if !e.HasParent() {
		return fmt.Sprintf("[%d] %s", e.code, e.message)
	}

	parts := make([]string, 0, len(e.parents)+1)
	parts = append(parts, fmt.Sprintf("[%d] %s", e.code, e.message))
	for _, p := range e.parents {
		parts = append(parts, p.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *coded) ErrorParent(parent error) Error {
	n := &coded{code: e.code, message: e.message, parents: append([]error{}, e.parents...)}
	if parent != nil {
		n.parents = append(n.parents, parent)
	}
	return n
}

func (e *coded) AddParent(parent error) Error {
	if parent != nil {
		e.parents = append(e.parents, parent)
	}
	return e
}

func (e *coded) HasParent() bool {
	return len(e.parents) > 0
}

func (e *coded) JSON() []byte {
	out := struct {
		Error   int    `json:"error"`
		Message string `json:"message,omitempty"`
	}{
		Error:   int(e.code),
		Message: e.message,
	}
	b, _ := json.Marshal(out)
	return b
}
