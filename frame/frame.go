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

// Package frame implements the chat TCP wire format: repeating
// [id: u16 BE][len: u16 BE][body: len bytes] records over a byte stream,
// decoded by a push-based state machine that tolerates partial reads and
// rejects a header declaring a body past a configurable size cap.
package frame

import (
	"encoding/binary"
	"errors"
)

// HeaderLen is the fixed [id][len] prefix size in bytes.
const HeaderLen = 4

// DefaultMaxBody is the suggested maximum frame body size (8 KiB).
const DefaultMaxBody = 8192

var (
	// ErrOversize is returned when a header declares a body longer than
	// the configured maximum — a protocol violation
	ErrOversize = errors.New("frame: body length exceeds configured maximum")
)

// Frame is one decoded message unit.
type Frame struct {
	ID   uint16
	Body []byte
}

// Encode renders f as wire bytes: [id][len][body].
func Encode(f Frame) []byte {
	out := make([]byte, HeaderLen+len(f.Body))
	binary.BigEndian.PutUint16(out[0:2], f.ID)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(f.Body)))
	copy(out[HeaderLen:], f.Body)
	return out
}
