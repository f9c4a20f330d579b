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

package frame

import "encoding/binary"

// State is the ingress state of one connection's decoder: Idle,
// ReadingHeader, or ReadingBody.
type State int

const (
	Idle State = iota
	ReadingHeader
	ReadingBody
)

// Decoder is a push-based implementation of the framing state machine: it
// never reads from a socket itself, so it is exercised the same way
// whether a connection delivers a frame in one Write or splits it across
// one byte per segment.
type Decoder struct {
	state   State
	maxBody int

	hdr    [HeaderLen]byte
	hdrLen int

	id      uint16
	bodyLen uint16
	body    []byte
	bodyPos int
}

// NewDecoder returns a Decoder that rejects bodies longer than maxBody. A
// maxBody of 0 falls back to DefaultMaxBody.
func NewDecoder(maxBody int) *Decoder {
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	return &Decoder{state: Idle, maxBody: maxBody}
}

// State reports the decoder's current ingress state.
func (d *Decoder) State() State {
	return d.state
}

// Feed appends p to the in-progress parse and returns every frame that
// became complete as a result, in arrival order. It never transitions
// ReadingBody back to Idle without completing exactly one frame.
// ErrOversize is terminal: the caller must close the connection, since the
// stream is now desynchronized from the framing boundary.
func (d *Decoder) Feed(p []byte) ([]Frame, error) {
	var out []Frame

	for len(p) > 0 {
		switch d.state {
		case Idle:
			d.hdrLen = 0
			d.state = ReadingHeader
			fallthrough

		case ReadingHeader:
			n := copy(d.hdr[d.hdrLen:], p)
			d.hdrLen += n
			p = p[n:]

			if d.hdrLen < HeaderLen {
				return out, nil
			}

			d.id = binary.BigEndian.Uint16(d.hdr[0:2])
			d.bodyLen = binary.BigEndian.Uint16(d.hdr[2:4])

			if int(d.bodyLen) > d.maxBody {
				d.state = Idle
				return out, ErrOversize
			}

			if d.bodyLen == 0 {
				out = append(out, Frame{ID: d.id})
				d.state = Idle
				continue
			}

			d.body = make([]byte, d.bodyLen)
			d.bodyPos = 0
			d.state = ReadingBody

		case ReadingBody:
			n := copy(d.body[d.bodyPos:], p)
			d.bodyPos += n
			p = p[n:]

			if d.bodyPos < len(d.body) {
				return out, nil
			}

			out = append(out, Frame{ID: d.id, Body: d.body})
			d.state = Idle
		}
	}

	return out, nil
}
