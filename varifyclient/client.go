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

// Package varifyclient implements gate.VarifyCoder over the same RPC pool
// the rest of this module uses to reach external services: sending and
// checking an email verification code are both request/reply calls to a
// standalone verification service, not something the Gate process does
// itself.
package varifyclient

import (
	"context"

	"github.com/nabbar/imcore/rpcpool"
)

// Client issues verification-code requests over rpc.
type Client struct {
	rpc *rpcpool.Pool
}

// New builds a Client over an already-connected rpc pool.
func New(rpc *rpcpool.Pool) *Client {
	return &Client{rpc: rpc}
}

type sendRequest struct {
	Email string `json:"email"`
}

type sendReply struct {
	Error int `json:"error"`
}

// Send asks the verification service to mail a fresh code to email.
func (c *Client) Send(email string) error {
	var reply sendReply
	if err := c.rpc.Request(context.Background(), rpcpool.SubjectVarifySend, sendRequest{Email: email}, &reply); err != nil {
		return err
	}
	if reply.Error != 0 {
		return errVarifyFailed{}
	}
	return nil
}

type checkRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type checkReply struct {
	Valid bool `json:"valid"`
}

// Check reports whether code is the one currently outstanding for email.
// Any transport failure is treated as an invalid code, never a panic or a
// silently-accepted login.
func (c *Client) Check(email, code string) bool {
	var reply checkReply
	if err := c.rpc.Request(context.Background(), rpcpool.SubjectVarifyCheck, checkRequest{Email: email, Code: code}, &reply); err != nil {
		return false
	}
	return reply.Valid
}

type errVarifyFailed struct{}

func (errVarifyFailed) Error() string { return "varifyclient: send failed" }
