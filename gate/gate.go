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

// Package gate implements the Gate HTTP surface: JSON over
// HTTP/1.1, every response shaped {"error": int, ...}, using gin-gonic/gin
// for routing and go-playground/validator for request-body validation.
// The numeric error codes below (1001-1011) are the wire contract itself,
// not this module's internal per-package errors.CodeError ranges, so
// they're declared as their own constants instead of offset from
// errors.MinPkgGate.
package gate

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	liberr "github.com/nabbar/imcore/errors"
	"github.com/nabbar/imcore/rpcpool"
)

const (
	CodeSuccess            liberr.CodeError = 0
	CodeJSONParseError     liberr.CodeError = 1001
	CodeRPCFailed          liberr.CodeError = 1002
	CodeVarifyExpired      liberr.CodeError = 1003
	CodeVarifyCodeErr      liberr.CodeError = 1004
	CodeUserExist          liberr.CodeError = 1005
	CodePasswdErr          liberr.CodeError = 1006
	CodeEmailNotMatch      liberr.CodeError = 1007
	CodePasswdUpdateFailed liberr.CodeError = 1008
	CodePasswdInvalid      liberr.CodeError = 1009
	CodeTokenInvalid       liberr.CodeError = 1010
	CodeUidInvalid         liberr.CodeError = 1011
)

func init() {
	for code, msg := range map[liberr.CodeError]string{
		CodeSuccess:            "success",
		CodeJSONParseError:     "invalid request body",
		CodeRPCFailed:          "upstream RPC failed",
		CodeVarifyExpired:      "verification code expired",
		CodeVarifyCodeErr:      "verification code incorrect",
		CodeUserExist:          "user already exists",
		CodePasswdErr:          "incorrect password",
		CodeEmailNotMatch:      "email does not match",
		CodePasswdUpdateFailed: "password update failed",
		CodePasswdInvalid:      "password does not meet requirements",
		CodeTokenInvalid:       "token invalid",
		CodeUidInvalid:         "uid invalid",
	} {
		liberr.RegisterMessage(code, msg)
	}
}

// UserStore is the subset of dal.Store the Gate needs, named as an
// interface so handlers are testable without a live MySQL pool.
type UserStore interface {
	RegisterUser(ctx context.Context, name, email, pwd string) (int64, error)
	CheckPassword(ctx context.Context, email, pwd string) (*UserInfo, error)
	GetUserByName(ctx context.Context, name string) (*UserInfo, error)
	UpdatePassword(ctx context.Context, name, pwd string) error
}

// UserInfo mirrors dal.UserInfo's exported shape without importing gorm
// transitively into this package.
type UserInfo struct {
	UID   int64
	Name  string
	Email string
}

// VarifyCoder issues and checks the email verification code flow, which is
// forwarded to an external verification service over RPC rather than
// sending mail itself: SMTP delivery is out of scope here.
type VarifyCoder interface {
	Send(email string) error
	Check(email, code string) bool
}

// Server wires the Gate's HTTP routes onto a gin.Engine.
type Server struct {
	engine    *gin.Engine
	users     UserStore
	varify    VarifyCoder
	statusRPC *rpcpool.Pool
}

// New builds a Gate Server. varify and statusRPC may be nil in tests that
// only exercise validation and routing.
func New(users UserStore, varify VarifyCoder, statusRPC *rpcpool.Pool) *Server {
	s := &Server{engine: gin.New(), users: users, varify: varify, statusRPC: statusRPC}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

// Engine exposes the underlying gin.Engine for cmd/gateserver to run.
func (s *Server) Engine() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.POST("/get_verifycode", s.handleGetVerifyCode)
	s.engine.POST("/user_register", s.handleUserRegister)
	s.engine.POST("/reset_pwd", s.handleResetPwd)
	s.engine.POST("/user_login", s.handleUserLogin)
}

func reply(ctx *gin.Context, code liberr.CodeError, extra gin.H) {
	liberr.GinReply(ctx, liberr.New(code), extra)
}
