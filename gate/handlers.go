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

package gate

import (
	"github.com/gin-gonic/gin"

	liberr "github.com/nabbar/imcore/errors"
	"github.com/nabbar/imcore/rpcpool"
)

// codeDuplicateUser is package dal's ErrDuplicateUser code
// (errors.MinPkgDal + 1). Compared by code rather than by importing
// package dal directly, which would pull gorm into this package.
const codeDuplicateUser = liberr.MinPkgDal + 1

type getVerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (s *Server) handleGetVerifyCode(ctx *gin.Context) {
	var req getVerifyCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		reply(ctx, CodeJSONParseError, nil)
		return
	}

	if s.varify == nil {
		reply(ctx, CodeRPCFailed, nil)
		return
	}
	if err := s.varify.Send(req.Email); err != nil {
		reply(ctx, CodeRPCFailed, nil)
		return
	}

	reply(ctx, CodeSuccess, nil)
}

type userRegisterRequest struct {
	User       string `json:"user" binding:"required,min=3,max=32"`
	Email      string `json:"email" binding:"required,email"`
	Passwd     string `json:"passwd" binding:"required,min=6"`
	Confirm    string `json:"confirm" binding:"required"`
	VarifyCode string `json:"varifycode" binding:"required"`
}

func (s *Server) handleUserRegister(ctx *gin.Context) {
	var req userRegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		reply(ctx, CodeJSONParseError, nil)
		return
	}
	if req.Passwd != req.Confirm {
		reply(ctx, CodePasswdInvalid, nil)
		return
	}
	if s.varify == nil || !s.varify.Check(req.Email, req.VarifyCode) {
		reply(ctx, CodeVarifyCodeErr, nil)
		return
	}

	uid, err := s.users.RegisterUser(ctx.Request.Context(), req.User, req.Email, req.Passwd)
	if err != nil {
		if c, ok := err.(liberr.Error); ok && c.Code() == codeDuplicateUser {
			reply(ctx, CodeUserExist, nil)
			return
		}
		reply(ctx, CodeRPCFailed, nil)
		return
	}

	reply(ctx, CodeSuccess, gin.H{"uid": uid})
}

type resetPwdRequest struct {
	Email      string `json:"email" binding:"required,email"`
	User       string `json:"user" binding:"required"`
	Passwd     string `json:"passwd" binding:"required,min=6"`
	VarifyCode string `json:"varifycode" binding:"required"`
}

func (s *Server) handleResetPwd(ctx *gin.Context) {
	var req resetPwdRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		reply(ctx, CodeJSONParseError, nil)
		return
	}

	info, err := s.users.GetUserByName(ctx.Request.Context(), req.User)
	if err != nil {
		reply(ctx, CodePasswdUpdateFailed, nil)
		return
	}
	if info.Email != req.Email {
		reply(ctx, CodeEmailNotMatch, nil)
		return
	}
	if s.varify == nil || !s.varify.Check(req.Email, req.VarifyCode) {
		reply(ctx, CodeVarifyCodeErr, nil)
		return
	}

	if err := s.users.UpdatePassword(ctx.Request.Context(), req.User, req.Passwd); err != nil {
		reply(ctx, CodePasswdUpdateFailed, nil)
		return
	}

	reply(ctx, CodeSuccess, nil)
}

type userLoginRequest struct {
	Email  string `json:"email" binding:"required,email"`
	Passwd string `json:"passwd" binding:"required"`
}

type getChatServerRequest struct {
	UID int64 `json:"uid"`
}

type getChatServerReply struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Token string `json:"token"`
	Error int    `json:"error"`
}

// handleUserLogin checks the caller's credentials, then places them on a
// Chat instance by asking Status for the least-loaded one and the one-time
// token the client presents back in its chat Login frame.
func (s *Server) handleUserLogin(ctx *gin.Context) {
	var req userLoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		reply(ctx, CodeJSONParseError, nil)
		return
	}

	info, err := s.users.CheckPassword(ctx.Request.Context(), req.Email, req.Passwd)
	if err != nil {
		reply(ctx, CodePasswdErr, nil)
		return
	}

	out := gin.H{"uid": info.UID, "name": info.Name}

	// A nil statusRPC (tests, or a Gate deployment with no Status instance
	// reachable yet) degrades to returning credentials only: the client
	// simply has no chat-instance assignment until it tries again.
	if s.statusRPC != nil {
		var placement getChatServerReply
		if err := s.statusRPC.Request(ctx.Request.Context(), rpcpool.SubjectGetChatServer, getChatServerRequest{UID: info.UID}, &placement); err != nil || placement.Error != 0 {
			reply(ctx, CodeRPCFailed, nil)
			return
		}
		out["host"] = placement.Host
		out["port"] = placement.Port
		out["token"] = placement.Token
	}

	reply(ctx, CodeSuccess, out)
}
