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
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinAbort writes the Error as the JSON body and aborts the gin context
// with httpCode. Logic-level errors (unknown user, bad password, ...) never
// need this: they still answer 200 with a non-zero "error" field, per the
// Gate HTTP contract. This is reserved for transport-level failures.
func GinAbort(ctx *gin.Context, httpCode int, err Error) {
	ctx.Data(httpCode, "application/json; charset=utf-8", err.JSON())
	ctx.Abort()
}

// GinReply writes a 200 response carrying the given Error (or success, when
// err is nil) merged with extra fields.
func GinReply(ctx *gin.Context, err Error, extra gin.H) {
	if extra == nil {
		extra = gin.H{}
	}

	if err == nil {
		extra["error"] = 0
	} else {
		extra["error"] = int(err.Code())
	}

	ctx.JSON(http.StatusOK, extra)
}
