/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
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

// Package console prints the small colored startup banner each binary in
// this module shows before it starts serving.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
)

// Banner prints name/version/addr between two fixed-width dashed rules,
// with the name in bold cyan.
func Banner(out io.Writer, name, version, addr string) {
	if out == nil {
		out = colorable.NewColorableStdout()
	}

	bold := color.New(color.FgCyan, color.Bold)
	line := strings.Repeat("-", 48)

	_, _ = fmt.Fprintln(out, line)
	_, _ = bold.Fprintf(out, " %s\n", name)
	_, _ = fmt.Fprintf(out, " version: %s\n", version)
	if addr != "" {
		_, _ = fmt.Fprintf(out, " listen:  %s\n", addr)
	}
	_, _ = fmt.Fprintln(out, line)
}
