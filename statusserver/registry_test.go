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

package statusserver_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/imcore/statusserver"
)

func TestStatusServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "statusserver suite")
}

var _ = Describe("Registry", func() {
	It("places a uid on the least loaded of several heartbeating instances", func() {
		r := statusserver.NewRegistry()
		r.Heartbeat(statusserver.ChatInstance{Name: "a", Host: "10.0.0.1", Port: 9001}, 40)
		r.Heartbeat(statusserver.ChatInstance{Name: "b", Host: "10.0.0.2", Port: 9001}, 5)
		r.Heartbeat(statusserver.ChatInstance{Name: "c", Host: "10.0.0.3", Port: 9001}, 17)

		inst, err := r.LeastLoaded()
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Name).To(Equal("b"))
	})

	It("returns ErrNoChatInstance when nothing has ever registered", func() {
		r := statusserver.NewRegistry()
		_, err := r.LeastLoaded()
		Expect(err).To(MatchError(statusserver.ErrNoChatInstance))
	})

	It("forgets an instance once Remove is called", func() {
		r := statusserver.NewRegistry()
		r.Heartbeat(statusserver.ChatInstance{Name: "solo"}, 0)
		Expect(r.Count()).To(Equal(1))

		r.Remove("solo")
		Expect(r.Count()).To(Equal(0))

		_, err := r.LeastLoaded()
		Expect(err).To(MatchError(statusserver.ErrNoChatInstance))
	})
})
