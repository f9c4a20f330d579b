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

package gate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	liberr "github.com/nabbar/imcore/errors"
	"github.com/nabbar/imcore/gate"
)

// codeDuplicateUser mirrors the value gate/handlers.go compares against
// (errors.MinPkgDal + 1), kept local so this test doesn't need package dal.
const codeDuplicateUser = liberr.MinPkgDal + 1

func TestGate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "gate suite")
}

type fakeUsers struct {
	byName map[string]*gate.UserInfo
	byMail map[string]*gate.UserInfo
	pwd    map[string]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byName: map[string]*gate.UserInfo{}, byMail: map[string]*gate.UserInfo{}, pwd: map[string]string{}}
}

func (f *fakeUsers) RegisterUser(_ context.Context, name, email, pwd string) (int64, error) {
	if _, ok := f.byName[name]; ok {
		return 0, liberr.New(codeDuplicateUser)
	}
	uid := int64(len(f.byName) + 1)
	u := &gate.UserInfo{UID: uid, Name: name, Email: email}
	f.byName[name] = u
	f.byMail[email] = u
	f.pwd[name] = pwd
	return uid, nil
}

func (f *fakeUsers) CheckPassword(_ context.Context, email, pwd string) (*gate.UserInfo, error) {
	u, ok := f.byMail[email]
	if !ok || f.pwd[u.Name] != pwd {
		return nil, notFoundErr{}
	}
	return u, nil
}

func (f *fakeUsers) GetUserByName(_ context.Context, name string) (*gate.UserInfo, error) {
	u, ok := f.byName[name]
	if !ok {
		return nil, notFoundErr{}
	}
	return u, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, name, pwd string) error {
	if _, ok := f.byName[name]; !ok {
		return notFoundErr{}
	}
	f.pwd[name] = pwd
	return nil
}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

type fakeVarify struct{ ok bool }

func (f fakeVarify) Send(string) error       { return nil }
func (f fakeVarify) Check(string, string) bool { return f.ok }

func post(h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}

var _ = Describe("Gate HTTP surface", func() {
	It("registers a new user and rejects a duplicate with CodeUserExist", func() {
		users := newFakeUsers()
		s := gate.New(users, fakeVarify{ok: true}, nil)

		body := map[string]interface{}{
			"user": "alice", "email": "alice@example.com",
			"passwd": "s3cret1", "confirm": "s3cret1", "varifycode": "000000",
		}

		rec := post(s.Engine(), "/user_register", body)
		Expect(rec.Code).To(Equal(http.StatusOK))
		out := decode(rec)
		Expect(out["error"]).To(BeNumerically("==", 0))

		rec2 := post(s.Engine(), "/user_register", body)
		out2 := decode(rec2)
		Expect(out2["error"]).To(BeNumerically("==", gate.CodeUserExist))
	})

	It("rejects registration when passwd and confirm do not match", func() {
		users := newFakeUsers()
		s := gate.New(users, fakeVarify{ok: true}, nil)

		body := map[string]interface{}{
			"user": "bob", "email": "bob@example.com",
			"passwd": "s3cret1", "confirm": "different", "varifycode": "000000",
		}

		rec := post(s.Engine(), "/user_register", body)
		out := decode(rec)
		Expect(out["error"]).To(BeNumerically("==", gate.CodePasswdInvalid))
	})

	It("rejects a malformed JSON body with CodeJSONParseError", func() {
		users := newFakeUsers()
		s := gate.New(users, fakeVarify{ok: true}, nil)

		req := httptest.NewRequest(http.MethodPost, "/user_login", bytes.NewReader([]byte("not json")))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Engine().ServeHTTP(rec, req)

		out := decode(rec)
		Expect(out["error"]).To(BeNumerically("==", gate.CodeJSONParseError))
	})

	It("logs a user in and returns their uid and name", func() {
		users := newFakeUsers()
		s := gate.New(users, fakeVarify{ok: true}, nil)

		_, _ = users.RegisterUser(context.Background(), "carol", "carol@example.com", "p4ssword")

		rec := post(s.Engine(), "/user_login", map[string]interface{}{
			"email": "carol@example.com", "passwd": "p4ssword",
		})
		out := decode(rec)
		Expect(out["error"]).To(BeNumerically("==", 0))
		Expect(out["name"]).To(Equal("carol"))
	})

	It("rejects a bad login password with CodePasswdErr", func() {
		users := newFakeUsers()
		s := gate.New(users, fakeVarify{ok: true}, nil)
		_, _ = users.RegisterUser(context.Background(), "dave", "dave@example.com", "correct")

		rec := post(s.Engine(), "/user_login", map[string]interface{}{
			"email": "dave@example.com", "passwd": "wrong",
		})
		out := decode(rec)
		Expect(out["error"]).To(BeNumerically("==", gate.CodePasswdErr))
	})

	It("resets a password and allows login with the new one", func() {
		users := newFakeUsers()
		s := gate.New(users, fakeVarify{ok: true}, nil)
		_, _ = users.RegisterUser(context.Background(), "erin", "erin@example.com", "oldpass")

		rec := post(s.Engine(), "/reset_pwd", map[string]interface{}{
			"email": "erin@example.com", "user": "erin", "passwd": "newpass1", "varifycode": "000000",
		})
		out := decode(rec)
		Expect(out["error"]).To(BeNumerically("==", 0))

		rec2 := post(s.Engine(), "/user_login", map[string]interface{}{
			"email": "erin@example.com", "passwd": "newpass1",
		})
		Expect(decode(rec2)["error"]).To(BeNumerically("==", 0))
	})

	It("rejects reset_pwd when the email does not match the account", func() {
		users := newFakeUsers()
		s := gate.New(users, fakeVarify{ok: true}, nil)
		_, _ = users.RegisterUser(context.Background(), "frank", "frank@example.com", "oldpass")

		rec := post(s.Engine(), "/reset_pwd", map[string]interface{}{
			"email": "wrong@example.com", "user": "frank", "passwd": "newpass1", "varifycode": "000000",
		})
		out := decode(rec)
		Expect(out["error"]).To(BeNumerically("==", gate.CodeEmailNotMatch))
	})
})
