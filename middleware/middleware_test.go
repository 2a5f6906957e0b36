// Copyright 2025 The websecure Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/websecure-dev/websecure/csrf"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testHandler(t *testing.T) *Handler {
	t.Helper()
	keys, err := csrf.NewKeyring(testSecret)
	if err != nil {
		t.Fatalf("NewKeyring() failed: %v", err)
	}
	return &Handler{
		Tokens:    csrf.Manager{Keys: keys},
		CSPHeader: "default-src 'self'",
		Now:       func() time.Time { return time.Unix(1000, 0) },
		Logf:      func(string, ...any) {},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
}

func issueToken(t *testing.T, h *Handler) string {
	t.Helper()
	tok, err := h.Tokens.Issue(1000)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	return tok
}

func TestSafeMethodAttachesHeadersAndToken(t *testing.T) {
	h := testHandler(t)
	rec := httptest.NewRecorder()
	h.Wrap(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET got status %d, want 200", rec.Code)
	}
	wantHeaders := map[string]string{
		"Content-Security-Policy": "default-src 'self'",
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
	}
	for name, want := range wantHeaders {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("header %s got: %q want: %q", name, got, want)
		}
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("GET set %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != DefaultCookieName {
		t.Errorf("cookie name got: %q want: %q", c.Name, DefaultCookieName)
	}
	if !c.HttpOnly || c.SameSite != http.SameSiteStrictMode || !c.Secure {
		t.Errorf("cookie attributes wrong: HttpOnly=%v SameSite=%v Secure=%v", c.HttpOnly, c.SameSite, c.Secure)
	}
	if err := h.Tokens.Validate(c.Value, c.Value, 1000); err != nil {
		t.Errorf("issued cookie does not validate: %v", err)
	}
}

func TestSafeMethodKeepsValidCookie(t *testing.T) {
	h := testHandler(t)
	tok := issueToken(t, h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tok})
	rec := httptest.NewRecorder()
	h.Wrap(okHandler()).ServeHTTP(rec, req)

	if len(rec.Result().Cookies()) != 0 {
		t.Error("a valid cookie was replaced on a safe request")
	}
}

func TestSafeMethodReplacesExpiredCookie(t *testing.T) {
	h := testHandler(t)
	tok := issueToken(t, h)
	h.Now = func() time.Time { return time.Unix(1000+3601, 0) }

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tok})
	rec := httptest.NewRecorder()
	h.Wrap(okHandler()).ServeHTTP(rec, req)

	if len(rec.Result().Cookies()) != 1 {
		t.Error("an expired cookie was not replaced on a safe request")
	}
}

func TestUnsafeMethodWithHeaderToken(t *testing.T) {
	h := testHandler(t)
	tok := issueToken(t, h)

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tok})
	req.Header.Set(DefaultHeaderName, tok)
	rec := httptest.NewRecorder()
	h.Wrap(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("POST with valid tokens got status %d, want 200", rec.Code)
	}
}

func TestUnsafeMethodWithFormToken(t *testing.T) {
	h := testHandler(t)
	tok := issueToken(t, h)

	form := url.Values{DefaultFormField: {tok}}
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tok})
	rec := httptest.NewRecorder()
	h.Wrap(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("POST with form token got status %d, want 200", rec.Code)
	}
}

// Every rejection cause must produce the same status and body, so a
// probing client cannot learn which check failed.
func TestRejectionsAreUniform(t *testing.T) {
	h := testHandler(t)
	tok := issueToken(t, h)
	other := issueToken(t, h)

	makeReq := func(cookie, submitted string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: cookie})
		}
		if submitted != "" {
			req.Header.Set(DefaultHeaderName, submitted)
		}
		return req
	}

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"NoTokens", makeReq("", "")},
		{"MissingSubmitted", makeReq(tok, "")},
		{"Mismatch", makeReq(tok, other)},
		{"Malformed", makeReq("garbage", "garbage")},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Wrap(okHandler()).ServeHTTP(rec, tt.req)
			if rec.Code != http.StatusForbidden {
				t.Errorf("got status %d, want 403", rec.Code)
			}
			bodies = append(bodies, rec.Body.String())
		})
	}
	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("rejection bodies differ between causes: %q vs %q", bodies[0], bodies[i])
		}
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	h := testHandler(t)
	tok := issueToken(t, h)
	h.Now = func() time.Time { return time.Unix(1000+3601, 0) }

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tok})
	req.Header.Set(DefaultHeaderName, tok)
	rec := httptest.NewRecorder()
	h.Wrap(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expired token got status %d, want 403", rec.Code)
	}
}

func TestRejectionMetrics(t *testing.T) {
	h := testHandler(t)
	h.Metrics = NewMetrics(prometheus.NewRegistry())
	tok := issueToken(t, h)
	other := issueToken(t, h)

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tok})
	req.Header.Set(DefaultHeaderName, other)
	rec := httptest.NewRecorder()
	h.Wrap(okHandler()).ServeHTTP(rec, req)

	if got := testutil.ToFloat64(h.Metrics.Rejections.WithLabelValues("mismatch")); got != 1 {
		t.Errorf("mismatch rejections counter got: %v want: 1", got)
	}
	if got := testutil.ToFloat64(h.Metrics.Rejections.WithLabelValues("expired")); got != 0 {
		t.Errorf("expired rejections counter got: %v want: 0", got)
	}
}

func TestIssueTokenForSession(t *testing.T) {
	h := testHandler(t)
	rec := httptest.NewRecorder()
	tok, err := h.IssueTokenForSession(rec)
	if err != nil {
		t.Fatalf("IssueTokenForSession() failed: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != tok {
		t.Errorf("returned token and cookie value disagree")
	}
}

func TestCustomWireNames(t *testing.T) {
	h := testHandler(t)
	h.CookieName = "app_csrf"
	h.HeaderName = "X-App-Token"
	tok := issueToken(t, h)

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: "app_csrf", Value: tok})
	req.Header.Set("X-App-Token", tok)
	rec := httptest.NewRecorder()
	h.Wrap(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("POST with custom wire names got status %d, want 200", rec.Code)
	}
}

func TestCurrentCSPHeader(t *testing.T) {
	h := testHandler(t)
	if h.CurrentCSPHeader() != "default-src 'self'" {
		t.Errorf("CurrentCSPHeader() got: %q", h.CurrentCSPHeader())
	}
}
