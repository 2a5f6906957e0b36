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

// Package middleware is the request-time entry point of the security
// subsystem. It wraps an application handler with CSRF enforcement on
// state-changing methods, token issuance on safe ones, and the security
// header set on every response.
//
// Every rejection produces the same 403 body regardless of cause; the
// cause reaches the debug log and the rejection counters only, so a
// probing client gets no oracle about which check failed.
package middleware

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/websecure-dev/websecure/artifact"
	"github.com/websecure-dev/websecure/csrf"
)

// Defaults for the CSRF wire contract.
const (
	DefaultCookieName = "_csrf"
	DefaultHeaderName = "X-CSRF-Token"
	DefaultFormField  = "_csrf"
)

// Handler holds the per-request security configuration. All fields are
// read-only after construction; the handler shares no mutable state
// between requests.
type Handler struct {
	Tokens csrf.Manager
	// CSPHeader is the serialized policy from the last build. Empty
	// omits the Content-Security-Policy header.
	CSPHeader string
	// CookieName, HeaderName and FormField default to the package
	// defaults when empty.
	CookieName string
	HeaderName string
	FormField  string
	// Insecure drops the cookie's Secure attribute for plain-HTTP
	// development setups.
	Insecure bool
	// Now is a test seam; defaults to time.Now.
	Now func() time.Time
	// Metrics enables rejection and issuance counters when non-nil.
	Metrics *Metrics
	// Logf receives debug-level rejection logs. Defaults to log.Printf.
	Logf func(format string, v ...any)
}

func (h *Handler) cookieName() string {
	if h.CookieName == "" {
		return DefaultCookieName
	}
	return h.CookieName
}

func (h *Handler) headerName() string {
	if h.HeaderName == "" {
		return DefaultHeaderName
	}
	return h.HeaderName
}

func (h *Handler) formField() string {
	if h.FormField == "" {
		return DefaultFormField
	}
	return h.FormField
}

func (h *Handler) now() int64 {
	if h.Now != nil {
		return h.Now().Unix()
	}
	return time.Now().Unix()
}

func (h *Handler) logf(format string, v ...any) {
	if h.Logf != nil {
		h.Logf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// safeMethods neither change state nor require a token; they receive
// one instead.
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// Wrap returns next guarded by the security contract. Headers are
// attached before next runs so handlers cannot forget them.
func (h *Handler) Wrap(next http.Handler) http.Handler {
	headers := artifact.Headers(h.CSPHeader)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, value := range headers {
			w.Header().Set(name, value)
		}
		if safeMethods[r.Method] {
			h.ensureToken(w, r)
			next.ServeHTTP(w, r)
			return
		}
		if err := h.validate(r); err != nil {
			h.reject(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentCSPHeader returns the policy value attached to responses.
func (h *Handler) CurrentCSPHeader() string {
	return h.CSPHeader
}

// validate runs the double-submit check for a state-changing request.
// Missing values are deliberately passed through as empty strings so
// every failure takes the same code path.
func (h *Handler) validate(r *http.Request) error {
	var cookieTok string
	if c, err := r.Cookie(h.cookieName()); err == nil {
		cookieTok = c.Value
	}
	submitted := r.Header.Get(h.headerName())
	if submitted == "" {
		submitted = r.PostFormValue(h.formField())
	}
	return h.Tokens.Validate(cookieTok, submitted, h.now())
}

// reject writes the uniform 4xx response. The cause is observable only
// through the debug log and the rejection counters.
func (h *Handler) reject(w http.ResponseWriter, err error) {
	if h.Metrics != nil {
		h.Metrics.Rejections.WithLabelValues(rejectionReason(err)).Inc()
	}
	h.logf("websecure: request rejected: %v", err)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, csrf.ErrTokenMismatch):
		return "mismatch"
	case errors.Is(err, csrf.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, csrf.ErrTokenExpired):
		return "expired"
	case errors.Is(err, csrf.ErrSignatureInvalid):
		return "signature"
	default:
		return "other"
	}
}

// ensureToken makes sure a safe request leaves with a usable token
// cookie, issuing a fresh one when the cookie is absent, malformed or
// expired. Validating the cookie against itself reuses the full check
// chain minus the double-submit comparison.
func (h *Handler) ensureToken(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cookieName()); err == nil {
		if h.Tokens.Validate(c.Value, c.Value, h.now()) == nil {
			return
		}
	}
	if _, err := h.IssueTokenForSession(w); err != nil {
		h.logf("websecure: token issuance failed: %v", err)
	}
}

// IssueTokenForSession mints a token, sets it as the CSRF cookie and
// returns it so the renderer can mirror it into forms or meta tags.
func (h *Handler) IssueTokenForSession(w http.ResponseWriter) (string, error) {
	tok, err := h.Tokens.Issue(h.now())
	if err != nil {
		return "", err
	}
	expiry := h.Tokens.Expiry
	if expiry == 0 {
		expiry = csrf.DefaultExpiry
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    tok,
		Path:     "/",
		MaxAge:   int(expiry),
		HttpOnly: true,
		Secure:   !h.Insecure,
		SameSite: http.SameSiteStrictMode,
	})
	if h.Metrics != nil {
		h.Metrics.TokensIssued.Inc()
	}
	return tok, nil
}
