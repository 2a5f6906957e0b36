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

// Package csrf issues and validates stateless, signed, time-bound
// tokens for double-submit Cross-Site Request Forgery protection.
//
// A token is base64("{issuedAt}:{nonce}:{signature}") where issuedAt is
// seconds since the epoch, nonce is random, and signature is an
// HMAC-SHA-256 over "{issuedAt}:{nonce}" under a key derived from the
// server secret. Validity is entirely self-contained in the token plus
// the secret: there is no server-side token store, so validation scales
// across workers with no coordination.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Rejection taxonomy. The request layer maps every one of these to the
// same uniform client response; the distinct values exist for logging
// and metrics, never for the client.
var (
	// ErrTokenMalformed marks a structurally invalid token: bad
	// encoding, wrong field count, or fields that fail strict decoding.
	ErrTokenMalformed = errors.New("csrf: token malformed")
	// ErrTokenExpired marks a well-formed, correctly signed token past
	// its expiry window.
	ErrTokenExpired = errors.New("csrf: token expired")
	// ErrTokenMismatch marks a double-submit failure: the cookie and
	// submitted tokens differ. This is the primary attack signal.
	ErrTokenMismatch = errors.New("csrf: cookie and submitted token differ")
	// ErrSignatureInvalid marks a token whose signature does not verify
	// under any accepted secret.
	ErrSignatureInvalid = errors.New("csrf: signature invalid")
)

const (
	// nonceSize is the size of token nonces in bytes. The format
	// requires at least 16; 20 was picked to be future proof.
	nonceSize = 20

	// DefaultExpiry is the token validity window in seconds.
	DefaultExpiry = 3600
)

var randReader = rand.Reader

// Manager issues and validates tokens under a Keyring. A zero Expiry
// means DefaultExpiry. Managers hold no mutable state and are safe for
// unbounded concurrent use.
type Manager struct {
	Keys *Keyring
	// Expiry bounds the replay window, in seconds.
	Expiry int64
}

func (m Manager) expiry() int64 {
	if m.Expiry == 0 {
		return DefaultExpiry
	}
	return m.Expiry
}

// Issue mints a fresh token at now (seconds since the epoch) under the
// keyring's current secret.
func (m Manager) Issue(now int64) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return "", fmt.Errorf("csrf: reading nonce entropy: %w", err)
	}
	payload := strconv.FormatInt(now, 10) + ":" + base64.RawURLEncoding.EncodeToString(nonce)
	sig := sign(m.Keys.current, payload)
	raw := payload + ":" + base64.RawURLEncoding.EncodeToString(sig)
	return base64.StdEncoding.EncodeToString([]byte(raw)), nil
}

// Validate checks a double-submit token pair. The checks run in a fixed
// order:
//
//  1. cookieToken and submittedToken must be byte-equal, compared in
//     constant time (ErrTokenMismatch),
//  2. the token must decode to exactly three fields (ErrTokenMalformed),
//  3. the signature must verify under the current secret, or the
//     previous one during a rotation grace window, again in constant
//     time (ErrSignatureInvalid),
//  4. now - issuedAt must not exceed the expiry window (ErrTokenExpired).
//
// Only a token passing all four checks is accepted.
func (m Manager) Validate(cookieToken, submittedToken string, now int64) error {
	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submittedToken)) != 1 {
		return ErrTokenMismatch
	}
	issuedAt, payload, sig, err := decode(cookieToken)
	if err != nil {
		return err
	}
	if !verify(m.Keys.current, payload, sig) &&
		(m.Keys.previous == nil || !verify(m.Keys.previous, payload, sig)) {
		return ErrSignatureInvalid
	}
	if now-issuedAt > m.expiry() {
		return ErrTokenExpired
	}
	return nil
}

// decode splits a token into its issue time, the signed payload and the
// signature. Decoding is strict and fails closed: any encoding slack or
// field-count surprise is ErrTokenMalformed, never a best-effort parse.
func decode(token string) (issuedAt int64, payload string, sig []byte, err error) {
	// Strict decoding rejects non-zero padding bits. Without it a bit
	// flip inside the padding slack of the final group would decode to
	// the same bytes and slip past tamper detection.
	raw, err := base64.StdEncoding.Strict().DecodeString(token)
	if err != nil {
		return 0, "", nil, ErrTokenMalformed
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return 0, "", nil, ErrTokenMalformed
	}
	issuedAt, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", nil, ErrTokenMalformed
	}
	nonce, err := base64.RawURLEncoding.Strict().DecodeString(parts[1])
	if err != nil || len(nonce) < 16 {
		return 0, "", nil, ErrTokenMalformed
	}
	sig, err = base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil || len(sig) != sha256.Size {
		return 0, "", nil, ErrTokenMalformed
	}
	return issuedAt, parts[0] + ":" + parts[1], sig, nil
}

func sign(key []byte, payload string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// verify recomputes the payload MAC and compares it to sig. hmac.Equal
// is constant time, so the comparison leaks nothing about where the
// first mismatching byte sits.
func verify(key []byte, payload string, sig []byte) bool {
	return hmac.Equal(sig, sign(key, payload))
}
