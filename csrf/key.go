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

package csrf

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// minSecretLen is the minimum length of a raw server secret.
const minSecretLen = 16

// keyInfo domain-separates the derived signing key from any other use
// of the same raw secret.
const keyInfo = "websecure/csrf/v1"

// Keyring holds the derived signing key for the active server secret
// and, during a rotation grace window, the key for the secret it
// replaced. A Keyring is read-only after construction and may be shared
// by reference across any number of concurrent validators.
type Keyring struct {
	current  []byte
	previous []byte
}

// NewKeyring derives a signing key from the raw server secret. The
// secret comes from the environment or a secret store; it is never
// written to any generated artifact.
func NewKeyring(secret []byte) (*Keyring, error) {
	cur, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	return &Keyring{current: cur}, nil
}

// NewRotatingKeyring derives keys for both the current secret and the
// one it replaced. Tokens are always issued under the current secret;
// tokens signed under the previous one keep validating until the
// operator drops it.
func NewRotatingKeyring(current, previous []byte) (*Keyring, error) {
	cur, err := deriveKey(current)
	if err != nil {
		return nil, err
	}
	prev, err := deriveKey(previous)
	if err != nil {
		return nil, fmt.Errorf("previous secret: %w", err)
	}
	return &Keyring{current: cur, previous: prev}, nil
}

func deriveKey(secret []byte) ([]byte, error) {
	if len(secret) < minSecretLen {
		return nil, errors.New("csrf: secret must be at least 16 bytes")
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("csrf: deriving signing key: %w", err)
	}
	return key, nil
}
