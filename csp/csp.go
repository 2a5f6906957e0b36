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

// Package csp synthesizes Content-Security-Policy directive sets from
// scanned build assets.
//
// Inline script and style bodies become sha256 hash sources, external
// references become origin sources, and a fixed baseline plus caller
// directives are merged on top. The production variant is hash-only;
// the development variant additionally carries a per-process nonce and
// the live-reload transport origin.
package csp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"
)

// AssetKind distinguishes the two inline asset classes.
type AssetKind string

const (
	KindScript AssetKind = "script"
	KindStyle  AssetKind = "style"
)

// Asset is one scanned build output record: an inline body, an external
// resource origin, or both. Assets exist only for a single build pass.
type Asset struct {
	Kind AssetKind
	// Content is the inline body to hash. Empty for purely external
	// references.
	Content []byte
	// ExternalDomain is the origin of an external reference, if any.
	ExternalDomain string
}

// ErrAssetScan marks build-output scanning failures. The assets package
// wraps its errors with it so build callers can decide between aborting
// and falling back to a baseline policy.
var ErrAssetScan = errors.New("csp: asset scan failure")

// Mode selects the policy variant.
type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

// ScanErrorPolicy decides what Synthesize does when the scanner failed.
type ScanErrorPolicy int

const (
	// ScanErrorDefault aborts in prod and warns in dev.
	ScanErrorDefault ScanErrorPolicy = iota
	ScanErrorAbort
	ScanErrorWarn
)

// DefaultLiveReloadOrigin is allow-listed in connect-src in dev mode so
// the dev server's reload socket is reachable.
const DefaultLiveReloadOrigin = "ws://localhost:35729"

var randReader = rand.Reader

// nonceSize is the per-process nonce size in bytes. CSP3 wants at
// least 16; 20 was picked to be future proof.
const nonceSize = 20

var processNonce struct {
	once sync.Once
	val  string
}

// ProcessNonce returns the per-process nonce, generating it on first
// use. Dev policies embed it so the dev server can mark its injected
// live-reload script.
func ProcessNonce() string {
	processNonce.once.Do(func() {
		b := make([]byte, nonceSize)
		if _, err := randReader.Read(b); err != nil {
			panic(fmt.Errorf("csp: failed to generate nonce entropy: %v", err))
		}
		processNonce.val = base64.StdEncoding.EncodeToString(b)
	})
	return processNonce.val
}

// Synthesizer turns scanned build assets into a directive set. The zero
// value synthesizes a production policy.
type Synthesizer struct {
	Mode Mode
	// Custom directives are appended to the baseline without replacing
	// its entries.
	Custom DirectiveSet
	// Override directives replace the directive's sources wholesale.
	Override DirectiveSet
	// LiveReloadOrigin overrides DefaultLiveReloadOrigin in dev mode.
	LiveReloadOrigin string
	OnScanError      ScanErrorPolicy
	// Logf receives scan warnings in warn-and-continue mode. Defaults
	// to log.Printf.
	Logf func(format string, v ...any)
}

func (s *Synthesizer) logf(format string, v ...any) {
	if s.Logf != nil {
		s.Logf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// baseline returns the fixed directives every policy starts from.
func baseline() DirectiveSet {
	d := make(DirectiveSet)
	d.Add(DefaultSrc, SourceSelf)
	d.Add(ObjectSrc, SourceNone)
	d.Add(BaseURI, SourceSelf)
	return d
}

// Synthesize builds the policy for the scanned assets. scanErr is the
// error returned by the scanner, nil when scanning succeeded; on a scan
// failure the policy configured in OnScanError applies: abort returns
// the error, warn logs it and continues with a baseline-only policy.
//
// In prod mode the resulting set must never contain 'unsafe-inline' or
// 'unsafe-eval'; caller directives violating that are an error, not a
// silent fixup.
func (s *Synthesizer) Synthesize(assets []Asset, scanErr error) (DirectiveSet, error) {
	if scanErr != nil {
		if s.abortOnScanError() {
			if errors.Is(scanErr, ErrAssetScan) {
				return nil, scanErr
			}
			return nil, fmt.Errorf("%w: %v", ErrAssetScan, scanErr)
		}
		s.logf("csp: continuing with baseline-only policy: %v", scanErr)
		assets = nil
	}

	d := baseline()
	for _, a := range assets {
		dir := ScriptSrc
		if a.Kind == KindStyle {
			dir = StyleSrc
		}
		if len(a.Content) > 0 {
			sum := sha256.Sum256(a.Content)
			d.Add(dir, HashSource(base64.StdEncoding.EncodeToString(sum[:])))
		}
		if a.ExternalDomain != "" {
			d.Add(dir, a.ExternalDomain)
		}
	}

	for dir, sources := range s.Custom {
		d.Add(dir, sources...)
	}
	for dir, sources := range s.Override {
		d.Set(dir, sources...)
	}

	if s.Mode == ModeDev {
		d.Add(ScriptSrc, Nonce(ProcessNonce()), SourceUnsafeEval)
		origin := s.LiveReloadOrigin
		if origin == "" {
			origin = DefaultLiveReloadOrigin
		}
		d.Add(ConnectSrc, SourceSelf, origin)
		return d, nil
	}

	for dir, sources := range d {
		for _, src := range sources {
			if src == SourceUnsafeInline || src == SourceUnsafeEval {
				return nil, fmt.Errorf("csp: %s not allowed in a production policy (directive %s)", src, dir)
			}
		}
	}
	return d, nil
}

func (s *Synthesizer) abortOnScanError() bool {
	switch s.OnScanError {
	case ScanErrorAbort:
		return true
	case ScanErrorWarn:
		return false
	default:
		return s.Mode != ModeDev
	}
}
