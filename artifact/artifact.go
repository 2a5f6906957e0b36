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

// Package artifact emits the per-build security documents: the
// serialized configuration, the flat header map, a generated runtime
// escape helper and a deployment guide for common reverse proxies.
//
// Artifacts are written once per build and read by the deployment
// layer. The server secret never appears in any of them.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DocVersion is the top-level version field of the emitted documents.
const DocVersion = 1

// File names written by Emit.
const (
	ConfigFile  = "security-config.json"
	HeadersFile = "security-headers.json"
	RuntimeFile = "websecure-runtime.js"
	GuideFile   = "SECURITY-HEADERS.md"
)

// Config is the once-per-build security configuration consumed by the
// HTTP layer and the generated runtime. Immutable after generation.
type Config struct {
	Version            int    `json:"version"`
	GeneratedAt        string `json:"generated_at"`
	CSPMode            string `json:"csp_mode"`
	TokenExpirySeconds int64  `json:"token_expiry_seconds"`
	CookieName         string `json:"cookie_name"`
	HeaderName         string `json:"header_name"`
	EscapeHTML         bool   `json:"escape_html"`
	ValidateURLs       bool   `json:"validate_urls"`
}

// Headers returns the flat header map attached to every response. An
// empty cspHeader omits the Content-Security-Policy entry.
func Headers(cspHeader string) map[string]string {
	h := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
		"X-XSS-Protection":       "0",
	}
	if cspHeader != "" {
		h["Content-Security-Policy"] = cspHeader
	}
	return h
}

type headersDoc struct {
	Version     int               `json:"version"`
	GeneratedAt string            `json:"generated_at"`
	Headers     map[string]string `json:"headers"`
}

// Emit writes all four artifacts into dir, creating it if needed. The
// config's Version and GeneratedAt fields are filled in here so callers
// only describe the build.
func Emit(dir string, cfg Config, cspHeader string, now time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact: creating output dir: %w", err)
	}
	cfg.Version = DocVersion
	cfg.GeneratedAt = now.UTC().Format(time.RFC3339)
	if err := writeJSON(filepath.Join(dir, ConfigFile), cfg); err != nil {
		return err
	}
	doc := headersDoc{
		Version:     DocVersion,
		GeneratedAt: cfg.GeneratedAt,
		Headers:     Headers(cspHeader),
	}
	if err := writeJSON(filepath.Join(dir, HeadersFile), doc); err != nil {
		return err
	}
	if err := WriteRuntimeHelper(filepath.Join(dir, RuntimeFile)); err != nil {
		return err
	}
	return WriteDeploymentGuide(filepath.Join(dir, GuideFile), doc.Headers)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("artifact: writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
