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

package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestHeaders(t *testing.T) {
	got := Headers("default-src 'self'")
	want := map[string]string{
		"Content-Security-Policy": "default-src 'self'",
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"X-XSS-Protection":        "0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Headers() mismatch (-want +got):\n%s", diff)
	}

	if _, ok := Headers("")["Content-Security-Policy"]; ok {
		t.Error("Headers(\"\") still contains a Content-Security-Policy entry")
	}
}

func TestEmit(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CSPMode:            "prod",
		TokenExpirySeconds: 3600,
		CookieName:         "_csrf",
		HeaderName:         "X-CSRF-Token",
		EscapeHTML:         true,
		ValidateURLs:       true,
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := Emit(dir, cfg, "default-src 'self'", now); err != nil {
		t.Fatalf("Emit() failed: %v", err)
	}

	for _, name := range []string{ConfigFile, HeadersFile, RuntimeFile, GuideFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Emit() did not write %s: %v", name, err)
		}
	}

	var gotCfg Config
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	if err := json.Unmarshal(data, &gotCfg); err != nil {
		t.Fatalf("decoding config: %v", err)
	}
	if gotCfg.Version != DocVersion {
		t.Errorf("config version got: %d want: %d", gotCfg.Version, DocVersion)
	}
	if gotCfg.GeneratedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("config timestamp got: %q", gotCfg.GeneratedAt)
	}
	if gotCfg.TokenExpirySeconds != 3600 || gotCfg.CSPMode != "prod" {
		t.Errorf("config fields lost: %+v", gotCfg)
	}

	var doc struct {
		Version int               `json:"version"`
		Headers map[string]string `json:"headers"`
	}
	data, err = os.ReadFile(filepath.Join(dir, HeadersFile))
	if err != nil {
		t.Fatalf("reading headers doc: %v", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decoding headers doc: %v", err)
	}
	if doc.Headers["X-Content-Type-Options"] != "nosniff" {
		t.Errorf("headers doc missing nosniff: %+v", doc.Headers)
	}
}

func TestRuntimeHelperMirrorsEscapeEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), RuntimeFile)
	if err := WriteRuntimeHelper(path); err != nil {
		t.Fatalf("WriteRuntimeHelper() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading runtime helper: %v", err)
	}
	js := string(data)
	for _, want := range []string{
		"'&amp;'",
		"'&#x27;'",
		"'javascript:'",
		"'about:invalid#blocked'",
		"escapeHtml",
		"isSafeUrl",
	} {
		if !strings.Contains(js, want) {
			t.Errorf("runtime helper missing %q", want)
		}
	}
	// The ampersand rule must come first in the generated table too.
	if strings.Index(js, "'&amp;'") > strings.Index(js, "'&lt;'") {
		t.Error("generated escape table lost its ordering")
	}
}

func TestDeploymentGuide(t *testing.T) {
	path := filepath.Join(t.TempDir(), GuideFile)
	if err := WriteDeploymentGuide(path, Headers("default-src 'self'")); err != nil {
		t.Fatalf("WriteDeploymentGuide() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading guide: %v", err)
	}
	guide := string(data)
	for _, want := range []string{
		`add_header X-Frame-Options "DENY" always;`,
		`Header always set X-Content-Type-Options "nosniff"`,
		"default-src 'self'",
		"## Caddy",
	} {
		if !strings.Contains(guide, want) {
			t.Errorf("guide missing %q", want)
		}
	}
}
