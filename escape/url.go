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

package escape

import (
	"log"
	"strings"
)

// InvalidURLPlaceholder is substituted for rejected URL values so a
// dropped link degrades to a no-op instead of leaking the raw value.
const InvalidURLPlaceholder = "about:invalid#blocked"

// deniedSchemes are checked before any allow rule. A prefix match
// rejects the URL outright.
var deniedSchemes = []string{
	"javascript:",
	"data:",
	"vbscript:",
	"file:",
	"about:",
}

// allowedPrefixes are the URL forms accepted after the deny check.
var allowedPrefixes = []string{
	"http://",
	"https://",
	"//",
	"/",
	"./",
	"../",
	"#",
	"?",
}

// IsSafeURL reports whether raw is acceptable as a URL-valued attribute.
// The value is trimmed and lowercased, matched against the deny list,
// then against the allow list. Anything matching neither allow form is
// rejected: safety fails closed.
func IsSafeURL(raw string) bool {
	u := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range deniedSchemes {
		if strings.HasPrefix(u, s) {
			return false
		}
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	// A value with no scheme at all is a relative reference.
	return !strings.Contains(u, ":")
}

// warnFunc receives each rejected URL. Rejections are a developer
// mistake or an attack, so they should be visible somewhere.
var warnFunc = func(rejected string) {
	log.Printf("escape: unsafe URL rejected: %q", rejected)
}

// SetWarnFunc replaces the hook called with each rejected URL. Passing
// nil silences the warnings. Not safe to call concurrently with SafeURL;
// set it during startup.
func SetWarnFunc(f func(rejected string)) {
	warnFunc = f
}

// SafeURL returns raw when it passes IsSafeURL, and the neutral
// placeholder otherwise.
func SafeURL(raw string) string {
	if IsSafeURL(raw) {
		return raw
	}
	if warnFunc != nil {
		warnFunc(raw)
	}
	return InvalidURLPlaceholder
}

// DeniedSchemes returns a copy of the scheme deny list for build tooling.
func DeniedSchemes() []string {
	out := make([]string, len(deniedSchemes))
	copy(out, deniedSchemes)
	return out
}

// AllowedPrefixes returns a copy of the allow list for build tooling.
func AllowedPrefixes() []string {
	out := make([]string, len(allowedPrefixes))
	copy(out, allowedPrefixes)
	return out
}
