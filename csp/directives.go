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

package csp

import (
	"sort"
	"strings"
)

// Standard directive names.
const (
	DefaultSrc = "default-src"
	ScriptSrc  = "script-src"
	StyleSrc   = "style-src"
	ImgSrc     = "img-src"
	FontSrc    = "font-src"
	MediaSrc   = "media-src"
	ConnectSrc = "connect-src"
	FrameSrc   = "frame-src"
	ObjectSrc  = "object-src"
	BaseURI    = "base-uri"
	FormAction = "form-action"
)

// Keyword sources, pre-quoted.
const (
	SourceSelf         = "'self'"
	SourceNone         = "'none'"
	SourceUnsafeInline = "'unsafe-inline'"
	SourceUnsafeEval   = "'unsafe-eval'"
)

// Nonce formats a nonce source token.
func Nonce(nonce string) string {
	return "'nonce-" + nonce + "'"
}

// HashSource formats a sha256 hash source token.
func HashSource(b64 string) string {
	return "'sha256-" + b64 + "'"
}

// DirectiveSet maps directive names to source tokens. Sources keep
// insertion order and are deduplicated on Add; Serialize sorts both
// directives and sources so identical inputs always produce the same
// header string.
type DirectiveSet map[string][]string

// Add appends sources to a directive, skipping ones already present.
func (d DirectiveSet) Add(directive string, sources ...string) {
	have := make(map[string]bool, len(d[directive]))
	for _, s := range d[directive] {
		have[s] = true
	}
	for _, s := range sources {
		if s == "" || have[s] {
			continue
		}
		d[directive] = append(d[directive], s)
		have[s] = true
	}
}

// Set replaces the directive's sources entirely.
func (d DirectiveSet) Set(directive string, sources ...string) {
	d[directive] = append([]string(nil), sources...)
}

// Clone returns a deep copy.
func (d DirectiveSet) Clone() DirectiveSet {
	out := make(DirectiveSet, len(d))
	for k, v := range d {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Serialize renders the set in the standard CSP header grammar:
// directives joined by "; ", each followed by its space-separated
// sources. Output is fully sorted, so two builds over identical input
// yield byte-identical policy strings.
func (d DirectiveSet) Serialize() string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		sources := append([]string(nil), d[name]...)
		sort.Strings(sources)
		for _, s := range sources {
			b.WriteByte(' ')
			b.WriteString(s)
		}
	}
	return b.String()
}
