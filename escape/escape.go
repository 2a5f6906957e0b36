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

// Package escape converts untrusted values into markup-safe text.
//
// HTML is the default pathway for every template interpolation. Values
// destined for URL-valued attributes go through SafeURL instead, which
// validates the scheme rather than escaping. Content that must reach
// the page unescaped has to be wrapped through Trusted, which only
// accepts a safehtml.HTML so the bypass is visible at the call site and
// checkable by cmd/rawcheck.
package escape

import (
	"strings"

	"github.com/google/safehtml"
)

// Rule is a single substitution of the escape table.
type Rule struct {
	From string
	To   string
}

// escapeTable is applied in order, each rule exactly once. The
// ampersand rule must stay first: every later rule emits an entity
// whose own ampersand must not be rewritten again.
var escapeTable = []Rule{
	{"&", "&amp;"},
	{"<", "&lt;"},
	{">", "&gt;"},
	{`"`, "&quot;"},
	{"'", "&#x27;"},
	{"/", "&#x2F;"},
}

// HTML escapes raw for interpolation into markup. Escaping is not
// idempotent: the output must never be passed through HTML again.
func HTML(raw string) string {
	for _, r := range escapeTable {
		raw = strings.ReplaceAll(raw, r.From, r.To)
	}
	return raw
}

// Rules returns a copy of the ordered substitution table. Build tooling
// uses it to mirror the escaping into generated runtime helpers.
func Rules() []Rule {
	out := make([]Rule, len(escapeTable))
	copy(out, escapeTable)
	return out
}

// urlAttrs are attributes whose values carry URL semantics and are
// validated instead of escaped.
var urlAttrs = map[string]bool{
	"href":       true,
	"src":        true,
	"action":     true,
	"formaction": true,
	"poster":     true,
}

// Attr returns the markup-safe value for the named attribute. URL
// attributes are routed through SafeURL, everything else through HTML.
func Attr(name, value string) string {
	if urlAttrs[strings.ToLower(name)] {
		return SafeURL(value)
	}
	return HTML(value)
}

// Text returns the markup-safe form of a text node value.
func Text(value string) string {
	return HTML(value)
}

// Markup is a value ready for interpolation into a page. The zero value
// renders as the empty string.
type Markup struct {
	str string
}

// FromText escapes text through the default pathway.
func FromText(text string) Markup {
	return Markup{str: HTML(text)}
}

// Trusted adopts markup the caller has already vetted. Requiring a
// safehtml.HTML forces construction through a reviewed safehtml builder;
// a plain string can never reach the raw pathway.
func Trusted(h safehtml.HTML) Markup {
	return Markup{str: h.String()}
}

func (m Markup) String() string {
	return m.str
}
