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
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/websecure-dev/websecure/escape"
)

// runtimeTmpl renders the browser-side escape helper. The substitution
// table and URL rules are pulled from the escape package so the
// generated runtime can never drift from the server-side engine.
var runtimeTmpl = template.Must(template.New("runtime").Funcs(template.FuncMap{
	"js": jsString,
}).Parse(`// Generated by websecure. Do not edit.
'use strict';

const ESCAPE_RULES = [
{{- range .Rules}}
  [{{js .From}}, {{js .To}}],
{{- end}}
];

const DENIED_SCHEMES = [{{range $i, $s := .Denied}}{{if $i}}, {{end}}{{js $s}}{{end}}];
const ALLOWED_PREFIXES = [{{range $i, $s := .Allowed}}{{if $i}}, {{end}}{{js $s}}{{end}}];
const INVALID_URL = {{js .Placeholder}};

export function escapeHtml(raw) {
  let out = String(raw);
  for (const [from, to] of ESCAPE_RULES) {
    out = out.split(from).join(to);
  }
  return out;
}

export function isSafeUrl(raw) {
  const url = String(raw).trim().toLowerCase();
  for (const scheme of DENIED_SCHEMES) {
    if (url.startsWith(scheme)) return false;
  }
  for (const prefix of ALLOWED_PREFIXES) {
    if (url.startsWith(prefix)) return true;
  }
  return !url.includes(':');
}

export function safeUrl(raw) {
  return isSafeUrl(raw) ? raw : INVALID_URL;
}
`))

// jsString renders s as a single-quoted JS string literal.
func jsString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)
	return "'" + r.Replace(s) + "'"
}

// WriteRuntimeHelper writes the generated runtime escape module.
func WriteRuntimeHelper(path string) error {
	var b strings.Builder
	data := struct {
		Rules       []escape.Rule
		Denied      []string
		Allowed     []string
		Placeholder string
	}{
		Rules:       escape.Rules(),
		Denied:      escape.DeniedSchemes(),
		Allowed:     escape.AllowedPrefixes(),
		Placeholder: escape.InvalidURLPlaceholder,
	}
	if err := runtimeTmpl.Execute(&b, data); err != nil {
		return fmt.Errorf("artifact: rendering runtime helper: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("artifact: writing runtime helper: %w", err)
	}
	return nil
}
