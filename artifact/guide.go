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
	"sort"
	"strings"
	"text/template"
)

var guideTmpl = template.Must(template.New("guide").Parse(`# Security headers

Attach these headers to every response. When the application is served
behind a reverse proxy, configure them there so they also cover static
assets and error pages.

| Header | Value |
|---|---|
{{- range .}}
| {{.Name}} | ` + "`{{.Value}}`" + ` |
{{- end}}

## nginx

` + "```nginx" + `
{{- range .}}
add_header {{.Name}} "{{.Value}}" always;
{{- end}}
` + "```" + `

## Caddy

` + "```caddy" + `
header {
{{- range .}}
	{{.Name}} "{{.Value}}"
{{- end}}
}
` + "```" + `

## Apache

` + "```apache" + `
{{- range .}}
Header always set {{.Name}} "{{.Value}}"
{{- end}}
` + "```" + `
`))

// WriteDeploymentGuide writes a human-readable document listing the
// header values for common reverse proxies. Headers are sorted so the
// guide is reproducible across builds.
func WriteDeploymentGuide(path string, headers map[string]string) error {
	type entry struct{ Name, Value string }
	entries := make([]entry, 0, len(headers))
	for name, value := range headers {
		entries = append(entries, entry{name, value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var b strings.Builder
	if err := guideTmpl.Execute(&b, entries); err != nil {
		return fmt.Errorf("artifact: rendering deployment guide: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("artifact: writing deployment guide: %w", err)
	}
	return nil
}
