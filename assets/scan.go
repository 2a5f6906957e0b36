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

// Package assets scans compiled HTML output into structured csp.Asset
// records for policy synthesis.
//
// Scanning walks the markup with a real tokenizer rather than pattern
// matching over raw bytes, so inline script and style boundaries are
// the ones a browser would see.
package assets

import (
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/websecure-dev/websecure/csp"
)

// ScanHTML tokenizes one compiled HTML document, collecting inline
// <script> and <style> bodies and the origins of external script and
// stylesheet references. name is used in error context only.
func ScanHTML(name string, r io.Reader) ([]csp.Asset, error) {
	z := html.NewTokenizer(r)
	var out []csp.Asset
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("%w: %s: %v", csp.ErrAssetScan, name, err)
			}
			return out, nil
		case html.StartTagToken:
			t := z.Token()
			switch t.Data {
			case "script":
				if src := attrVal(t, "src"); src != "" {
					if origin := externalOrigin(src); origin != "" {
						out = append(out, csp.Asset{Kind: csp.KindScript, ExternalDomain: origin})
					}
					continue
				}
				if body, ok := inlineBody(z); ok {
					out = append(out, csp.Asset{Kind: csp.KindScript, Content: body})
				}
			case "style":
				if body, ok := inlineBody(z); ok {
					out = append(out, csp.Asset{Kind: csp.KindStyle, Content: body})
				}
			case "link":
				if strings.EqualFold(attrVal(t, "rel"), "stylesheet") {
					if origin := externalOrigin(attrVal(t, "href")); origin != "" {
						out = append(out, csp.Asset{Kind: csp.KindStyle, ExternalDomain: origin})
					}
				}
			}
		}
	}
}

// inlineBody reads the text content following an opening script or
// style tag. Empty elements produce no asset.
func inlineBody(z *html.Tokenizer) ([]byte, bool) {
	if z.Next() != html.TextToken {
		return nil, false
	}
	body := append([]byte(nil), z.Text()...)
	if len(body) == 0 {
		return nil, false
	}
	return body, true
}

func attrVal(t html.Token, name string) string {
	for _, a := range t.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// externalOrigin extracts the origin of an absolute or protocol-relative
// reference. Relative references load from the page's own origin and
// are already covered by 'self'.
func externalOrigin(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "" {
		return u.Scheme + "://" + u.Host
	}
	return u.Host
}

// ScanDir walks a compiled output tree and scans every .html file.
// Failures carry the file path so the operator can find the broken
// bundle output directly.
func ScanDir(fsys fs.FS) ([]csp.Asset, error) {
	var out []csp.Asset
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: %s: %v", csp.ErrAssetScan, p, err)
		}
		if d.IsDir() || (path.Ext(p) != ".html" && path.Ext(p) != ".htm") {
			return nil
		}
		f, err := fsys.Open(p)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", csp.ErrAssetScan, p, err)
		}
		defer f.Close()
		scanned, err := ScanHTML(p, f)
		if err != nil {
			return err
		}
		out = append(out, scanned...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
