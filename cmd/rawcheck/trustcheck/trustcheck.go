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

// Package trustcheck reports uses of the trusted-markup escaping bypass
// outside of exempted packages.
//
// The escape engine escapes every interpolation by default; the only
// way around it is an explicit trusted-markup constructor. Those call
// sites are exactly the ones a security review must see, so this
// analyzer makes unsanctioned ones a build failure.
package trustcheck

import (
	"flag"
	"fmt"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// defaultBypassAPIs are the fully qualified functions that skip the
// default escaping pathway.
var defaultBypassAPIs = []string{
	"github.com/websecure-dev/websecure/escape.Trusted",
	"github.com/google/safehtml/uncheckedconversions.HTMLFromStringKnownToSatisfyTypeContract",
	"github.com/google/safehtml/legacyconversions.RiskilyAssumeHTML",
}

// NewAnalyzer returns an analyzer that flags escaping-bypass calls.
// The -exempt flag takes comma-separated package path globs allowed to
// use the bypass; -apis overrides the checked function list.
func NewAnalyzer() *analysis.Analyzer {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.String("exempt", "", "Comma-separated package path globs allowed to use trusted markup")
	fs.String("apis", "", "Comma-separated fully qualified functions to flag instead of the defaults")

	return &analysis.Analyzer{
		Name:  "trustcheck",
		Doc:   "Reports trusted-markup escaping bypasses outside exempted packages",
		Run:   run,
		Flags: *fs,
	}
}

func run(pass *analysis.Pass) (interface{}, error) {
	apis := defaultBypassAPIs
	if v := pass.Analyzer.Flags.Lookup("apis").Value.String(); v != "" {
		apis = strings.Split(v, ",")
	}
	flagged := make(map[string]bool, len(apis))
	for _, api := range apis {
		flagged[api] = true
	}

	var exemptGlobs []string
	if v := pass.Analyzer.Flags.Lookup("exempt").Value.String(); v != "" {
		exemptGlobs = strings.Split(v, ",")
	}
	exempt, err := pkgExempt(pass.Pkg, exemptGlobs)
	if err != nil {
		return nil, err
	}
	if exempt {
		return nil, nil
	}

	for id, obj := range pass.TypesInfo.Uses {
		fn, ok := obj.(*types.Func)
		if !ok || fn.Pkg() == nil {
			continue
		}
		name := fn.Pkg().Path() + "." + fn.Name()
		if flagged[name] {
			pass.Report(analysis.Diagnostic{
				Pos:     id.Pos(),
				Message: fmt.Sprintf("trusted-markup bypass %q used outside an exempted package", name),
			})
		}
	}
	return nil, nil
}

func pkgExempt(pkg *types.Package, globs []string) (bool, error) {
	for _, g := range globs {
		match, err := filepath.Match(g, pkg.Path())
		if err != nil {
			return false, fmt.Errorf("bad -exempt pattern %q: %w", g, err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
