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

// Rawcheck fails the build when the trusted-markup escaping bypass is
// used outside exempted packages. Run it over the application tree as
// part of CI:
//
//	rawcheck -exempt 'example.com/app/render/*' ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/websecure-dev/websecure/cmd/rawcheck/trustcheck"
)

func main() {
	singlechecker.Main(trustcheck.NewAnalyzer())
}
