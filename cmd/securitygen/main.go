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

// Securitygen is the build-time entry point of the security subsystem.
// It scans compiled output for inline scripts, styles and external
// references, synthesizes the Content-Security-Policy for the chosen
// mode and writes the per-build security artifacts.
//
//	securitygen -assets ./dist -mode prod -out ./dist/.security
//
// Custom directives can be merged in from a JSON file mapping directive
// names to source lists:
//
//	securitygen -assets ./dist -mode prod -custom csp.json -out ./dist/.security
//
// In prod mode a scan failure aborts with a non-zero exit; in dev mode
// the build continues on a baseline-only policy with a warning.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/websecure-dev/websecure/artifact"
	"github.com/websecure-dev/websecure/assets"
	"github.com/websecure-dev/websecure/csp"
	"github.com/websecure-dev/websecure/middleware"
)

func main() {
	var (
		assetDir   = flag.String("assets", "", "directory of compiled output to scan")
		outDir     = flag.String("out", ".security", "directory for the emitted artifacts")
		mode       = flag.String("mode", "prod", "policy mode: dev or prod")
		customFile = flag.String("custom", "", "JSON file of custom directives to append")
		liveReload = flag.String("live-reload", "", "live-reload origin for dev mode")
		expiry     = flag.Int64("token-expiry", 3600, "CSRF token expiry in seconds")
		cookie     = flag.String("cookie", middleware.DefaultCookieName, "CSRF cookie name")
		header     = flag.String("header", middleware.DefaultHeaderName, "CSRF header name")
	)
	flag.Parse()

	if *assetDir == "" {
		log.Fatal("securitygen: -assets is required")
	}
	if *mode != string(csp.ModeDev) && *mode != string(csp.ModeProd) {
		log.Fatalf("securitygen: unknown mode %q", *mode)
	}

	var custom csp.DirectiveSet
	if *customFile != "" {
		data, err := os.ReadFile(*customFile)
		if err != nil {
			log.Fatalf("securitygen: reading custom directives: %v", err)
		}
		if err := json.Unmarshal(data, &custom); err != nil {
			log.Fatalf("securitygen: parsing custom directives: %v", err)
		}
	}

	scanned, scanErr := assets.ScanDir(os.DirFS(*assetDir))
	s := &csp.Synthesizer{
		Mode:             csp.Mode(*mode),
		Custom:           custom,
		LiveReloadOrigin: *liveReload,
	}
	policy, err := s.Synthesize(scanned, scanErr)
	if err != nil {
		log.Fatalf("securitygen: %v", err)
	}

	cfg := artifact.Config{
		CSPMode:            *mode,
		TokenExpirySeconds: *expiry,
		CookieName:         *cookie,
		HeaderName:         *header,
		EscapeHTML:         true,
		ValidateURLs:       true,
	}
	if err := artifact.Emit(*outDir, cfg, policy.Serialize(), time.Now()); err != nil {
		log.Fatalf("securitygen: %v", err)
	}
	fmt.Printf("securitygen: wrote %s artifacts to %s (%d assets)\n", *mode, *outDir, len(scanned))
}
