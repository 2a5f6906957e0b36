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

package middleware

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the security counters. The mismatch reason is the
// primary CSRF attack signal and is worth alerting on.
type Metrics struct {
	// Rejections counts rejected state-changing requests by reason:
	// mismatch, malformed, expired, signature.
	Rejections *prometheus.CounterVec
	// TokensIssued counts minted tokens.
	TokensIssued prometheus.Counter
}

// NewMetrics creates the counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "websecure_csrf_rejections_total",
			Help: "CSRF validations rejected, by reason.",
		}, []string{"reason"}),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "websecure_tokens_issued_total",
			Help: "CSRF tokens minted.",
		}),
	}
	reg.MustRegister(m.Rejections, m.TokensIssued)
	return m
}
