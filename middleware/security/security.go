// Copyright 2025 The NextRush Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package security sets the usual protective response headers (the helmet
// set) and strips X-Powered-By.
package security

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nextrush/nextrush"
)

// New returns a middleware that applies security headers before the
// handler runs. Defaults are strict; loosen per deployment.
//
//	r.Use(security.New())
//
// Custom CSP:
//
//	r.Use(security.New(
//	    security.WithContentSecurityPolicy(map[string][]string{
//	        "default-src": {"'self'"},
//	        "script-src":  {"'self'", "https://cdn.example.com"},
//	    }),
//	))
func New(opts ...Option) nextrush.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	hsts := buildHSTS(cfg)
	csp := buildCSP(cfg.cspDirectives)

	return func(c *nextrush.Context) {
		h := c.Response.Header()

		if cfg.contentTypeNosniff {
			h.Set("X-Content-Type-Options", "nosniff")
		}
		if cfg.frameOptions != "" {
			h.Set("X-Frame-Options", cfg.frameOptions)
		}
		if cfg.xssProtection != "" {
			h.Set("X-XSS-Protection", cfg.xssProtection)
		}
		// HSTS only means anything over TLS; sending it on plaintext
		// responses is noise at best.
		if hsts != "" && c.Request.TLS != nil {
			h.Set("Strict-Transport-Security", hsts)
		}
		if csp != "" {
			h.Set("Content-Security-Policy", csp)
		}
		if cfg.referrerPolicy != "" {
			h.Set("Referrer-Policy", cfg.referrerPolicy)
		}
		if cfg.dnsPrefetchControl != "" {
			h.Set("X-DNS-Prefetch-Control", cfg.dnsPrefetchControl)
		}
		if cfg.downloadOptions {
			h.Set("X-Download-Options", "noopen")
		}
		if cfg.crossDomainPolicies != "" {
			h.Set("X-Permitted-Cross-Domain-Policies", cfg.crossDomainPolicies)
		}
		h.Del("X-Powered-By")

		c.Next()
	}
}

func buildHSTS(cfg *config) string {
	if cfg.hstsMaxAge <= 0 {
		return ""
	}
	s := fmt.Sprintf("max-age=%d", cfg.hstsMaxAge)
	if cfg.hstsIncludeSubdomains {
		s += "; includeSubDomains"
	}
	if cfg.hstsPreload {
		s += "; preload"
	}

	return s
}

// buildCSP renders the directives map in sorted order so the header is
// deterministic.
func buildCSP(directives map[string][]string) string {
	if len(directives) == 0 {
		return ""
	}

	names := make([]string, 0, len(directives))
	for name := range directives {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if values := directives[name]; len(values) > 0 {
			parts = append(parts, name+" "+strings.Join(values, " "))
		} else {
			parts = append(parts, name)
		}
	}

	return strings.Join(parts, "; ")
}
