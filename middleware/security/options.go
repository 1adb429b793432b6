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

package security

// Option defines functional options for security middleware configuration.
type Option func(*config)

type config struct {
	frameOptions          string
	contentTypeNosniff    bool
	xssProtection         string
	hstsMaxAge            int
	hstsIncludeSubdomains bool
	hstsPreload           bool
	cspDirectives         map[string][]string
	referrerPolicy        string
	dnsPrefetchControl    string
	downloadOptions       bool
	crossDomainPolicies   string
}

func defaultConfig() *config {
	return &config{
		frameOptions:          "DENY",
		contentTypeNosniff:    true,
		xssProtection:         "1; mode=block",
		hstsMaxAge:            31536000, // 1 year
		hstsIncludeSubdomains: true,
		cspDirectives:         map[string][]string{"default-src": {"'self'"}},
		referrerPolicy:        "strict-origin-when-cross-origin",
		dnsPrefetchControl:    "off",
		downloadOptions:       true,
		crossDomainPolicies:   "none",
	}
}

// WithFrameOptions sets X-Frame-Options ("DENY", "SAMEORIGIN"). Empty
// disables the header.
func WithFrameOptions(value string) Option {
	return func(cfg *config) { cfg.frameOptions = value }
}

// WithoutContentTypeNosniff disables X-Content-Type-Options.
func WithoutContentTypeNosniff() Option {
	return func(cfg *config) { cfg.contentTypeNosniff = false }
}

// WithXSSProtection sets X-XSS-Protection. Empty disables the header.
func WithXSSProtection(value string) Option {
	return func(cfg *config) { cfg.xssProtection = value }
}

// WithHSTS configures Strict-Transport-Security. A maxAge of zero disables
// it, which is the sane setting in development.
func WithHSTS(maxAge int, includeSubdomains, preload bool) Option {
	return func(cfg *config) {
		cfg.hstsMaxAge = maxAge
		cfg.hstsIncludeSubdomains = includeSubdomains
		cfg.hstsPreload = preload
	}
}

// WithContentSecurityPolicy replaces the CSP directives map. Nil or empty
// disables the header.
func WithContentSecurityPolicy(directives map[string][]string) Option {
	return func(cfg *config) { cfg.cspDirectives = directives }
}

// WithReferrerPolicy sets Referrer-Policy. Empty disables the header.
func WithReferrerPolicy(value string) Option {
	return func(cfg *config) { cfg.referrerPolicy = value }
}

// WithDNSPrefetchControl sets X-DNS-Prefetch-Control ("on" or "off").
// Empty disables the header.
func WithDNSPrefetchControl(value string) Option {
	return func(cfg *config) { cfg.dnsPrefetchControl = value }
}

// WithoutDownloadOptions disables X-Download-Options.
func WithoutDownloadOptions() Option {
	return func(cfg *config) { cfg.downloadOptions = false }
}

// WithCrossDomainPolicies sets X-Permitted-Cross-Domain-Policies. Empty
// disables the header.
func WithCrossDomainPolicies(value string) Option {
	return func(cfg *config) { cfg.crossDomainPolicies = value }
}
