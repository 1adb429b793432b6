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

package cors

// Option defines functional options for cors middleware configuration.
type Option func(*config)

type config struct {
	allowedOrigins   []string
	allowedMethods   []string
	allowedHeaders   []string
	exposedHeaders   []string
	allowCredentials bool
	maxAge           int
	allowAllOrigins  bool
	allowOriginFunc  func(origin string) bool
}

func defaultConfig() *config {
	return &config{
		allowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		allowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		maxAge:         3600,
	}
}

// WithAllowedOrigins sets the exact origins allowed to make CORS requests.
func WithAllowedOrigins(origins ...string) Option {
	return func(cfg *config) { cfg.allowedOrigins = origins }
}

// WithAllowAllOrigins allows every origin. Avoid outside public APIs.
func WithAllowAllOrigins() Option {
	return func(cfg *config) { cfg.allowAllOrigins = true }
}

// WithAllowOriginFunc validates origins dynamically; it takes precedence
// over the literal list.
func WithAllowOriginFunc(fn func(origin string) bool) Option {
	return func(cfg *config) { cfg.allowOriginFunc = fn }
}

// WithAllowedMethods sets the methods advertised on preflight.
func WithAllowedMethods(methods ...string) Option {
	return func(cfg *config) { cfg.allowedMethods = methods }
}

// WithAllowedHeaders sets the request headers advertised on preflight.
func WithAllowedHeaders(headers ...string) Option {
	return func(cfg *config) { cfg.allowedHeaders = headers }
}

// WithExposedHeaders lists response headers readable by browser scripts.
func WithExposedHeaders(headers ...string) Option {
	return func(cfg *config) { cfg.exposedHeaders = headers }
}

// WithAllowCredentials permits cookies and Authorization headers. A literal
// `*` origin is never sent together with credentials.
func WithAllowCredentials() Option {
	return func(cfg *config) { cfg.allowCredentials = true }
}

// WithMaxAge sets how long browsers may cache preflight results, in
// seconds.
func WithMaxAge(seconds int) Option {
	return func(cfg *config) { cfg.maxAge = seconds }
}
