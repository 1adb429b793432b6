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

// Package cors handles Cross-Origin Resource Sharing. Origins are matched
// against a literal list, a predicate, or a wildcard; preflight requests
// (OPTIONS with Access-Control-Request-Method) are answered with 204.
package cors

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/nextrush/nextrush"
)

// New returns a CORS middleware. The default configuration allows nothing;
// name the origins you trust.
//
//	r.Use(cors.New(
//	    cors.WithAllowedOrigins("https://app.example.com"),
//	))
//
// Subdomain matching via predicate:
//
//	r.Use(cors.New(
//	    cors.WithAllowOriginFunc(func(origin string) bool {
//	        return strings.HasSuffix(origin, ".example.com")
//	    }),
//	))
func New(opts ...Option) nextrush.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	allowMethods := strings.Join(cfg.allowedMethods, ", ")
	allowHeaders := strings.Join(cfg.allowedHeaders, ", ")
	exposeHeaders := strings.Join(cfg.exposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.maxAge)

	return func(c *nextrush.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			// Not a CORS request.
			c.Next()

			return
		}

		allowed := resolveOrigin(cfg, origin)
		if allowed == "" {
			// Unknown origin: no CORS headers, the browser blocks it.
			c.Next()

			return
		}

		h := c.Response.Header()

		// Credentials are incompatible with a literal wildcard; echo the
		// concrete origin instead.
		if cfg.allowCredentials && allowed == "*" {
			allowed = origin
		}
		h.Set("Access-Control-Allow-Origin", allowed)
		if cfg.allowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if allowed != "*" {
			h.Add("Vary", "Origin")
		}
		if exposeHeaders != "" {
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
		}

		if isPreflight(c.Request) {
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Max-Age", maxAge)
			c.Response.WriteHeader(http.StatusNoContent)
			c.Abort()

			return
		}

		c.Next()
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Access-Control-Request-Method") != ""
}

// resolveOrigin returns the Allow-Origin value for the request origin, or
// "" when the origin is not allowed.
func resolveOrigin(cfg *config, origin string) string {
	if cfg.allowAllOrigins {
		return "*"
	}
	if cfg.allowOriginFunc != nil {
		if cfg.allowOriginFunc(origin) {
			return origin
		}

		return ""
	}
	if slices.Contains(cfg.allowedOrigins, origin) {
		return origin
	}

	return ""
}
