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

// Package requestid assigns each request a correlation id, echoing a
// client-provided one when allowed or generating a fresh one. The id is
// set on the response header, the Context, and the request context for
// log correlation.
package requestid

import (
	"context"

	"github.com/nextrush/nextrush"
)

// contextKey is unexported so no other package can collide with it.
type contextKey struct{}

// DefaultHeader is the header consulted and set when none is configured.
const DefaultHeader = "X-Request-ID"

// New returns the request id middleware.
//
//	r.Use(requestid.New())
//
// ULID ids under a custom header:
//
//	r.Use(requestid.New(
//	    requestid.WithHeader("X-Correlation-ID"),
//	    requestid.WithGenerator(requestid.ULID),
//	))
func New(opts ...Option) nextrush.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *nextrush.Context) {
		var id string
		if cfg.allowClientID {
			id = c.Request.Header.Get(cfg.header)
		}
		if id == "" {
			if cfg.echoOnly {
				// Echo-only mode passes requests without an id through
				// untouched.
				c.Next()

				return
			}
			id = cfg.generator()
		}

		c.Header(cfg.header, id)
		c.SetRequestID(id)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), contextKey{}, id))

		c.Next()
	}
}

// FromContext returns the request id carried by a context, or "".
// Useful outside the handler chain, for example in service code that only
// sees a context.Context.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)

	return id
}
