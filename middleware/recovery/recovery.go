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

// Package recovery converts handler panics into 500 responses. The router
// carries a built-in safety net; this middleware adds configurable
// logging, custom handlers, and trace span marking on top of it.
package recovery

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextrush/nextrush"
)

// New returns the panic recovery middleware. Register it first so it
// wraps the whole chain.
//
//	r.Use(recovery.New())
//
// Custom response:
//
//	r.Use(recovery.New(
//	    recovery.WithHandler(func(c *nextrush.Context, err any) {
//	        c.WriteErrorResponse(http.StatusInternalServerError, "it broke")
//	    }),
//	))
func New(opts ...Option) nextrush.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *nextrush.Context) {
		defer func() {
			if err := recover(); err != nil {
				markSpan(c, err)

				var stack []byte
				if cfg.stackTrace {
					stack = debug.Stack()
					if len(stack) > cfg.stackSize {
						stack = stack[:cfg.stackSize]
					}
				}

				// Stack goes to the log, never to the client.
				cfg.logger.Error("panic recovered",
					"error", fmt.Sprintf("%v", err),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", c.RequestID(),
					"stack", string(stack),
				)

				if cfg.handler != nil {
					cfg.handler(c, err)
				} else if !c.Written() {
					c.WriteErrorResponse(http.StatusInternalServerError, "Internal Server Error")
				}
				c.Abort()
			}
		}()

		c.Next()
	}
}

// markSpan records the panic on the request's trace span. The
// exception.escaped attribute is only ever set here: a panic is the one
// case where the exception left the handler.
func markSpan(c *nextrush.Context, err any) {
	span := c.Span()
	if span == nil || !span.SpanContext().IsValid() {
		return
	}

	span.SetStatus(codes.Error, "panic recovered")
	span.SetAttributes(
		attribute.Bool("exception.escaped", true),
		attribute.String("exception.type", fmt.Sprintf("%T", err)),
		attribute.String("exception.message", fmt.Sprintf("%v", err)),
	)
	if actual, ok := err.(error); ok {
		span.RecordError(actual)
	}
}
