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

// Package ratelimit provides fixed-window request rate limiting.
//
// Each key (client IP by default) gets a counter that resets at the end of
// its window. Requests over the limit receive 429 with X-RateLimit-* and
// Retry-After headers. The Store interface allows swapping the in-memory
// backend for a shared one in multi-instance deployments.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nextrush/nextrush"
)

// KeyFunc derives the rate limit key for a request, for example per IP,
// per user, or per route.
type KeyFunc func(*nextrush.Context) string

// statusCoder lets the middleware read the response status after the chain
// without coupling to internal writer types.
type statusCoder interface {
	StatusCode() int
}

// New returns a fixed-window rate limiter middleware.
// Defaults: 100 requests per minute, keyed by client IP, in-memory store.
//
// Example:
//
//	r.Use(ratelimit.New(
//	    ratelimit.WithLimit(60),
//	    ratelimit.WithWindow(time.Minute),
//	))
//
// Skip counting successful requests (failed-login throttling):
//
//	r.Use(ratelimit.New(
//	    ratelimit.WithLimit(5),
//	    ratelimit.WithSkipSuccessfulRequests(),
//	))
func New(opts ...Option) nextrush.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	if store == nil {
		store = NewMemoryStore()
	}

	limitHeader := strconv.Itoa(cfg.limit)

	return func(c *nextrush.Context) {
		key := cfg.keyFunc(c)

		count, resetAt := store.Increment(key, cfg.window)
		remaining := max(0, cfg.limit-count)
		resetSeconds := max(0, int(time.Until(resetAt).Seconds())+1)

		if cfg.headers {
			c.Header("X-RateLimit-Limit", limitHeader)
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
			c.Header("X-RateLimit-Reset", strconv.Itoa(resetSeconds))
		}

		if count > cfg.limit {
			if cfg.onLimitExceeded != nil {
				cfg.onLimitExceeded(c)
				c.Abort()

				return
			}

			c.Header("Retry-After", strconv.Itoa(resetSeconds))
			c.WriteErrorResponse(http.StatusTooManyRequests, "Too Many Requests")
			c.Abort()

			return
		}

		c.Next()

		// A successful response gives the slot back: decrement, never
		// reset, so concurrent failures within the window still count.
		if cfg.skipSuccessful {
			if sc, ok := c.Response.(statusCoder); ok && sc.StatusCode() <= 399 {
				store.Decrement(key)
			}
		}
	}
}
