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

// Package timeout bounds request handling time. The chain runs in a
// goroutine; when the deadline passes first, the request context is
// canceled and a 408 goes out. Handlers must watch
// c.Request.Context().Done() for the cancellation to have teeth: Go
// cannot interrupt running code, only signal it.
package timeout

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nextrush/nextrush"
)

// New returns the timeout middleware (default 30s).
//
//	r.Use(timeout.New(timeout.WithDuration(5 * time.Second)))
//
// Exempt streaming endpoints:
//
//	r.Use(timeout.New(timeout.WithSkipPaths("/events")))
func New(opts ...Option) nextrush.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *nextrush.Context) {
		if cfg.skip(c) {
			c.Next()

			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.duration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		panicChan := make(chan any, 1)

		go func() {
			defer func() {
				if p := recover(); p != nil {
					panicChan <- p
				}
				close(done)
			}()
			c.Next()
		}()

		select {
		case <-done:
			select {
			case p := <-panicChan:
				// Re-panic on the request goroutine so recovery can
				// catch it.
				panic(p)
			default:
			}
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				// Client went away; nothing to answer.
				<-done

				return
			}

			cfg.logger.Warn("request timeout",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"timeout", cfg.duration.String(),
			)
			if cfg.handler != nil {
				cfg.handler(c, cfg.duration)
			} else if !c.Written() {
				c.WriteErrorResponse(http.StatusRequestTimeout, "Request Timeout")
			}
			c.Abort()

			// The handler goroutine may still be touching the context;
			// wait it out before the context returns to the pool.
			<-done
			select {
			case p := <-panicChan:
				panic(p)
			default:
			}
		}
	}
}

// Handler is the signature for custom timeout responses.
type Handler func(c *nextrush.Context, timeout time.Duration)
