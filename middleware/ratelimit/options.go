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

package ratelimit

import (
	"time"

	"github.com/nextrush/nextrush"
)

// Option defines functional options for ratelimit middleware configuration.
type Option func(*config)

type config struct {
	limit           int
	window          time.Duration
	keyFunc         KeyFunc
	store           Store
	headers         bool
	skipSuccessful  bool
	onLimitExceeded nextrush.HandlerFunc
}

func defaultConfig() *config {
	return &config{
		limit:   100,
		window:  time.Minute,
		keyFunc: func(c *nextrush.Context) string { return "ip:" + c.ClientIP() },
		headers: true,
	}
}

// WithLimit sets the maximum number of requests per window.
func WithLimit(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.limit = n
		}
	}
}

// WithWindow sets the fixed window duration.
func WithWindow(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.window = d
		}
	}
}

// WithKeyFunc sets a custom key derivation, for example per user:
//
//	ratelimit.WithKeyFunc(func(c *nextrush.Context) string {
//	    return "user:" + c.GetString("user_id")
//	})
func WithKeyFunc(fn KeyFunc) Option {
	return func(cfg *config) {
		if fn != nil {
			cfg.keyFunc = fn
		}
	}
}

// WithStore swaps the counter backend, for example a Redis-backed Store in
// multi-instance deployments.
func WithStore(store Store) Option {
	return func(cfg *config) { cfg.store = store }
}

// WithoutHeaders suppresses the X-RateLimit-* response headers.
func WithoutHeaders() Option {
	return func(cfg *config) { cfg.headers = false }
}

// WithSkipSuccessfulRequests refunds the counter slot after responses with
// status 399 or lower. Useful for throttling failed logins without
// penalizing successful ones.
func WithSkipSuccessfulRequests() Option {
	return func(cfg *config) { cfg.skipSuccessful = true }
}

// WithOnLimitExceeded replaces the default 429 response. The handler is
// responsible for writing the response; the chain is aborted afterwards.
func WithOnLimitExceeded(fn nextrush.HandlerFunc) Option {
	return func(cfg *config) { cfg.onLimitExceeded = fn }
}
