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

package nextrush

import (
	"log/slog"
	"time"
)

// Option configures a Router. Options are applied by New and validated
// together once all options have run.
type Option func(*Router)

// WithLogger sets the router's structured logger. The default is a no-op
// logger; pass an slog.Logger to see route warnings, panics, and errors.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	r := nextrush.MustNew(nextrush.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRouteCacheSize sets the capacity of the LRU route cache.
// The default is DefaultRouteCacheSize (1000); the value must be positive.
func WithRouteCacheSize(size int) Option {
	return func(r *Router) {
		r.cacheSize = size
	}
}

// WithMaxBodySize sets the request body limit in bytes, consumed by the
// body parser. The default is DefaultMaxBodySize (10 MiB).
func WithMaxBodySize(n int64) Option {
	return func(r *Router) {
		r.maxBodySize = n
	}
}

// WithTrustedProxies sets the CIDR ranges whose forwarding headers
// (X-Forwarded-For, X-Real-IP, X-Forwarded-Proto) are honored. Bare
// addresses are accepted and treated as /32 (or /128 for IPv6).
//
// Example:
//
//	r := nextrush.MustNew(
//	    nextrush.WithTrustedProxies("10.0.0.0/8", "127.0.0.1"),
//	)
func WithTrustedProxies(cidrs ...string) Option {
	return func(r *Router) {
		r.trustedProxyCIDRs = append(r.trustedProxyCIDRs, cidrs...)
	}
}

// WithCancellationCheck toggles context cancellation checks between chain
// handlers. Enabled by default; disable to shave a branch off the hot path
// when handlers do their own cancellation handling.
func WithCancellationCheck(enabled bool) Option {
	return func(r *Router) {
		r.checkCancellation = enabled
	}
}

// WithH2C enables HTTP/2 cleartext support on Serve. Only for development
// or behind a TLS-terminating load balancer.
func WithH2C(enabled bool) Option {
	return func(r *Router) {
		r.enableH2C = enabled
	}
}

// WithServerTimeouts configures the timeouts of the http.Server created by
// Serve and ServeTLS.
func WithServerTimeouts(readHeader, read, write, idle time.Duration) Option {
	return func(r *Router) {
		r.serverTimeouts = &serverTimeouts{
			readHeader: readHeader,
			read:       read,
			write:      write,
			idle:       idle,
		}
	}
}

// WithExceptionFilters registers exception filters at construction time.
// Equivalent to calling UseFilter after New.
func WithExceptionFilters(filters ...ExceptionFilter) Option {
	return func(r *Router) {
		r.filters = append(r.filters, filters...)
	}
}
