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

package accesslog

import (
	"log/slog"
	"time"
)

// Option defines functional options for accesslog middleware configuration.
type Option func(*config)

type config struct {
	logger          *slog.Logger
	excludePaths    map[string]bool
	excludePrefixes []string
	slowThreshold   time.Duration
	errorsOnly      bool
}

func defaultConfig() *config {
	return &config{
		excludePaths: make(map[string]bool),
	}
}

// WithLogger sets the destination logger. Required for any output.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithExcludePaths skips logging for exact paths (health checks, metrics).
func WithExcludePaths(paths ...string) Option {
	return func(cfg *config) {
		for _, p := range paths {
			cfg.excludePaths[p] = true
		}
	}
}

// WithExcludePrefixes skips logging for path prefixes.
func WithExcludePrefixes(prefixes ...string) Option {
	return func(cfg *config) {
		cfg.excludePrefixes = append(cfg.excludePrefixes, prefixes...)
	}
}

// WithSlowThreshold marks requests at or above the threshold as slow and
// logs them at warn level regardless of status.
func WithSlowThreshold(d time.Duration) Option {
	return func(cfg *config) { cfg.slowThreshold = d }
}

// WithErrorsOnly logs only 4xx/5xx and slow requests.
func WithErrorsOnly() Option {
	return func(cfg *config) { cfg.errorsOnly = true }
}
