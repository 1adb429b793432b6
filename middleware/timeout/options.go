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

package timeout

import (
	"log/slog"
	"strings"
	"time"

	"github.com/nextrush/nextrush"
)

// Option defines functional options for timeout middleware configuration.
type Option func(*config)

type config struct {
	duration     time.Duration
	logger       *slog.Logger
	handler      Handler
	skipPaths    map[string]bool
	skipPrefixes []string
	skipFunc     func(c *nextrush.Context) bool
}

func defaultConfig() *config {
	return &config{
		duration:  30 * time.Second,
		logger:    nextrush.NoopLogger(),
		skipPaths: make(map[string]bool),
	}
}

func (cfg *config) skip(c *nextrush.Context) bool {
	path := c.Request.URL.Path
	if cfg.skipPaths[path] {
		return true
	}
	for _, prefix := range cfg.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return cfg.skipFunc != nil && cfg.skipFunc(c)
}

// WithDuration sets the per-request deadline.
func WithDuration(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.duration = d
		}
	}
}

// WithHandler replaces the default 408 response.
func WithHandler(fn Handler) Option {
	return func(cfg *config) { cfg.handler = fn }
}

// WithLogger sets the logger for timeout events.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithSkipPaths exempts exact paths, typically streaming endpoints.
func WithSkipPaths(paths ...string) Option {
	return func(cfg *config) {
		for _, p := range paths {
			cfg.skipPaths[p] = true
		}
	}
}

// WithSkipPrefix exempts paths by prefix.
func WithSkipPrefix(prefixes ...string) Option {
	return func(cfg *config) {
		cfg.skipPrefixes = append(cfg.skipPrefixes, prefixes...)
	}
}

// WithSkip exempts requests matched by a custom predicate.
func WithSkip(fn func(c *nextrush.Context) bool) Option {
	return func(cfg *config) { cfg.skipFunc = fn }
}
