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

package recovery

import (
	"log/slog"

	"github.com/nextrush/nextrush"
)

// Option defines functional options for recovery middleware configuration.
type Option func(*config)

type config struct {
	stackTrace bool
	stackSize  int
	logger     *slog.Logger
	handler    func(c *nextrush.Context, err any)
}

func defaultConfig() *config {
	return &config{
		stackTrace: true,
		stackSize:  4 << 10,
		logger:     nextrush.NoopLogger(),
	}
}

// WithoutStackTrace omits the stack from the log entry.
func WithoutStackTrace() Option {
	return func(cfg *config) { cfg.stackTrace = false }
}

// WithStackSize caps the logged stack in bytes (default 4KiB).
func WithStackSize(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.stackSize = n
		}
	}
}

// WithLogger sets the logger for panic reports.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithHandler replaces the default 500 response. The handler receives the
// recovered value and writes the response.
func WithHandler(fn func(c *nextrush.Context, err any)) Option {
	return func(cfg *config) { cfg.handler = fn }
}
