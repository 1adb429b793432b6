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

package compression

import (
	"compress/gzip"
	"log/slog"

	"github.com/nextrush/nextrush"
)

// Option defines functional options for compression middleware configuration.
type Option func(*config)

type config struct {
	gzipLevel           int
	brotliLevel         int
	threshold           int
	enableGzip          bool
	enableBrotli        bool
	excludePaths        map[string]bool
	excludeContentTypes map[string]bool
	logger              *slog.Logger
}

func defaultConfig() *config {
	return &config{
		gzipLevel:           gzip.DefaultCompression,
		brotliLevel:         4, // Conservative for dynamic content
		threshold:           1024,
		enableGzip:          true,
		enableBrotli:        true,
		excludePaths:        make(map[string]bool),
		excludeContentTypes: make(map[string]bool),
		logger:              nextrush.NoopLogger(),
	}
}

// WithGzipLevel sets the gzip compression level (1-9).
func WithGzipLevel(level int) Option {
	return func(cfg *config) { cfg.gzipLevel = level }
}

// WithBrotliLevel sets the brotli compression level (0-11). Levels above 5
// get expensive for dynamic content.
func WithBrotliLevel(level int) Option {
	return func(cfg *config) { cfg.brotliLevel = level }
}

// WithThreshold sets the minimum body size in bytes before compression
// kicks in. Zero compresses everything.
func WithThreshold(n int) Option {
	return func(cfg *config) { cfg.threshold = n }
}

// WithoutGzip disables the gzip encoding.
func WithoutGzip() Option {
	return func(cfg *config) { cfg.enableGzip = false }
}

// WithoutBrotli disables the brotli encoding.
func WithoutBrotli() Option {
	return func(cfg *config) { cfg.enableBrotli = false }
}

// WithExcludePaths skips compression for exact request paths.
func WithExcludePaths(paths ...string) Option {
	return func(cfg *config) {
		for _, p := range paths {
			cfg.excludePaths[p] = true
		}
	}
}

// WithExcludeContentTypes skips compression for responses whose
// Content-Type contains any of the given values.
func WithExcludeContentTypes(types ...string) Option {
	return func(cfg *config) {
		for _, t := range types {
			cfg.excludeContentTypes[t] = true
		}
	}
}

// WithLogger sets the logger for finalization errors.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}
