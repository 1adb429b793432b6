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

package static

import "log/slog"

// DotfilePolicy controls how paths with dot-prefixed segments are served.
type DotfilePolicy int

const (
	// DotfilesIgnore answers 404, as if the file did not exist. Default.
	DotfilesIgnore DotfilePolicy = iota

	// DotfilesDeny answers 403.
	DotfilesDeny

	// DotfilesAllow serves them like any other file.
	DotfilesAllow
)

// Defaults for the in-memory cache.
const (
	DefaultMaxCacheSize int64 = 64 << 20 // 64 MiB total
	DefaultMaxFileSize  int64 = 1 << 20  // 1 MiB per file; larger files stream
)

// Option defines functional options for the static file middleware.
type Option func(*config)

type config struct {
	index        []string
	spa          bool
	dotfiles     DotfilePolicy
	maxAge       int
	immutable    bool
	maxCacheSize int64
	maxFileSize  int64
	precompress  bool
	cache        *Cache
	logger       *slog.Logger
}

func defaultConfig() *config {
	return &config{
		index:        []string{"index.html"},
		maxCacheSize: DefaultMaxCacheSize,
		maxFileSize:  DefaultMaxFileSize,
	}
}

// WithIndex sets the file names tried when a directory is requested
// (default "index.html"). An empty list disables directory serving.
func WithIndex(names ...string) Option {
	return func(cfg *config) { cfg.index = names }
}

// WithSPA serves the mount's root index file for paths that do not exist,
// letting client-side routers own deep links.
func WithSPA() Option {
	return func(cfg *config) { cfg.spa = true }
}

// WithDotfiles sets the dotfile policy (default DotfilesIgnore).
func WithDotfiles(policy DotfilePolicy) Option {
	return func(cfg *config) { cfg.dotfiles = policy }
}

// WithMaxAge sets Cache-Control: public, max-age=<seconds>. Zero leaves
// the header unset.
func WithMaxAge(seconds int) Option {
	return func(cfg *config) { cfg.maxAge = seconds }
}

// WithImmutable appends ", immutable" to Cache-Control. Only meaningful
// for fingerprinted asset paths.
func WithImmutable() Option {
	return func(cfg *config) { cfg.immutable = true }
}

// WithMaxCacheSize bounds the total bytes held in memory. Zero disables
// the cache.
func WithMaxCacheSize(bytes int64) Option {
	return func(cfg *config) { cfg.maxCacheSize = bytes }
}

// WithMaxFileSize sets the per-file cache cutoff; larger files are
// streamed from disk on every request.
func WithMaxFileSize(bytes int64) Option {
	return func(cfg *config) { cfg.maxFileSize = bytes }
}

// WithPrecompressed serves sibling ".br"/".gz" variants of textual files
// to clients that accept them, brotli preferred.
func WithPrecompressed() Option {
	return func(cfg *config) { cfg.precompress = true }
}

// WithCache supplies an externally owned cache, useful to wire its Purge
// as a shutdown hook:
//
//	cache := static.NewCache(32 << 20)
//	r.Use(static.New("/assets", "./public", static.WithCache(cache)))
//	r.OnShutdown(cache.Purge)
func WithCache(cache *Cache) Option {
	return func(cfg *config) { cfg.cache = cache }
}

// WithLogger sets the logger for file read failures.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}
