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

// Package accesslog emits one structured log line per request: request id,
// method, route pattern, status, duration, and bytes sent. Errors log at
// warn/error level; everything else at info.
package accesslog

import (
	"strings"
	"time"

	"github.com/nextrush/nextrush"
)

// statusSizer is the capability the router's response writer provides for
// reading the outcome after the chain, without importing internal types.
type statusSizer interface {
	StatusCode() int
	Size() int64
}

// New creates the access log middleware. Without WithLogger it logs
// nowhere, which keeps it inert in tests that do not care.
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	r.Use(accesslog.New(
//	    accesslog.WithLogger(logger),
//	    accesslog.WithExcludePaths("/health"),
//	))
func New(opts ...Option) nextrush.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *nextrush.Context) {
		path := c.Request.URL.Path
		if cfg.excludePaths[path] {
			c.Next()

			return
		}
		for _, prefix := range cfg.excludePrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()

				return
			}
		}

		start := time.Now()
		c.Next()

		logger := cfg.logger
		if logger == nil {
			return
		}

		duration := time.Since(start)
		status := 0
		var bytes int64
		if ss, ok := c.Response.(statusSizer); ok {
			status = ss.StatusCode()
			bytes = ss.Size()
		}

		isSlow := cfg.slowThreshold > 0 && duration >= cfg.slowThreshold
		if cfg.errorsOnly && status < 400 && !isSlow {
			return
		}

		fields := []any{
			"request_id", c.RequestID(),
			"method", c.Request.Method,
			"path", path,
			"route", c.RoutePattern(),
			"status", status,
			"duration_ms", duration.Milliseconds(),
			"bytes", bytes,
			"client_ip", c.ClientIP(),
		}
		if isSlow {
			fields = append(fields, "slow", true)
		}

		switch {
		case status >= 500:
			logger.Error("access", fields...)
		case status >= 400 || isSlow:
			logger.Warn("access", fields...)
		default:
			logger.Info("access", fields...)
		}
	}
}
