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

// Package compression compresses responses with gzip or brotli, negotiated
// from the Accept-Encoding header with q-value support. Responses below the
// size threshold, 204/304/206 responses, and streaming content types (SSE,
// gRPC, octet-stream) pass through uncompressed.
package compression

import (
	"compress/gzip"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"

	"github.com/nextrush/nextrush"
)

// New returns a middleware that compresses responses for clients that
// accept it. Brotli is preferred when the client rates both encodings
// equally.
//
//	r.Use(compression.New())
//
// Gzip only, larger threshold:
//
//	r.Use(compression.New(
//	    compression.WithoutBrotli(),
//	    compression.WithThreshold(4096),
//	))
func New(opts ...Option) nextrush.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// One pool per encoding per middleware instance; levels are fixed at
	// construction so Reset is all a pooled writer needs.
	gzipPool := &sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(io.Discard, cfg.gzipLevel)

			return w
		},
	}
	brotliPool := &sync.Pool{
		New: func() any {
			return brotli.NewWriterLevel(io.Discard, cfg.brotliLevel)
		},
	}

	return func(c *nextrush.Context) {
		if cfg.excludePaths[c.Request.URL.Path] {
			c.Next()

			return
		}

		// Already encoded upstream (proxying).
		if c.Response.Header().Get("Content-Encoding") != "" {
			c.Next()

			return
		}

		encoding := negotiate(c.Request.Header.Get("Accept-Encoding"), cfg)
		if encoding == "" {
			c.Next()

			return
		}

		pool := gzipPool
		if encoding == "br" {
			pool = brotliPool
		}

		var buf []byte
		if cfg.threshold > 0 {
			buf = make([]byte, 0, cfg.threshold)
		}
		ew := &encodingWriter{
			ResponseWriter: c.Response,
			encoding:       encoding,
			pool:           pool,
			threshold:      cfg.threshold,
			buffer:         buf,
			excludeTypes:   cfg.excludeContentTypes,
		}

		original := c.Response
		c.Response = ew
		c.Next()
		c.Response = original

		if err := ew.close(); err != nil {
			cfg.logger.Error("finalize compressed response", "error", err)
		}
	}
}

// negotiate picks the response encoding from Accept-Encoding. An explicit
// q=0 disables an encoding; brotli wins ties.
func negotiate(acceptEncoding string, cfg *config) string {
	if acceptEncoding == "" {
		return ""
	}
	ae := strings.ToLower(acceptEncoding)

	brQ := qValue(ae, "br")
	gzQ := qValue(ae, "gzip")

	if cfg.enableBrotli && brQ > 0 && brQ >= gzQ {
		return "br"
	}
	if cfg.enableGzip && gzQ > 0 {
		return "gzip"
	}

	return ""
}

// qValue returns -1 when the coding is absent, otherwise its quality value
// (1.0 when unspecified).
func qValue(accept, coding string) float64 {
	idx := strings.Index(accept, coding)
	if idx < 0 {
		return -1
	}

	rest := accept[idx+len(coding):]
	qIdx := strings.Index(rest, "q=")
	if qIdx < 0 {
		return 1.0
	}
	// Only honor a q= that belongs to this coding, not a later entry.
	if sep := strings.IndexByte(rest, ','); sep >= 0 && sep < qIdx {
		return 1.0
	}

	qStr := rest[qIdx+2:]
	if end := strings.IndexAny(qStr, ",;"); end >= 0 {
		qStr = qStr[:end]
	}
	q, err := strconv.ParseFloat(strings.TrimSpace(qStr), 64)
	if err != nil {
		return 1.0
	}

	return q
}
