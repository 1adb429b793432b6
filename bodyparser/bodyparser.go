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

// Package bodyparser parses request bodies by content type and attaches the
// result to the request context.
//
// The dispatch table, keyed on the Content-Type prefix:
//
//	application/json                  → any (decoded JSON)
//	application/x-www-form-urlencoded → url.Values
//	multipart/form-data               → *Form (fields + files)
//	text/*                            → string (charset-aware)
//	anything else                     → []byte (raw)
//
// Intake is bounded: bodies over the configured limit fail with 413 before
// being fully buffered. Malformed payloads fail with 400. Handlers read the
// result via Context.Body:
//
//	r.Use(bodyparser.New(bodyparser.WithMaxSize(1 << 20)))
//	r.POST("/items", func(c *nextrush.Context) {
//	    payload, ok := c.Body().(map[string]any)
//	    ...
//	})
package bodyparser

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/nextrush/nextrush"
)

// DefaultMaxSize is the default request body limit (10 MiB).
const DefaultMaxSize int64 = 10 << 20

// defaultMemoryThreshold is the per-file buffer size above which multipart
// files spill to disk when a temp directory is configured.
const defaultMemoryThreshold int64 = 4 << 20

type config struct {
	maxSize         int64
	maxFileSize     int64
	maxFiles        int
	memoryThreshold int64
	tempDir         string
	rawFallback     bool
}

func defaultConfig() *config {
	return &config{
		maxSize:         DefaultMaxSize,
		maxFileSize:     DefaultMaxSize,
		maxFiles:        100,
		memoryThreshold: defaultMemoryThreshold,
		rawFallback:     true,
	}
}

// Option configures the body parser middleware.
type Option func(*config)

// WithMaxSize sets the total body limit in bytes. Bodies over the limit
// fail with 413.
func WithMaxSize(n int64) Option {
	return func(cfg *config) { cfg.maxSize = n }
}

// WithMaxFileSize sets the per-file limit for multipart uploads.
func WithMaxFileSize(n int64) Option {
	return func(cfg *config) { cfg.maxFileSize = n }
}

// WithMaxFiles sets the maximum number of files in a multipart upload.
func WithMaxFiles(n int) Option {
	return func(cfg *config) { cfg.maxFiles = n }
}

// WithTempDir enables disk spilling for multipart files larger than the
// memory threshold. Callers own cleanup of spilled files (File.Close
// removes them).
func WithTempDir(dir string) Option {
	return func(cfg *config) { cfg.tempDir = dir }
}

// WithMemoryThreshold sets the per-file buffer size above which files spill
// to the temp directory.
func WithMemoryThreshold(n int64) Option {
	return func(cfg *config) { cfg.memoryThreshold = n }
}

// WithoutRawFallback disables the raw []byte parser for unrecognized
// content types; such requests fail with 415 instead.
func WithoutRawFallback() Option {
	return func(cfg *config) { cfg.rawFallback = false }
}

// New creates the body parsing middleware. Requests without a body pass
// through untouched; parse failures abort the chain via Context.Fail.
func New(opts ...Option) nextrush.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *nextrush.Context) {
		if !hasBody(c) {
			c.Next()

			return
		}

		body, err := parse(c, cfg)
		if err != nil {
			c.Fail(err)

			return
		}
		c.SetBody(body)
		c.Next()
	}
}

func hasBody(c *nextrush.Context) bool {
	r := c.Request
	if r.Body == nil {
		return false
	}

	return r.ContentLength > 0 || r.ContentLength == -1 // -1 = chunked
}

func parse(c *nextrush.Context, cfg *config) (any, error) {
	contentType := c.Request.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil && contentType != "" {
		return nil, nextrush.E(nextrush.KindBadRequest, "malformed Content-Type header").Wrap(err)
	}

	// Fast reject: a declared length over the limit fails before any read.
	if c.Request.ContentLength > cfg.maxSize {
		return nil, nextrush.Ef(nextrush.KindPayloadTooLarge,
			"request body exceeds %d byte limit", cfg.maxSize)
	}

	switch {
	case mediaType == "application/json":
		return parseJSON(c.Request.Body, cfg.maxSize)
	case mediaType == "application/x-www-form-urlencoded":
		return parseForm(c.Request.Body, cfg.maxSize)
	case mediaType == "multipart/form-data":
		return parseMultipart(c.Request.Body, params["boundary"], cfg)
	case strings.HasPrefix(mediaType, "text/"):
		return parseText(c.Request.Body, cfg.maxSize, params["charset"])
	default:
		if !cfg.rawFallback {
			return nil, nextrush.Ef(nextrush.KindUnsupportedMediaType,
				"unsupported content type %q", mediaType)
		}

		return readBounded(c.Request.Body, cfg.maxSize)
	}
}

// readBounded reads the body through a limit one byte past maxSize, so an
// oversized body is detected without buffering the whole thing.
func readBounded(r io.Reader, maxSize int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, nextrush.E(nextrush.KindBadRequest, "failed to read request body").Wrap(err)
	}
	if int64(len(data)) > maxSize {
		return nil, nextrush.Ef(nextrush.KindPayloadTooLarge,
			"request body exceeds %d byte limit", maxSize)
	}

	return data, nil
}

func parseJSON(r io.Reader, maxSize int64) (any, error) {
	data, err := readBounded(r, maxSize)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil // Empty body is not an error
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, nextrush.E(nextrush.KindBadRequest, "malformed JSON body").Wrap(err)
	}

	return v, nil
}

func parseForm(r io.Reader, maxSize int64) (any, error) {
	data, err := readBounded(r, maxSize)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return url.Values{}, nil
	}

	values, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, nextrush.E(nextrush.KindBadRequest, "malformed form body").Wrap(err)
	}

	return values, nil
}

func parseText(r io.Reader, maxSize int64, charset string) (any, error) {
	data, err := readBounded(r, maxSize)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return "", nil
	}

	if charset != "" && !strings.EqualFold(charset, "utf-8") {
		enc, encErr := htmlindex.Get(charset)
		if encErr != nil {
			return nil, nextrush.Ef(nextrush.KindBadRequest, "unknown charset %q", charset).Wrap(encErr)
		}
		decoded, decErr := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(data)))
		if decErr != nil {
			return nil, nextrush.Ef(nextrush.KindBadRequest, "invalid %s text", charset).Wrap(decErr)
		}

		return string(decoded), nil
	}

	return string(data), nil
}
