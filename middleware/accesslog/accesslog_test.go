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
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextrush/nextrush"
	"github.com/nextrush/nextrush/middleware/requestid"
)

type logLine struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	RequestID string `json:"request_id"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Route     string `json:"route"`
	Status    int    `json:"status"`
	Bytes     int64  `json:"bytes"`
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []logLine {
	t.Helper()

	var lines []logLine
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line logLine
		require.NoError(t, dec.Decode(&line))
		lines = append(lines, line)
	}

	return lines
}

func perform(r *nextrush.Router, path string) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
}

func TestLogsRequestLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := nextrush.MustNew()
	r.Use(requestid.New())
	r.Use(New(WithLogger(logger)))
	r.GET("/users/:id", func(c *nextrush.Context) {
		c.String(http.StatusOK, "hello")
	})

	perform(r, "/users/42")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "access", line.Msg)
	assert.Equal(t, "INFO", line.Level)
	assert.NotEmpty(t, line.RequestID)
	assert.Equal(t, http.MethodGet, line.Method)
	assert.Equal(t, "/users/42", line.Path)
	assert.Equal(t, "/users/:id", line.Route)
	assert.Equal(t, http.StatusOK, line.Status)
	assert.Equal(t, int64(len("hello")), line.Bytes)
}

func TestErrorStatusLogsAtHigherLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := nextrush.MustNew()
	r.Use(New(WithLogger(logger)))
	r.GET("/client", func(c *nextrush.Context) {
		c.WriteErrorResponse(http.StatusBadRequest, "nope")
	})
	r.GET("/server", func(c *nextrush.Context) {
		c.WriteErrorResponse(http.StatusInternalServerError, "broken")
	})

	perform(r, "/client")
	perform(r, "/server")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0].Level)
	assert.Equal(t, "ERROR", lines[1].Level)
}

func TestExcludedPathsSilent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := nextrush.MustNew()
	r.Use(New(WithLogger(logger), WithExcludePaths("/health")))
	r.GET("/health", func(c *nextrush.Context) {
		c.String(http.StatusOK, "ok")
	})

	perform(r, "/health")
	assert.Empty(t, decodeLines(t, &buf))
}

func TestErrorsOnlyFiltersSuccesses(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := nextrush.MustNew()
	r.Use(New(WithLogger(logger), WithErrorsOnly()))
	r.GET("/ok", func(c *nextrush.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/bad", func(c *nextrush.Context) {
		c.WriteErrorResponse(http.StatusNotFound, "missing")
	})

	perform(r, "/ok")
	perform(r, "/bad")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "/bad", lines[0].Path)
}

func TestNoLoggerStaysQuiet(t *testing.T) {
	t.Parallel()

	r := nextrush.MustNew()
	r.Use(New())
	r.GET("/", func(c *nextrush.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Must not panic without a logger.
	perform(r, "/")
}
