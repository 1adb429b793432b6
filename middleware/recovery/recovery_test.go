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
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nextrush/nextrush"
)

func perform(r *nextrush.Router) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestPanicBecomes500(t *testing.T) {
	t.Parallel()

	r := nextrush.MustNew()
	r.Use(New())
	r.GET("/boom", func(*nextrush.Context) {
		panic("kaboom")
	})

	w := perform(r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, w.Body.String())
	// The panic message must never leak into the response.
	assert.NotContains(t, w.Body.String(), "kaboom")
}

func TestStackGoesToLogOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := nextrush.MustNew()
	r.Use(New(WithLogger(logger)))
	r.GET("/boom", func(*nextrush.Context) {
		panic("kaboom")
	})

	w := perform(r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "kaboom")
	assert.NotContains(t, w.Body.String(), "goroutine")
}

func TestCustomHandler(t *testing.T) {
	t.Parallel()

	r := nextrush.MustNew()
	r.Use(New(WithHandler(func(c *nextrush.Context, err any) {
		c.WriteErrorResponse(http.StatusServiceUnavailable, "temporarily broken")
	})))
	r.GET("/boom", func(*nextrush.Context) {
		panic("kaboom")
	})

	w := perform(r)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"temporarily broken"}`, w.Body.String())
}

func TestHealthyRequestUntouched(t *testing.T) {
	t.Parallel()

	r := nextrush.MustNew()
	r.Use(New())
	r.GET("/boom", func(c *nextrush.Context) {
		c.String(http.StatusOK, "fine")
	})

	w := perform(r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fine", w.Body.String())
}
