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

package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextrush/nextrush"
)

func newServer(opts ...Option) *nextrush.Router {
	r := nextrush.MustNew()
	r.Use(New(opts...))
	r.GET("/", func(c *nextrush.Context) {
		c.String(http.StatusOK, "%s|%s", c.RequestID(), FromContext(c.Request.Context()))
	})

	return r
}

func perform(r *nextrush.Router, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestGeneratesHexID(t *testing.T) {
	t.Parallel()

	r := newServer()
	w := perform(r, nil)

	id := w.Header().Get(DefaultHeader)
	require.Len(t, id, 32)
	assert.Regexp(t, "^[0-9a-f]{32}$", id)
	// Context and request context both carry the id.
	assert.Equal(t, id+"|"+id, w.Body.String())
}

func TestEchoesClientID(t *testing.T) {
	t.Parallel()

	r := newServer()
	w := perform(r, map[string]string{DefaultHeader: "client-supplied"})

	assert.Equal(t, "client-supplied", w.Header().Get(DefaultHeader))
}

func TestWithoutClientIDOverrides(t *testing.T) {
	t.Parallel()

	r := newServer(WithoutClientID())
	w := perform(r, map[string]string{DefaultHeader: "client-supplied"})

	assert.NotEqual(t, "client-supplied", w.Header().Get(DefaultHeader))
	assert.NotEmpty(t, w.Header().Get(DefaultHeader))
}

func TestEchoOnlyMode(t *testing.T) {
	t.Parallel()

	r := newServer(WithEchoOnly())

	withID := perform(r, map[string]string{DefaultHeader: "gw-123"})
	assert.Equal(t, "gw-123", withID.Header().Get(DefaultHeader))

	withoutID := perform(r, nil)
	assert.Empty(t, withoutID.Header().Get(DefaultHeader))
	assert.Equal(t, "|", withoutID.Body.String())
}

func TestCustomHeader(t *testing.T) {
	t.Parallel()

	r := newServer(WithHeader("X-Correlation-ID"))
	w := perform(r, map[string]string{"X-Correlation-ID": "corr-9"})

	assert.Equal(t, "corr-9", w.Header().Get("X-Correlation-ID"))
	assert.Empty(t, w.Header().Get(DefaultHeader))
}

func TestGenerators(t *testing.T) {
	t.Parallel()

	t.Run("uuid", func(t *testing.T) {
		t.Parallel()
		id := UUID()
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})

	t.Run("ulid", func(t *testing.T) {
		t.Parallel()
		id := ULID()
		_, err := ulid.Parse(id)
		assert.NoError(t, err)
	})

	t.Run("timestamp", func(t *testing.T) {
		t.Parallel()
		assert.Regexp(t, `^\d+-\d+$`, Timestamp())
	})

	t.Run("hex unique", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, Hex(), Hex())
	})
}
