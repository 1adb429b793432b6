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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nextrush/nextrush"
)

func perform(r *nextrush.Router, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestFastRequestPasses(t *testing.T) {
	t.Parallel()

	r := nextrush.MustNew()
	r.Use(New(WithDuration(time.Second)))
	r.GET("/fast", func(c *nextrush.Context) {
		c.String(http.StatusOK, "quick")
	})

	w := perform(r, "/fast")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "quick", w.Body.String())
}

func TestSlowRequestGets408(t *testing.T) {
	t.Parallel()

	r := nextrush.MustNew()
	r.Use(New(WithDuration(20 * time.Millisecond)))
	r.GET("/slow", func(c *nextrush.Context) {
		select {
		case <-time.After(time.Second):
			c.String(http.StatusOK, "too late")
		case <-c.Request.Context().Done():
		}
	})

	w := perform(r, "/slow")
	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.JSONEq(t, `{"error":"Request Timeout"}`, w.Body.String())
}

func TestContextCanceledInsideHandler(t *testing.T) {
	t.Parallel()

	canceled := make(chan struct{})
	r := nextrush.MustNew()
	r.Use(New(WithDuration(20 * time.Millisecond)))
	r.GET("/slow", func(c *nextrush.Context) {
		<-c.Request.Context().Done()
		close(canceled)
	})

	perform(r, "/slow")

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("handler context was never canceled")
	}
}

func TestSkipPathExempt(t *testing.T) {
	t.Parallel()

	r := nextrush.MustNew()
	r.Use(New(WithDuration(10*time.Millisecond), WithSkipPaths("/stream")))
	r.GET("/stream", func(c *nextrush.Context) {
		time.Sleep(40 * time.Millisecond)
		c.String(http.StatusOK, "streamed")
	})

	w := perform(r, "/stream")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCustomHandler(t *testing.T) {
	t.Parallel()

	r := nextrush.MustNew()
	r.Use(New(
		WithDuration(10*time.Millisecond),
		WithHandler(func(c *nextrush.Context, d time.Duration) {
			c.WriteErrorResponse(http.StatusGatewayTimeout, "upstream gave up after "+d.String())
		}),
	))
	r.GET("/slow", func(c *nextrush.Context) {
		<-c.Request.Context().Done()
	})

	w := perform(r, "/slow")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestPanicPropagatesToRecovery(t *testing.T) {
	t.Parallel()

	r := nextrush.MustNew()
	r.Use(New(WithDuration(time.Second)))
	r.GET("/boom", func(*nextrush.Context) {
		panic("kaboom")
	})

	// The router's built-in safety net turns the re-panicked value into
	// a 500.
	w := perform(r, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
