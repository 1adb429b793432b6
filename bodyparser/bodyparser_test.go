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

package bodyparser

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextrush/nextrush"
)

func newServer(t *testing.T, opts ...Option) (*nextrush.Router, *any) {
	t.Helper()

	var captured any
	r := nextrush.MustNew()
	r.Use(New(opts...))
	r.POST("/upload", func(c *nextrush.Context) {
		captured = c.Body()
		c.SendStatus(http.StatusOK)
	})

	return r, &captured
}

func post(r *nextrush.Router, contentType string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	r, captured := newServer(t)

	w := post(r, "application/json", `{"name":"widget","qty":3}`)
	require.Equal(t, http.StatusOK, w.Code)

	obj, ok := (*captured).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "widget", obj["name"])
	assert.Equal(t, float64(3), obj["qty"])
}

func TestParseJSONMalformed(t *testing.T) {
	t.Parallel()

	r, _ := newServer(t)

	w := post(r, "application/json", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"malformed JSON body"}`, w.Body.String())
}

func TestParseJSONEmptyBody(t *testing.T) {
	t.Parallel()

	r, captured := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, *captured)
}

func TestParseForm(t *testing.T) {
	t.Parallel()

	r, captured := newServer(t)

	w := post(r, "application/x-www-form-urlencoded", "name=widget&tag=a&tag=b")
	require.Equal(t, http.StatusOK, w.Code)

	values, ok := (*captured).(url.Values)
	require.True(t, ok)
	assert.Equal(t, "widget", values.Get("name"))
	assert.Equal(t, []string{"a", "b"}, values["tag"])
}

func TestParseText(t *testing.T) {
	t.Parallel()

	r, captured := newServer(t)

	w := post(r, "text/plain; charset=utf-8", "hello world")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello world", *captured)
}

func TestParseTextLatin1Charset(t *testing.T) {
	t.Parallel()

	r, captured := newServer(t)

	// "café" in ISO-8859-1: the é is a single 0xE9 byte.
	w := post(r, "text/plain; charset=iso-8859-1", "caf\xe9")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "café", *captured)
}

func TestParseRawFallback(t *testing.T) {
	t.Parallel()

	r, captured := newServer(t)

	w := post(r, "application/octet-stream", "\x00\x01\x02")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte{0, 1, 2}, *captured)
}

func TestRawFallbackDisabled(t *testing.T) {
	t.Parallel()

	r, _ := newServer(t, WithoutRawFallback())

	w := post(r, "application/octet-stream", "data")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestBodyOverLimit(t *testing.T) {
	t.Parallel()

	r, _ := newServer(t, WithMaxSize(16))

	w := post(r, "application/json", `{"k":"`+strings.Repeat("x", 100)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNoBodyPassesThrough(t *testing.T) {
	t.Parallel()

	r := nextrush.MustNew()
	r.Use(New())
	r.GET("/ping", func(c *nextrush.Context) {
		assert.Nil(t, c.Body())
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (string, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return mw.FormDataContentType(), &buf
}

func TestParseMultipart(t *testing.T) {
	t.Parallel()

	r, captured := newServer(t)

	contentType, body := multipartBody(t,
		map[string]string{"title": "report"},
		map[string][]byte{"doc": []byte("file content")},
	)

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	form, ok := (*captured).(*Form)
	require.True(t, ok)
	assert.Equal(t, "report", form.Fields.Get("title"))

	file := form.File("doc")
	require.NotNil(t, file)
	assert.Equal(t, "doc.bin", file.Name)
	assert.Equal(t, int64(len("file content")), file.Size)
	assert.True(t, file.InMemory())

	data, err := file.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "file content", string(data))
}

func TestMultipartFileOverLimit(t *testing.T) {
	t.Parallel()

	r, _ := newServer(t, WithMaxFileSize(8))

	contentType, body := multipartBody(t, nil,
		map[string][]byte{"doc": bytes.Repeat([]byte("x"), 64)},
	)

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMultipartTotalLimitChunked(t *testing.T) {
	t.Parallel()

	// Per-file limit far above the total limit, so the total-limit guard
	// is what trips mid-file.
	r, _ := newServer(t, WithMaxSize(1024), WithMaxFileSize(1<<20))

	contentType, body := multipartBody(t, nil,
		map[string][]byte{"doc": bytes.Repeat([]byte("z"), 4096)},
	)

	// Wrapping the buffer hides its length from NewRequest, so the request
	// goes out chunked (ContentLength -1) and skips the fast reject.
	req := httptest.NewRequest(http.MethodPost, "/upload", io.MultiReader(body))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "exceeds 1024 byte limit")
}

func TestMultipartFileCountLimit(t *testing.T) {
	t.Parallel()

	r, _ := newServer(t, WithMaxFiles(1))

	contentType, body := multipartBody(t, nil, map[string][]byte{
		"one": []byte("a"),
		"two": []byte("b"),
	})

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMultipartSpillToDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r, captured := newServer(t, WithTempDir(dir), WithMemoryThreshold(8))

	content := bytes.Repeat([]byte("y"), 64)
	contentType, body := multipartBody(t, nil, map[string][]byte{"big": content})

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	form := (*captured).(*Form)
	file := form.File("big")
	require.NotNil(t, file)
	assert.False(t, file.InMemory())
	assert.Equal(t, int64(64), file.Size)

	data, err := file.Bytes()
	require.NoError(t, err)
	assert.Equal(t, content, data)
	require.NoError(t, file.Close())
}

func TestMultipartMissingBoundary(t *testing.T) {
	t.Parallel()

	r, _ := newServer(t)

	w := post(r, "multipart/form-data", "not a multipart body")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "evil.sh", sanitizeFilename("../../evil.sh"))
	assert.Equal(t, "evil.sh", sanitizeFilename(`C:\temp\evil.sh`))
	assert.Equal(t, "report.pdf", sanitizeFilename("report.pdf"))
}
