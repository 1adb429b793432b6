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

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextrush/nextrush"
)

// writeTree lays down a small site under a temp dir.
func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"index.html":        "<html>home</html>",
		"style.css":         "body { color: red }",
		"data.bin":          "\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09",
		".secret":           "hidden",
		"docs/index.html":   "<html>docs</html>",
		"docs/guide.txt":    "read me carefully",
		"app.js":            "console.log('hi')",
		"app.js.gz":         "gzipped-js",
		"app.js.br":         "brotlied-js",
		".well-known/x.txt": "acme",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	return root
}

func newServer(t *testing.T, mount string, opts ...Option) *nextrush.Router {
	t.Helper()

	r := nextrush.MustNew()
	r.Use(New(mount, writeTree(t), opts...))
	r.GET("/api/ping", func(c *nextrush.Context) {
		c.String(http.StatusOK, "pong")
	})

	return r
}

func perform(r *nextrush.Router, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestServesFileWithHeaders(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets", WithMaxAge(3600), WithImmutable())
	w := perform(r, http.MethodGet, "/assets/style.css", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body { color: red }", w.Body.String())
	assert.Equal(t, "text/css; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.Equal(t, "public, max-age=3600, immutable", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("ETag"))
	assert.NotEmpty(t, w.Header().Get("Last-Modified"))
}

func TestOutsideMountFallsThrough(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets")
	w := perform(r, http.MethodGet, "/api/ping", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestMountBoundaryIsSegment(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets")
	// /assets-old shares the prefix but not the segment.
	w := perform(r, http.MethodGet, "/assets-oldstyle.css", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDirectoryServesIndex(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets")

	root := perform(r, http.MethodGet, "/assets", nil)
	assert.Equal(t, http.StatusOK, root.Code)
	assert.Equal(t, "<html>home</html>", root.Body.String())

	sub := perform(r, http.MethodGet, "/assets/docs", nil)
	assert.Equal(t, http.StatusOK, sub.Code)
	assert.Equal(t, "<html>docs</html>", sub.Body.String())
}

func TestMissingFile404(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets")
	w := perform(r, http.MethodGet, "/assets/nope.css", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTraversalAnswers404(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets")
	for _, path := range []string{
		"/assets/../../../etc/passwd",
		"/assets/..%2f..%2fetc/passwd",
		"/assets/docs/../../../shadow.txt",
	} {
		w := perform(r, http.MethodGet, path, nil)
		assert.NotEqual(t, http.StatusOK, w.Code, "path %q must not serve", path)
		assert.NotEqual(t, http.StatusForbidden, w.Code, "escapes are 404, never 403")
	}
}

func TestDotfilePolicies(t *testing.T) {
	t.Parallel()

	ignore := newServer(t, "/assets")
	assert.Equal(t, http.StatusNotFound,
		perform(ignore, http.MethodGet, "/assets/.secret", nil).Code)

	deny := newServer(t, "/assets", WithDotfiles(DotfilesDeny))
	assert.Equal(t, http.StatusForbidden,
		perform(deny, http.MethodGet, "/assets/.secret", nil).Code)

	allow := newServer(t, "/assets", WithDotfiles(DotfilesAllow))
	got := perform(allow, http.MethodGet, "/assets/.well-known/x.txt", nil)
	assert.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "acme", got.Body.String())
}

func TestSPAFallback(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/", WithSPA())
	w := perform(r, http.MethodGet, "/deep/client/route", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>home</html>", w.Body.String())
}

func TestConditionalRequests(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets")

	first := perform(r, http.MethodGet, "/assets/style.css", nil)
	etag := first.Header().Get("ETag")
	lastModified := first.Header().Get("Last-Modified")
	require.NotEmpty(t, etag)

	byTag := perform(r, http.MethodGet, "/assets/style.css",
		map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, byTag.Code)
	assert.Empty(t, byTag.Body.String())

	byTime := perform(r, http.MethodGet, "/assets/style.css",
		map[string]string{"If-Modified-Since": lastModified})
	assert.Equal(t, http.StatusNotModified, byTime.Code)
}

func TestRangeRequests(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets")

	t.Run("closed", func(t *testing.T) {
		t.Parallel()
		w := perform(r, http.MethodGet, "/assets/data.bin",
			map[string]string{"Range": "bytes=2-5"})
		assert.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "bytes 2-5/10", w.Header().Get("Content-Range"))
		assert.Equal(t, []byte{2, 3, 4, 5}, w.Body.Bytes())
	})

	t.Run("open", func(t *testing.T) {
		t.Parallel()
		w := perform(r, http.MethodGet, "/assets/data.bin",
			map[string]string{"Range": "bytes=7-"})
		assert.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "bytes 7-9/10", w.Header().Get("Content-Range"))
		assert.Equal(t, []byte{7, 8, 9}, w.Body.Bytes())
	})

	t.Run("suffix", func(t *testing.T) {
		t.Parallel()
		w := perform(r, http.MethodGet, "/assets/data.bin",
			map[string]string{"Range": "bytes=-3"})
		assert.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "bytes 7-9/10", w.Header().Get("Content-Range"))
	})

	t.Run("unsatisfiable", func(t *testing.T) {
		t.Parallel()
		w := perform(r, http.MethodGet, "/assets/data.bin",
			map[string]string{"Range": "bytes=50-60"})
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
		assert.Equal(t, "bytes */10", w.Header().Get("Content-Range"))
	})
}

func TestPrecompressedVariants(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets", WithPrecompressed())

	br := perform(r, http.MethodGet, "/assets/app.js",
		map[string]string{"Accept-Encoding": "gzip, br"})
	assert.Equal(t, "br", br.Header().Get("Content-Encoding"))
	assert.Equal(t, "brotlied-js", br.Body.String())
	assert.Contains(t, br.Header().Values("Vary"), "Accept-Encoding")
	// Content type stays that of the original file.
	assert.Equal(t, "text/javascript; charset=utf-8", br.Header().Get("Content-Type"))

	gz := perform(r, http.MethodGet, "/assets/app.js",
		map[string]string{"Accept-Encoding": "gzip"})
	assert.Equal(t, "gzip", gz.Header().Get("Content-Encoding"))
	assert.Equal(t, "gzipped-js", gz.Body.String())

	plain := perform(r, http.MethodGet, "/assets/app.js", nil)
	assert.Empty(t, plain.Header().Get("Content-Encoding"))
	assert.Equal(t, "console.log('hi')", plain.Body.String())
}

func TestComputedVariantsOnCacheInsert(t *testing.T) {
	t.Parallel()

	// Repetitive enough that both encoders beat the identity size.
	content := strings.Repeat(".card { margin: 0; padding: 0 }\n", 128)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bundle.css"), []byte(content), 0o644))

	cache := NewCache(1 << 20)
	r := nextrush.MustNew()
	r.Use(New("/assets", root, WithPrecompressed(), WithCache(cache)))

	br := perform(r, http.MethodGet, "/assets/bundle.css",
		map[string]string{"Accept-Encoding": "gzip, br"})
	assert.Equal(t, http.StatusOK, br.Code)
	assert.Equal(t, "br", br.Header().Get("Content-Encoding"))
	assert.Contains(t, br.Header().Values("Vary"), "Accept-Encoding")
	assert.True(t, strings.HasSuffix(br.Header().Get("ETag"), `-br"`))
	assert.Less(t, br.Body.Len(), len(content))

	decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(br.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, content, string(decoded))

	gz := perform(r, http.MethodGet, "/assets/bundle.css",
		map[string]string{"Accept-Encoding": "gzip"})
	assert.Equal(t, "gzip", gz.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(bytes.NewReader(gz.Body.Bytes()))
	require.NoError(t, err)
	decoded, err = io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, content, string(decoded))

	// Identity requests still get the original bytes.
	plain := perform(r, http.MethodGet, "/assets/bundle.css", nil)
	assert.Empty(t, plain.Header().Get("Content-Encoding"))
	assert.Equal(t, content, plain.Body.String())

	// The footprint counts the original plus both variants.
	assert.Greater(t, cache.Bytes(), int64(len(content)))
}

func TestHeadRequestNoBody(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets")
	w := perform(r, http.MethodHead, "/assets/style.css", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "19", w.Header().Get("Content-Length"))
	assert.Empty(t, w.Body.String())
}

func TestCacheServesAndBounds(t *testing.T) {
	t.Parallel()

	cache := NewCache(1 << 20)
	r := newServer(t, "/assets", WithCache(cache))

	perform(r, http.MethodGet, "/assets/style.css", nil)
	assert.Positive(t, cache.Bytes())

	// Purge empties the footprint; the next request repopulates.
	cache.Purge()
	assert.Zero(t, cache.Bytes())

	w := perform(r, http.MethodGet, "/assets/style.css", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body { color: red }", w.Body.String())
}

func TestCacheEvictsWhenOverBudget(t *testing.T) {
	t.Parallel()

	cache := NewCache(24)
	cache.put("a", &cachedFile{data: []byte("0123456789")})
	cache.put("b", &cachedFile{data: []byte("0123456789")})
	assert.EqualValues(t, 20, cache.Bytes())

	// Third entry pushes the total over 24 bytes; the oldest goes.
	cache.put("c", &cachedFile{data: []byte("0123456789")})
	assert.LessOrEqual(t, cache.Bytes(), int64(24))
	_, ok := cache.get("a")
	assert.False(t, ok)
	_, ok = cache.get("c")
	assert.True(t, ok)
}

func TestOversizedFileStreams(t *testing.T) {
	t.Parallel()

	cache := NewCache(1 << 20)
	r := newServer(t, "/assets", WithCache(cache), WithMaxFileSize(4))

	w := perform(r, http.MethodGet, "/assets/style.css", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body { color: red }", w.Body.String())
	// Streamed straight from disk, never cached.
	assert.Zero(t, cache.Bytes())
}

func TestPostFallsThrough(t *testing.T) {
	t.Parallel()

	r := newServer(t, "/assets")
	w := perform(r, http.MethodPost, "/assets/style.css", nil)

	// Not served by static; no POST route exists either.
	assert.Equal(t, http.StatusNotFound, w.Code)
}
