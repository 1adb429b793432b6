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

// Package static serves files from a directory under a mount path, with
// an in-memory LRU cache, conditional requests, single-range requests,
// and optional precompressed variants.
//
// Traversal attempts are cleaned away and anything else that would land
// outside the root answers 404, deliberately indistinguishable from a
// missing file.
package static

import (
	"io"
	"mime"
	"net/http"
	"os"
	gopath "path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nextrush/nextrush"
)

// contentTypes maps common extensions ahead of the platform mime table.
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".mjs":   "text/javascript; charset=utf-8",
	".json":  "application/json",
	".xml":   "application/xml",
	".txt":   "text/plain; charset=utf-8",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".pdf":   "application/pdf",
	".wasm":  "application/wasm",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".mp4":   "video/mp4",
}

type server struct {
	mount string
	root  string
	cfg   *config
	cache *Cache
}

// New returns a middleware serving files from root under mountPath.
// Requests outside the mount fall through to the next handler. Panics
// when root cannot be made absolute; a bad root is a registration error.
//
//	r.Use(static.New("/assets", "./public",
//	    static.WithMaxAge(3600),
//	    static.WithPrecompressed(),
//	))
//
// Single-page app serving:
//
//	r.Use(static.New("/", "./dist", static.WithSPA()))
func New(mountPath, root string, opts ...Option) nextrush.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = nextrush.NoopLogger()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		panic("static: cannot resolve root " + root + ": " + err.Error())
	}

	mount := "/" + strings.Trim(mountPath, "/")

	cache := cfg.cache
	if cache == nil {
		cache = NewCache(cfg.maxCacheSize)
	}

	s := &server{mount: mount, root: absRoot, cfg: cfg, cache: cache}

	return func(c *nextrush.Context) {
		if m := c.Request.Method; m != http.MethodGet && m != http.MethodHead {
			c.Next()

			return
		}
		rel, ok := s.stripMount(c.Request.URL.Path)
		if !ok {
			c.Next()

			return
		}
		s.serve(c, rel)
	}
}

// stripMount returns the path below the mount, or false when the request
// is outside it. The boundary must be a whole segment: mount /assets does
// not claim /assets-old.
func (s *server) stripMount(reqPath string) (string, bool) {
	if s.mount == "/" {
		return reqPath, true
	}
	rel, ok := strings.CutPrefix(reqPath, s.mount)
	if !ok || (rel != "" && rel[0] != '/') {
		return "", false
	}

	return rel, true
}

func (s *server) serve(c *nextrush.Context, rel string) {
	// Clean resolves "." and ".." against a rooted path, so traversal
	// below the mount cannot survive it.
	clean := gopath.Clean("/" + rel)

	if hasDotSegment(clean) {
		switch s.cfg.dotfiles {
		case DotfilesDeny:
			c.WriteErrorResponse(http.StatusForbidden, "Forbidden")

			return
		case DotfilesIgnore:
			c.NotFound()

			return
		case DotfilesAllow:
		}
	}

	fsPath := filepath.Join(s.root, filepath.FromSlash(clean))
	if fsPath != s.root && !strings.HasPrefix(fsPath, s.root+string(filepath.Separator)) {
		// Escaped the root; answer exactly like a missing file.
		c.NotFound()

		return
	}

	info, err := os.Stat(fsPath)
	if err == nil && info.IsDir() {
		for _, name := range s.cfg.index {
			indexPath := filepath.Join(fsPath, name)
			if fi, statErr := os.Stat(indexPath); statErr == nil && !fi.IsDir() {
				s.serveFile(c, indexPath, fi)

				return
			}
		}
		err = os.ErrNotExist
	}

	if err != nil {
		if s.cfg.spa {
			s.serveAppShell(c)

			return
		}
		c.NotFound()

		return
	}

	s.serveFile(c, fsPath, info)
}

// serveAppShell serves the root index file so a client-side router can
// handle the path.
func (s *server) serveAppShell(c *nextrush.Context) {
	for _, name := range s.cfg.index {
		shell := filepath.Join(s.root, name)
		if fi, err := os.Stat(shell); err == nil && !fi.IsDir() {
			s.serveFile(c, shell, fi)

			return
		}
	}
	c.NotFound()
}

func (s *server) serveFile(c *nextrush.Context, fsPath string, info os.FileInfo) {
	ctype := typeByExtension(fsPath)

	h := c.Response.Header()
	h.Set("Content-Type", ctype)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Accept-Ranges", "bytes")
	if cc := s.cacheControl(); cc != "" {
		h.Set("Cache-Control", cc)
	}

	tag := nextrush.ETag{Value: etagValue(info)}
	if c.Fresh(tag, info.ModTime()) {
		return
	}

	rangeHeader := c.Request.Header.Get("Range")

	if s.cfg.precompress && compressible(ctype) && rangeHeader == "" {
		c.AddVary("Accept-Encoding")
		accept := c.Request.Header.Get("Accept-Encoding")

		// On-disk siblings win: a build pipeline's artifacts beat anything
		// computed at runtime.
		if encoding, varPath, varInfo := s.variant(accept, fsPath); encoding != "" {
			h.Set("Content-Encoding", encoding)
			// The encoded representation gets its own validator.
			c.SetETag(nextrush.ETag{Value: etagValue(varInfo) + "-" + encoding})
			c.SetLastModified(info.ModTime())
			s.send(c, varPath, varInfo, byteRange{start: 0, length: varInfo.Size()}, http.StatusOK)

			return
		}

		// Otherwise serve a variant computed when the file entered the
		// cache.
		if info.Size() <= s.cfg.maxFileSize {
			if entry, err := s.entry(fsPath, info); err == nil {
				if encoding, data := entry.variantFor(accept); encoding != "" {
					h.Set("Content-Encoding", encoding)
					c.SetETag(nextrush.ETag{Value: etagValue(info) + "-" + encoding})
					c.SetLastModified(info.ModTime())
					s.sendBytes(c, data, http.StatusOK)

					return
				}
			}
		}
	}

	c.SetETag(tag)
	c.SetLastModified(info.ModTime())

	if rangeHeader != "" {
		br, err := parseRange(rangeHeader, info.Size())
		if err != nil {
			h.Set("Content-Range", "bytes */"+strconv.FormatInt(info.Size(), 10))
			c.WriteErrorResponse(http.StatusRequestedRangeNotSatisfiable, "Range Not Satisfiable")

			return
		}
		h.Set("Content-Range", br.contentRange(info.Size()))
		s.send(c, fsPath, info, br, http.StatusPartialContent)

		return
	}

	s.send(c, fsPath, info, byteRange{start: 0, length: info.Size()}, http.StatusOK)
}

// send writes status, Content-Length, and (for GET) the selected bytes,
// from cache when the file fits the per-file limit and streaming
// otherwise.
func (s *server) send(c *nextrush.Context, fsPath string, info os.FileInfo, br byteRange, status int) {
	h := c.Response.Header()
	h.Set("Content-Length", strconv.FormatInt(br.length, 10))
	c.Status(status)

	if c.Request.Method == http.MethodHead || br.length == 0 {
		return
	}

	if info.Size() <= s.cfg.maxFileSize {
		entry, err := s.entry(fsPath, info)
		if err != nil {
			s.cfg.logger.Error("read static file", "path", fsPath, "error", err)

			return
		}
		c.Send(entry.data[br.start : br.start+br.length]) //nolint:errcheck

		return
	}

	f, err := os.Open(fsPath)
	if err != nil {
		s.cfg.logger.Error("open static file", "path", fsPath, "error", err)

		return
	}
	defer f.Close()

	if br.start > 0 {
		if _, err := f.Seek(br.start, io.SeekStart); err != nil {
			s.cfg.logger.Error("seek static file", "path", fsPath, "error", err)

			return
		}
	}
	if _, err := io.CopyN(c.Response, f, br.length); err != nil {
		s.cfg.logger.Error("stream static file", "path", fsPath, "error", err)
	}
}

// entry returns the cached file, loading it and computing compressed
// variants on first access.
func (s *server) entry(fsPath string, info os.FileInfo) (*cachedFile, error) {
	key := cacheKey(fsPath, info.ModTime(), info.Size())
	if e, ok := s.cache.get(key); ok {
		return e, nil
	}

	data, err := os.ReadFile(fsPath)
	if err != nil {
		return nil, err
	}
	e := &cachedFile{data: data, modTime: info.ModTime()}
	if s.cfg.precompress && compressible(typeByExtension(fsPath)) {
		e.gzip = gzipBytes(data)
		e.brotli = brotliBytes(data)
	}
	s.cache.put(key, e)

	return e, nil
}

// sendBytes writes status, Content-Length, and (for GET) an in-memory
// body.
func (s *server) sendBytes(c *nextrush.Context, data []byte, status int) {
	c.Response.Header().Set("Content-Length", strconv.Itoa(len(data)))
	c.Status(status)

	if c.Request.Method == http.MethodHead || len(data) == 0 {
		return
	}
	c.Send(data) //nolint:errcheck
}

// variant looks for a precompressed sibling acceptable to the client,
// brotli before gzip.
func (s *server) variant(accept, fsPath string) (string, string, os.FileInfo) {
	candidates := []struct {
		encoding string
		ext      string
	}{
		{"br", ".br"},
		{"gzip", ".gz"},
	}

	for _, cand := range candidates {
		if !acceptsEncoding(accept, cand.encoding) {
			continue
		}
		if fi, err := os.Stat(fsPath + cand.ext); err == nil && !fi.IsDir() {
			return cand.encoding, fsPath + cand.ext, fi
		}
	}

	return "", "", nil
}

func (s *server) cacheControl() string {
	if s.cfg.maxAge <= 0 {
		return ""
	}
	cc := "public, max-age=" + strconv.Itoa(s.cfg.maxAge)
	if s.cfg.immutable {
		cc += ", immutable"
	}

	return cc
}

func etagValue(info os.FileInfo) string {
	return strconv.FormatInt(info.ModTime().UnixMilli(), 10) + "-" +
		strconv.FormatInt(info.Size(), 10)
}

// hasDotSegment reports whether any path segment is dot-prefixed.
func hasDotSegment(clean string) bool {
	for seg := range strings.SplitSeq(clean[1:], "/") {
		if len(seg) > 1 && seg[0] == '.' {
			return true
		}
	}

	return false
}

func typeByExtension(fsPath string) string {
	ext := strings.ToLower(filepath.Ext(fsPath))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	return "application/octet-stream"
}

// compressible reports whether the content type is textual enough to have
// precompressed variants.
func compressible(ctype string) bool {
	return strings.HasPrefix(ctype, "text/") ||
		strings.Contains(ctype, "json") ||
		strings.Contains(ctype, "javascript") ||
		strings.Contains(ctype, "xml") ||
		strings.Contains(ctype, "svg")
}

// acceptsEncoding is a presence check with q=0 rejection; full q-value
// ordering lives in the compression middleware, which negotiates dynamic
// responses.
func acceptsEncoding(accept, encoding string) bool {
	if accept == "" {
		return false
	}
	for part := range strings.SplitSeq(strings.ToLower(accept), ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(name) != encoding {
			continue
		}
		params = strings.ReplaceAll(params, " ", "")
		if v, ok := strings.CutPrefix(params, "q="); ok {
			q, err := strconv.ParseFloat(v, 64)

			return err != nil || q > 0
		}

		return true
	}

	return false
}
