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

package nextrush

import (
	"bufio"
	"io"
	"net"
	"net/http"
)

// responseWriter wraps http.ResponseWriter to capture the status code and
// byte count, and to latch once headers have been flushed. The latch is
// monotonic: once headers go out, status and header mutation are rejected.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int64
	written    bool
}

// Compile-time interface checks. The wrapper must preserve the optional
// interfaces of the underlying writer (Flush for SSE, Hijack for
// WebSocket upgrades, Push for HTTP/2, ReaderFrom for sendfile).
var (
	_ http.ResponseWriter = (*responseWriter)(nil)
	_ http.Flusher        = (*responseWriter)(nil)
	_ http.Hijacker       = (*responseWriter)(nil)
	_ http.Pusher         = (*responseWriter)(nil)
	_ io.ReaderFrom       = (*responseWriter)(nil)
)

func (rw *responseWriter) reset(w http.ResponseWriter) {
	rw.ResponseWriter = w
	rw.statusCode = 0
	rw.size = 0
	rw.written = false
}

// WriteHeader flushes the response headers with the given status. Later
// calls are ignored; the first status wins.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write sends body bytes, implicitly flushing a 200 header first.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)

	return n, err
}

// StatusCode returns the status sent to the client, defaulting to 200.
func (rw *responseWriter) StatusCode() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}

	return rw.statusCode
}

// Size returns the number of body bytes written so far.
func (rw *responseWriter) Size() int64 { return rw.size }

// Written reports whether headers have been flushed.
func (rw *responseWriter) Written() bool { return rw.written }

// Flush implements http.Flusher.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker (required for WebSocket upgrades).
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}

	return nil, nil, ErrResponseWriterNotHijacker
}

// Push implements http.Pusher (HTTP/2 server push).
func (rw *responseWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := rw.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}

	return http.ErrNotSupported
}

// ReadFrom implements io.ReaderFrom using zero-copy when available.
func (rw *responseWriter) ReadFrom(r io.Reader) (int64, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	if rf, ok := rw.ResponseWriter.(io.ReaderFrom); ok {
		n, err := rf.ReadFrom(r)
		rw.size += n

		return n, err
	}
	n, err := io.Copy(rw.ResponseWriter, r)
	rw.size += n

	return n, err
}
