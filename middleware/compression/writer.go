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

package compression

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// encodingWriter buffers the response up to the threshold before deciding
// whether to compress. Small responses go out unmodified; once the buffer
// fills, the compressor takes over for the rest of the body.
//
// Headers are held back until the decision is made so Content-Encoding and
// Content-Length stay truthful.
type encodingWriter struct {
	http.ResponseWriter
	encoding     string
	pool         *sync.Pool
	threshold    int
	excludeTypes map[string]bool

	buffer     []byte
	statusCode int

	compressor io.WriteCloser
	decided    bool
	compress   bool
	sentHeader bool
}

func (ew *encodingWriter) WriteHeader(code int) {
	if ew.sentHeader {
		return
	}
	ew.statusCode = code

	// These statuses and content types never get compressed; decide now
	// and release the headers immediately.
	if skipStatus(code) || skipContentType(ew.Header().Get("Content-Type"), ew.excludeTypes) {
		ew.decided = true
		ew.compress = false
		ew.ResponseWriter.WriteHeader(code)
		ew.sentHeader = true
	}
	// Otherwise hold the header until the first write decides.
}

func (ew *encodingWriter) Write(data []byte) (int, error) {
	if ew.decided {
		if ew.compress {
			return ew.compressor.Write(data)
		}

		return ew.ResponseWriter.Write(data)
	}

	if ew.threshold == 0 {
		ew.startCompressing()

		return ew.compressor.Write(data)
	}

	total := len(data)
	if space := cap(ew.buffer) - len(ew.buffer); space > 0 {
		n := min(space, len(data))
		ew.buffer = append(ew.buffer, data[:n]...)
		data = data[n:]
	}

	if len(ew.buffer) >= ew.threshold || len(data) > 0 {
		if len(ew.buffer) >= ew.threshold {
			ew.startCompressing()
		} else {
			ew.passThrough()
		}
		if err := ew.drain(data); err != nil {
			return total, err
		}
	}

	return total, nil
}

// close flushes whatever is pending and returns the pooled compressor.
// Must be called after the handler chain completes.
func (ew *encodingWriter) close() error {
	if !ew.decided {
		// Body never reached the threshold; send it as-is.
		ew.passThrough()

		return ew.drain(nil)
	}

	if !ew.compress || ew.compressor == nil {
		return nil
	}

	err := ew.compressor.Close()
	switch w := ew.compressor.(type) {
	case *brotli.Writer:
		w.Reset(io.Discard)
	case *gzip.Writer:
		w.Reset(io.Discard)
	}
	ew.pool.Put(ew.compressor)
	ew.compressor = nil

	return err
}

func (ew *encodingWriter) startCompressing() {
	ew.decided = true
	ew.compress = true

	h := ew.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", ew.encoding)
	h.Add("Vary", "Accept-Encoding")

	ew.flushHeader()

	switch w := ew.pool.Get().(type) {
	case *brotli.Writer:
		w.Reset(ew.ResponseWriter)
		ew.compressor = w
	case *gzip.Writer:
		w.Reset(ew.ResponseWriter)
		ew.compressor = w
	}
}

func (ew *encodingWriter) passThrough() {
	ew.decided = true
	ew.compress = false
	ew.flushHeader()
}

func (ew *encodingWriter) flushHeader() {
	if !ew.sentHeader {
		code := ew.statusCode
		if code == 0 {
			code = http.StatusOK
		}
		ew.ResponseWriter.WriteHeader(code)
		ew.sentHeader = true
	}
}

// drain writes the held buffer and then data to whichever sink won.
func (ew *encodingWriter) drain(data []byte) error {
	var dst io.Writer = ew.ResponseWriter
	if ew.compress {
		dst = ew.compressor
	}

	if len(ew.buffer) > 0 {
		if _, err := dst.Write(ew.buffer); err != nil {
			return err
		}
		ew.buffer = ew.buffer[:0]
	}
	if len(data) > 0 {
		if _, err := dst.Write(data); err != nil {
			return err
		}
	}

	return nil
}

// Flush ends buffering and forwards the flush, needed for SSE-like
// handlers that slipped past the content-type skip.
func (ew *encodingWriter) Flush() {
	if !ew.decided {
		ew.passThrough()
		_ = ew.drain(nil)
	}
	if f, ok := ew.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func skipStatus(code int) bool {
	return code == http.StatusNoContent ||
		code == http.StatusNotModified ||
		code == http.StatusPartialContent
}

func skipContentType(ct string, excludes map[string]bool) bool {
	if ct == "" {
		return false
	}
	ct = strings.ToLower(ct)

	if strings.Contains(ct, "text/event-stream") ||
		strings.Contains(ct, "application/grpc") ||
		strings.Contains(ct, "application/octet-stream") {
		return true
	}

	for excluded := range excludes {
		if strings.Contains(ct, strings.ToLower(excluded)) {
			return true
		}
	}

	return false
}
