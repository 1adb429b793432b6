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

	"github.com/andybalholm/brotli"
)

// brotliLevel trades ratio for insert latency; compression runs once per
// cache insert, not per request.
const brotliLevel = 4

// variantFor picks the best precomputed variant the client accepts,
// brotli before gzip.
func (f *cachedFile) variantFor(accept string) (string, []byte) {
	if f.brotli != nil && acceptsEncoding(accept, "br") {
		return "br", f.brotli
	}
	if f.gzip != nil && acceptsEncoding(accept, "gzip") {
		return "gzip", f.gzip
	}

	return "", nil
}

// gzipBytes compresses data, returning nil when compression fails or does
// not shrink the payload.
func gzipBytes(data []byte) []byte {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return nil
	}
	if buf.Len() >= len(data) {
		return nil
	}

	return buf.Bytes()
}

// brotliBytes compresses data, returning nil when compression fails or
// does not shrink the payload.
func brotliBytes(data []byte) []byte {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotliLevel)
	if _, err := w.Write(data); err != nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return nil
	}
	if buf.Len() >= len(data) {
		return nil
	}

	return buf.Bytes()
}
