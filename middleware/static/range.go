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
	"errors"
	"strconv"
	"strings"
)

// byteRange is a resolved half-open [start, start+length) slice of a file.
type byteRange struct {
	start  int64
	length int64
}

var errUnsatisfiableRange = errors.New("unsatisfiable byte range")

// parseRange resolves a single-range Range header against a file of the
// given size. Supported forms: "bytes=M-N", "bytes=M-" (open), and
// "bytes=-N" (suffix). Multi-range requests and malformed specs are
// unsatisfiable.
func parseRange(header string, size int64) (byteRange, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return byteRange{}, errUnsatisfiableRange
	}
	spec = strings.TrimSpace(spec)

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return byteRange{}, errUnsatisfiableRange
	}

	if startStr == "" {
		// Suffix form: last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, errUnsatisfiableRange
		}
		if n > size {
			n = size
		}

		return byteRange{start: size - n, length: n}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return byteRange{}, errUnsatisfiableRange
	}

	if endStr == "" {
		// Open form: from start to EOF.
		return byteRange{start: start, length: size - start}, nil
	}

	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return byteRange{}, errUnsatisfiableRange
	}
	if end >= size {
		end = size - 1
	}

	return byteRange{start: start, length: end - start + 1}, nil
}

// contentRange renders the Content-Range value for a 206 response.
func (r byteRange) contentRange(size int64) string {
	return "bytes " + strconv.FormatInt(r.start, 10) + "-" +
		strconv.FormatInt(r.start+r.length-1, 10) + "/" +
		strconv.FormatInt(size, 10)
}
