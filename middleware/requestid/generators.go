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
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"os"
	"strconv"
	"time"

	mathrand "math/rand/v2"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces request ids.
type Generator func() string

// Hex returns 32 hex characters from crypto/rand. This is the default
// generator.
func Hex() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is close to unheard of; fall back to
		// timestamp + random + pid so ids stay collision resistant.
		binary.BigEndian.PutUint64(b[0:8], uint64(time.Now().UnixNano()))
		binary.BigEndian.PutUint32(b[8:12], uint32(mathrand.Uint64()))
		binary.BigEndian.PutUint32(b[12:16], uint32(os.Getpid()))
	}

	return hex.EncodeToString(b)
}

// UUID returns a random (version 4) UUID string.
func UUID() string {
	return uuid.NewString()
}

// ULID returns a lexicographically sortable ULID. Sorting by id then also
// sorts by creation time, which is handy for log scanning.
func ULID() string {
	return ulid.Make().String()
}

// Timestamp returns nanosecond-timestamp-dash-random ids. Human readable
// but only as unique as the random suffix; prefer Hex or ULID in
// production.
func Timestamp() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10) + "-" +
		strconv.FormatUint(mathrand.Uint64()%1_000_000, 10)
}
