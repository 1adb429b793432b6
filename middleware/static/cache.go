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
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheEntries bounds the LRU by entry count; the byte budget is what
// actually matters and is enforced separately.
const cacheEntries = 65536

type cachedFile struct {
	data    []byte
	gzip    []byte // Precompressed variants; nil when absent
	brotli  []byte
	modTime time.Time
}

// size is the entry's full cache footprint, variants included.
func (f *cachedFile) size() int64 {
	return int64(len(f.data) + len(f.gzip) + len(f.brotli))
}

// Cache holds file contents in memory, bounded by total bytes. Keys
// include mtime and size, so an updated file naturally misses and the
// stale entry ages out of the LRU.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, *cachedFile]
	bytes int64
	max   int64
}

// NewCache creates a byte-bounded file cache. A non-positive budget
// disables caching (every Get misses).
func NewCache(maxBytes int64) *Cache {
	c := &Cache{max: maxBytes}
	if maxBytes <= 0 {
		return c
	}

	// The eviction callback only runs inside Add/RemoveOldest/Purge,
	// which all hold c.mu here.
	l, _ := lru.NewWithEvict(cacheEntries, func(_ string, v *cachedFile) {
		c.bytes -= v.size()
	})
	c.lru = l

	return c
}

func cacheKey(absPath string, modTime time.Time, size int64) string {
	return absPath + ":" + strconv.FormatInt(modTime.UnixMilli(), 10) +
		":" + strconv.FormatInt(size, 10)
}

func (c *Cache) get(key string) (*cachedFile, bool) {
	if c.lru == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Get(key)
}

func (c *Cache) put(key string, f *cachedFile) {
	if c.lru == nil || f.size() > c.max {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, f)
	c.bytes += f.size()
	for c.bytes > c.max {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
}

// Purge drops every cached file. Wire it as a shutdown hook so tests and
// restarts start cold.
func (c *Cache) Purge() {
	if c.lru == nil {
		return
	}

	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}

// Bytes returns the current cache footprint.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.bytes
}
