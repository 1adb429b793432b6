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
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultRouteCacheSize is the default capacity of the route cache.
const DefaultRouteCacheSize = 1000

// routeEntry is a cached route resolution. Negative results (no handlers)
// are cached too, so repeated misses skip the tree walk.
//
// Parameter captures are stored as a flat key/value slice and replayed into
// the context on each hit; handlers and pattern are shared, never mutated.
type routeEntry struct {
	handlers []HandlerFunc
	pattern  string
	paramKV  []string // Alternating key, value pairs
}

// routeCache memoizes route resolutions keyed "METHOD:path". The underlying
// LRU is safe for concurrent use; any route registration purges the whole
// cache rather than tracking which entries a new route invalidates.
type routeCache struct {
	lru *lru.Cache[string, *routeEntry]
}

func newRouteCache(size int) (*routeCache, error) {
	if size <= 0 {
		return nil, ErrRouteCacheSizeInvalid
	}
	c, err := lru.New[string, *routeEntry](size)
	if err != nil {
		return nil, err
	}

	return &routeCache{lru: c}, nil
}

func (rc *routeCache) get(method, path string) (*routeEntry, bool) {
	return rc.lru.Get(method + ":" + path)
}

func (rc *routeCache) put(method, path string, e *routeEntry) {
	rc.lru.Add(method+":"+path, e)
}

// purge drops every entry. Called on any route registration or mount.
func (rc *routeCache) purge() {
	rc.lru.Purge()
}

// apply replays a cached match into the context. Returns false for cached
// negative entries.
func (e *routeEntry) apply(c *Context) bool {
	if e.handlers == nil {
		return false
	}
	for i := 0; i+1 < len(e.paramKV); i += 2 {
		c.setParam(e.paramKV[i], e.paramKV[i+1])
	}
	c.handlers = e.handlers
	c.routePattern = e.pattern

	return true
}

// snapshotParams captures the context's parameters for caching.
func snapshotParams(c *Context) []string {
	n := int(c.paramCount)
	if n == 0 && len(c.params) == 0 {
		return nil
	}
	kv := make([]string, 0, 2*(n+len(c.params)))
	for i := range c.paramCount {
		kv = append(kv, c.paramKeys[i], c.paramValues[i])
	}
	for k, v := range c.params {
		kv = append(kv, k, v)
	}

	return kv
}
