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
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// contextPool recycles Context and responseWriter objects across requests.
// Counters are atomic so Stats can be read while the pool is hot.
type contextPool struct {
	contexts sync.Pool
	writers  sync.Pool
	router   *Router

	gets uint64 // Atomic: total acquire calls
	puts uint64 // Atomic: total release calls
}

// PoolStats holds pool effectiveness statistics.
//
// A healthy pool keeps Gets and Puts close to equal; a widening gap means
// contexts are leaking (retained past the request lifetime).
type PoolStats struct {
	TotalGets uint64  // Total acquire calls
	TotalPuts uint64  // Total release calls
	HitRate   float64 // Puts/Gets ratio, ~1.0 when healthy
}

func newContextPool(r *Router) *contextPool {
	cp := &contextPool{router: r}
	cp.contexts = sync.Pool{
		New: func() any {
			c := &Context{router: r}
			c.reset()
			return c
		},
	}
	cp.writers = sync.Pool{
		New: func() any {
			return &responseWriter{}
		},
	}

	return cp
}

// acquire retrieves a context wired to the given request/response pair.
func (cp *contextPool) acquire(w http.ResponseWriter, r *http.Request) *Context {
	atomic.AddUint64(&cp.gets, 1)

	c, ok := cp.contexts.Get().(*Context)
	if !ok {
		// Should never happen; indicates someone Put() a foreign type.
		panic("nextrush: pool corruption - contexts pool returned non-Context type")
	}

	rw, ok := cp.writers.Get().(*responseWriter)
	if !ok {
		panic("nextrush: pool corruption - writers pool returned non-responseWriter type")
	}
	rw.reset(w)

	c.Request = r
	c.Response = rw
	c.router = cp.router
	c.startTime = time.Now()

	return c
}

// release cleans up a context and returns it to the pool. The caller must
// not touch the context afterwards.
func (cp *contextPool) release(c *Context) {
	atomic.AddUint64(&cp.puts, 1)

	if rw, ok := c.Response.(*responseWriter); ok {
		rw.reset(nil)
		cp.writers.Put(rw)
	}
	c.reset()
	cp.contexts.Put(c)
}

// Stats returns pool effectiveness statistics.
func (cp *contextPool) Stats() PoolStats {
	gets := atomic.LoadUint64(&cp.gets)
	puts := atomic.LoadUint64(&cp.puts)

	var hitRate float64
	if gets > 0 {
		hitRate = float64(puts) / float64(gets)
	}

	return PoolStats{TotalGets: gets, TotalPuts: puts, HitRate: hitRate}
}
