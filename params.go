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

import "sync"

// maxPooledParamMapSize caps the size of maps returned to the pool. Maps
// that grew past this are dropped so one pathological route cannot pin
// memory for every future request.
const maxPooledParamMapSize = 32

// paramMapPool recycles the overflow maps used by routes with more than
// 8 parameters. Maps are cleared on acquire, not on release, so a released
// map never carries stale keys into a new request.
type paramMapPool struct {
	pool sync.Pool
}

func newParamMapPool() *paramMapPool {
	return &paramMapPool{
		pool: sync.Pool{
			New: func() any {
				return make(map[string]string, 8)
			},
		},
	}
}

// Acquire returns an empty parameter map.
func (p *paramMapPool) Acquire() map[string]string {
	m, ok := p.pool.Get().(map[string]string)
	if !ok {
		return make(map[string]string, 8)
	}
	clear(m)

	return m
}

// Release returns a map to the pool. Oversized maps are dropped.
func (p *paramMapPool) Release(m map[string]string) {
	if m == nil || len(m) > maxPooledParamMapSize {
		return
	}
	p.pool.Put(m)
}
