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

import "strings"

// mountCfg holds configuration for a mounted subrouter.
type mountCfg struct {
	extraMiddleware []HandlerFunc
}

// MountOption configures how a subrouter is mounted.
type MountOption func(*mountCfg)

// WithMountMiddleware inserts middleware between the parent's global
// middleware and the subrouter's chains for every mounted route.
func WithMountMiddleware(m ...HandlerFunc) MountOption {
	return func(cfg *mountCfg) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, m...)
	}
}

// Mount copies the subrouter's routes into the parent with the prefix
// prepended. Route patterns stay intact for observability: mounting
// "/users/:id" under "/admin" records "/admin/users/:id", not a catch-all.
//
// Chain order per mounted route: parent global middleware, mount
// middleware, subrouter chain (its global middleware plus handlers).
// The subrouter itself remains usable and unchanged.
//
// Example:
//
//	admin := nextrush.MustNew()
//	admin.GET("/users/:id", getUser)
//	r.Mount("/admin", admin)
func (r *Router) Mount(prefix string, sub *Router, opts ...MountOption) {
	if sub == nil {
		return
	}

	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" || prefix[0] != '/' {
		prefix = "/" + prefix
	}

	cfg := &mountCfg{}
	for _, opt := range opts {
		opt(cfg)
	}

	sub.mu.RLock()
	type mounted struct {
		method, pattern string
		handlers        []HandlerFunc
	}
	var routes []mounted
	for method, tree := range sub.trees {
		tree.walk(func(pattern string, handlers []HandlerFunc) {
			routes = append(routes, mounted{method: method, pattern: pattern, handlers: handlers})
		})
	}
	sub.mu.RUnlock()

	// Handle prepends the parent's global middleware; only the mount
	// middleware needs splicing here.
	for _, rt := range routes {
		fullPath := prefix + rt.pattern
		if rt.pattern == "/" || rt.pattern == "" {
			fullPath = prefix
		}
		chain := make([]HandlerFunc, 0, len(cfg.extraMiddleware)+len(rt.handlers))
		chain = append(chain, cfg.extraMiddleware...)
		chain = append(chain, rt.handlers...)
		r.mustHandle(rt.method, fullPath, chain...)
	}
}

// walk visits every terminal node in the tree, reporting its registered
// pattern and handler chain.
func (n *node) walk(fn func(pattern string, handlers []HandlerFunc)) {
	if n.handlers != nil {
		fn(n.pattern, n.handlers)
	}
	for _, child := range n.staticPaths {
		child.walk(fn)
	}
	for i := range n.edges {
		n.edges[i].node.walk(fn)
	}
	for _, rp := range n.regexps {
		rp.node.walk(fn)
	}
	if n.param != nil {
		n.param.node.walk(fn)
	}
	if n.wildcard != nil {
		n.wildcard.walk(fn)
	}
}
