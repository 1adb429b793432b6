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

import "net/http"

// Group organizes related routes under a shared path prefix and middleware.
// The final chain for a grouped route is:
// [global middleware...] + [group middleware...] + [route handlers...].
//
// Example:
//
//	api := r.Group("/api/v1", authMiddleware)
//	users := api.Group("/users")
//	users.GET("/:id", getUser) // Final path: /api/v1/users/:id
type Group struct {
	router     *Router
	prefix     string
	middleware []HandlerFunc
}

// Group creates a route group on the router.
func (r *Router) Group(prefix string, middleware ...HandlerFunc) *Group {
	return &Group{router: r, prefix: prefix, middleware: middleware}
}

// Use adds middleware to the group, applied to routes registered afterwards.
func (g *Group) Use(middleware ...HandlerFunc) {
	g.middleware = append(g.middleware, middleware...)
}

// Group creates a nested group. Prefix and middleware are inherited.
func (g *Group) Group(prefix string, middleware ...HandlerFunc) *Group {
	combined := make([]HandlerFunc, 0, len(g.middleware)+len(middleware))
	combined = append(combined, g.middleware...)
	combined = append(combined, middleware...)

	return &Group{
		router:     g.router,
		prefix:     joinPrefix(g.prefix, prefix),
		middleware: combined,
	}
}

// GET adds a GET route under the group's prefix.
func (g *Group) GET(path string, handlers ...HandlerFunc) {
	g.handle(http.MethodGet, path, handlers)
}

// POST adds a POST route under the group's prefix.
func (g *Group) POST(path string, handlers ...HandlerFunc) {
	g.handle(http.MethodPost, path, handlers)
}

// PUT adds a PUT route under the group's prefix.
func (g *Group) PUT(path string, handlers ...HandlerFunc) {
	g.handle(http.MethodPut, path, handlers)
}

// PATCH adds a PATCH route under the group's prefix.
func (g *Group) PATCH(path string, handlers ...HandlerFunc) {
	g.handle(http.MethodPatch, path, handlers)
}

// DELETE adds a DELETE route under the group's prefix.
func (g *Group) DELETE(path string, handlers ...HandlerFunc) {
	g.handle(http.MethodDelete, path, handlers)
}

// HEAD adds a HEAD route under the group's prefix.
func (g *Group) HEAD(path string, handlers ...HandlerFunc) {
	g.handle(http.MethodHead, path, handlers)
}

// OPTIONS adds an OPTIONS route under the group's prefix.
func (g *Group) OPTIONS(path string, handlers ...HandlerFunc) {
	g.handle(http.MethodOptions, path, handlers)
}

func (g *Group) handle(method, path string, handlers []HandlerFunc) {
	combined := make([]HandlerFunc, 0, len(g.middleware)+len(handlers))
	combined = append(combined, g.middleware...)
	combined = append(combined, handlers...)
	g.router.mustHandle(method, joinPrefix(g.prefix, path), combined...)
}

func joinPrefix(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "" || path == "/":
		return prefix
	default:
		return prefix + path
	}
}
