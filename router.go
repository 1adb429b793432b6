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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"sync"
)

// noopLogger is a singleton no-op logger used when no logger is configured.
var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// NoopLogger returns the singleton no-op logger.
func NoopLogger() *slog.Logger {
	return noopLogger
}

// knownMethods are the HTTP methods the router maintains trees for.
// Requests with any other method are answered with 501.
var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// DefaultMaxBodySize is the default request body limit (10 MiB).
const DefaultMaxBodySize int64 = 10 << 20

// Router matches HTTP requests to registered routes and executes handler
// chains. It is safe for concurrent use; routes may be registered while
// serving (each registration purges the route cache).
//
// Example:
//
//	r := nextrush.MustNew()
//	r.GET("/users/:id", func(c *nextrush.Context) {
//	    c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
//	})
//	http.ListenAndServe(":8080", r)
type Router struct {
	mu    sync.RWMutex     // Guards trees
	trees map[string]*node // Per-method route trees

	middleware   []HandlerFunc // Global middleware, combined into chains at registration
	middlewareMu sync.RWMutex

	cache     *routeCache
	paramPool *paramMapPool
	pool      *contextPool
	filters   []ExceptionFilter

	logger            *slog.Logger
	checkCancellation bool
	maxBodySize       int64
	cacheSize         int
	trustedProxies    *trustedProxyConfig
	trustedProxyCIDRs []string

	noRouteHandler HandlerFunc // Custom 404 handler (nil uses the default JSON body)
	noRouteMu      sync.RWMutex

	// Server state (serve.go)
	enableH2C      bool
	serverTimeouts *serverTimeouts
	srv            *http.Server
	srvMu          sync.Mutex
	shutdownHooks  []func()
	hooksMu        sync.Mutex
}

// New creates a router with optional configuration. Configuration is
// validated immediately; for a version that panics on error use MustNew.
//
// Example:
//
//	r, err := nextrush.New(
//	    nextrush.WithRouteCacheSize(2048),
//	    nextrush.WithMaxBodySize(32<<20),
//	)
func New(opts ...Option) (*Router, error) {
	r := &Router{
		trees:             make(map[string]*node, len(knownMethods)),
		paramPool:         newParamMapPool(),
		logger:            noopLogger,
		checkCancellation: true,
		maxBodySize:       DefaultMaxBodySize,
		cacheSize:         DefaultRouteCacheSize,
	}

	for _, opt := range opts {
		opt(r)
	}

	cache, err := newRouteCache(r.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("router configuration validation failed: %w", err)
	}
	r.cache = cache

	if len(r.trustedProxyCIDRs) > 0 {
		cfg, err := newTrustedProxyConfig(r.trustedProxyCIDRs)
		if err != nil {
			return nil, fmt.Errorf("router configuration validation failed: %w", err)
		}
		r.trustedProxies = cfg
	}
	r.pool = newContextPool(r)

	return r, nil
}

// MustNew is like New but panics when the configuration is invalid.
func MustNew(opts ...Option) *Router {
	r, err := New(opts...)
	if err != nil {
		panic(err)
	}

	return r
}

// Use registers global middleware. Middleware is combined into handler
// chains at route registration time, so register middleware before routes.
func (r *Router) Use(middleware ...HandlerFunc) {
	r.middlewareMu.Lock()
	r.middleware = append(r.middleware, middleware...)
	r.middlewareMu.Unlock()
}

// UseFilter appends an exception filter. Filters run in registration order;
// the first whose Catch returns true handles the error.
func (r *Router) UseFilter(filters ...ExceptionFilter) {
	r.filters = append(r.filters, filters...)
}

// NoRoute sets a custom handler for unmatched requests.
func (r *Router) NoRoute(handler HandlerFunc) {
	r.noRouteMu.Lock()
	r.noRouteHandler = handler
	r.noRouteMu.Unlock()
}

// MaxBodySize returns the configured request body limit in bytes.
func (r *Router) MaxBodySize() int64 { return r.maxBodySize }

// Logger returns the router's logger. Never nil.
func (r *Router) Logger() *slog.Logger { return r.logger }

// Handle registers a route for the given method and pattern. The pattern
// grammar supports literal segments, ":name" parameters, ":name(regex)"
// constrained parameters, and a trailing "*" wildcard (captured under "*").
//
// Re-registering an existing (method, pattern) pair overwrites the previous
// handlers and logs a warning. Conflicting parameter names on a shared
// prefix are rejected.
func (r *Router) Handle(method, path string, handlers ...HandlerFunc) error {
	if !knownMethods[method] {
		return fmt.Errorf("unsupported HTTP method %q", method)
	}
	if len(handlers) == 0 {
		return fmt.Errorf("route %s %s: no handlers", method, path)
	}
	if path == "" || path[0] != '/' {
		return fmt.Errorf("route %s %q: path must begin with '/'", method, path)
	}

	r.middlewareMu.RLock()
	chain := make([]HandlerFunc, 0, len(r.middleware)+len(handlers))
	chain = append(chain, r.middleware...)
	chain = append(chain, handlers...)
	r.middlewareMu.RUnlock()

	r.mu.Lock()
	tree := r.trees[method]
	if tree == nil {
		tree = &node{}
		r.trees[method] = tree
	}
	replaced, err := tree.addRoute(path, chain)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if replaced {
		r.logger.Warn("route overwritten", "method", method, "path", path)
	}

	// Any registration can change what an arbitrary cached path resolves
	// to, so drop everything.
	r.cache.purge()

	return nil
}

func (r *Router) mustHandle(method, path string, handlers ...HandlerFunc) {
	if err := r.Handle(method, path, handlers...); err != nil {
		panic(err)
	}
}

// GET registers a GET route. Panics on a malformed pattern or a parameter
// conflict; registration errors are programmer errors.
func (r *Router) GET(path string, handlers ...HandlerFunc) {
	r.mustHandle(http.MethodGet, path, handlers...)
}

// POST registers a POST route.
func (r *Router) POST(path string, handlers ...HandlerFunc) {
	r.mustHandle(http.MethodPost, path, handlers...)
}

// PUT registers a PUT route.
func (r *Router) PUT(path string, handlers ...HandlerFunc) {
	r.mustHandle(http.MethodPut, path, handlers...)
}

// PATCH registers a PATCH route.
func (r *Router) PATCH(path string, handlers ...HandlerFunc) {
	r.mustHandle(http.MethodPatch, path, handlers...)
}

// DELETE registers a DELETE route.
func (r *Router) DELETE(path string, handlers ...HandlerFunc) {
	r.mustHandle(http.MethodDelete, path, handlers...)
}

// HEAD registers a HEAD route.
func (r *Router) HEAD(path string, handlers ...HandlerFunc) {
	r.mustHandle(http.MethodHead, path, handlers...)
}

// OPTIONS registers an OPTIONS route.
func (r *Router) OPTIONS(path string, handlers ...HandlerFunc) {
	r.mustHandle(http.MethodOptions, path, handlers...)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !knownMethods[req.Method] {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotImplemented)
		w.Write([]byte(`{"error":"Not Implemented"}`)) //nolint:errcheck

		return
	}

	c := r.pool.acquire(w, req)
	defer r.pool.release(c)

	// Safety net: a panicking handler must not take the server down.
	// The recovery middleware offers richer handling; this is the floor.
	defer func() {
		if rec := recover(); rec != nil {
			r.recoverPanic(c, rec)
		}
	}()

	if !r.resolve(c, req.Method, req.URL.Path) {
		r.dispatchNoMatch(c, req.Method, req.URL.Path)

		return
	}

	c.Next()
	r.finalize(c)
}

// resolve assigns the handler chain and route pattern for the request,
// consulting the cache first. Both hits and misses are cached, including
// matches that needed the trailing slash toggled.
func (r *Router) resolve(c *Context, method, path string) bool {
	if entry, ok := r.cache.get(method, path); ok {
		return entry.apply(c)
	}

	r.mu.RLock()
	tree := r.trees[method]
	var handlers []HandlerFunc
	var pattern string
	if tree != nil {
		handlers, pattern = r.matchTree(tree, path, c)
		if handlers == nil {
			if alt, ok := toggleTrailingSlash(path); ok {
				handlers, pattern = r.matchTree(tree, alt, c)
			}
		}
	}
	r.mu.RUnlock()

	if handlers == nil {
		r.cache.put(method, path, &routeEntry{})

		return false
	}

	c.handlers = handlers
	c.routePattern = pattern
	r.cache.put(method, path, &routeEntry{
		handlers: handlers,
		pattern:  pattern,
		paramKV:  snapshotParams(c),
	})

	return true
}

// matchTree runs a tree lookup, rolling back any partially captured
// parameters when the lookup fails.
func (r *Router) matchTree(tree *node, path string, c *Context) ([]HandlerFunc, string) {
	saved := c.paramCount
	handlers, pattern := tree.getRoute(path, c)
	if handlers == nil {
		c.paramCount = saved
		if c.params != nil {
			clear(c.params)
		}

		return nil, ""
	}

	return handlers, pattern
}

// toggleTrailingSlash returns the path with the trailing slash added or
// removed. The root path has no alternate form.
func toggleTrailingSlash(path string) (string, bool) {
	if path == "/" || path == "" {
		return "", false
	}
	if path[len(path)-1] == '/' {
		return path[:len(path)-1], true
	}

	return path + "/", true
}

// dispatchNoMatch handles requests no route matched. Global middleware
// still runs (CORS preflight must be able to answer an unregistered
// OPTIONS), with the 405/404 writer as the terminal handler.
func (r *Router) dispatchNoMatch(c *Context, method, path string) {
	r.middlewareMu.RLock()
	chain := make([]HandlerFunc, 0, len(r.middleware)+1)
	chain = append(chain, r.middleware...)
	r.middlewareMu.RUnlock()
	chain = append(chain, func(c *Context) {
		r.writeNoMatch(c, method, path)
	})

	c.handlers = chain
	c.Next()
	r.finalize(c)
}

// writeNoMatch produces the terminal response for an unmatched request:
// 405 with an Allow set when the path exists under other methods, 404
// otherwise.
func (r *Router) writeNoMatch(c *Context, method, path string) {
	if allowed := r.allowedMethods(method, path); len(allowed) > 0 {
		c.routePattern = "_method_not_allowed"
		c.MethodNotAllowed(allowed)

		return
	}

	c.routePattern = "_not_found"
	r.noRouteMu.RLock()
	custom := r.noRouteHandler
	r.noRouteMu.RUnlock()
	if custom != nil {
		custom(c)
		if !c.Written() {
			c.NotFound()
		}

		return
	}
	c.NotFound()
}

// allowedMethods probes the other method trees for the path, building the
// Allow set for 405 responses.
func (r *Router) allowedMethods(method, path string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allowed []string
	for m, tree := range r.trees {
		if m == method || tree == nil {
			continue
		}
		if tree.hasRoute(path) {
			allowed = append(allowed, m)
			continue
		}
		if alt, ok := toggleTrailingSlash(path); ok && tree.hasRoute(alt) {
			allowed = append(allowed, m)
		}
	}
	sort.Strings(allowed)

	return allowed
}

// finalize turns errors collected during the chain into a response.
func (r *Router) finalize(c *Context) {
	if len(c.errs) == 0 {
		return
	}
	r.handleError(c, c.errs[0])
}

// recoverPanic converts a handler panic into an error response. The stack
// goes to the logger, never to the client.
func (r *Router) recoverPanic(c *Context, rec any) {
	err, ok := rec.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", rec)
	}
	r.logger.Error("panic recovered",
		"error", err,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"stack", string(debug.Stack()),
	)
	if !c.Written() {
		r.handleError(c, E(KindInternal, "Internal Server Error").Wrap(err))
	}
}
