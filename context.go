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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Context represents the context of the current HTTP request.
// It provides access to the request/response pair, URL parameters, the
// parsed body, per-request state, and middleware chain execution.
//
// ⚠️ THREAD SAFETY: Context is NOT thread-safe.
// A Context is bound to a single HTTP request and must only be accessed by
// the goroutine handling that request.
//
// ⚠️ MEMORY SAFETY: Contexts are pooled and reused.
//
// CRITICAL RULES:
//  1. DO NOT retain references to Context objects beyond the handler lifetime.
//  2. The router returns contexts to the pool after request completion.
//  3. For async work, copy needed data out of the Context first.
//
// Example:
//
//	func handler(c *nextrush.Context) {
//	    userID := c.Param("id")
//	    c.JSON(http.StatusOK, map[string]string{"id": userID})
//	}
//
// Parameter storage uses a hybrid strategy: routes with up to 8 parameters
// use fixed arrays (no allocation); deeper routes overflow into a pooled map.
type Context struct {
	// Core request fields, accessed on every request.
	Request  *http.Request       // The HTTP request object
	Response http.ResponseWriter // The HTTP response writer (wrapped by the router)
	handlers []HandlerFunc       // Handler chain for this request
	router   *Router             // Owning router

	index      int32  // Current handler index in the chain
	frame      int32  // Index of the handler currently executing (-1 at entry)
	nextedMask uint64 // Frames that already called Next (double-call detection)
	paramCount int32  // Number of parameters held in the arrays (0-8)

	// Parameter storage.
	paramKeys   [8]string
	paramValues [8]string
	params      map[string]string // Overflow map (pooled, nil when unused)

	// Per-request mutable state.
	body      any            // Parsed request body, set by the body parser or user
	state     map[string]any // Free-form cross-middleware data
	errs      []error        // Errors collected via Fail()
	aborted   bool           // Set when Abort() is called
	requestID string         // Request id, set by the requestid middleware
	startTime time.Time      // When the router began handling the request

	routePattern string       // Matched route pattern (e.g., "/users/:id")
	logger       *slog.Logger // Request-scoped logger
	span         trace.Span   // Current trace span, if any
}

// HandlerFunc defines the signature for route handlers and middleware.
//
// Example middleware:
//
//	func Timing() nextrush.HandlerFunc {
//	    return func(c *nextrush.Context) {
//	        start := time.Now()
//	        c.Next()
//	        c.Logger().Debug("handled", "took", time.Since(start))
//	    }
//	}
type HandlerFunc func(*Context)

// NewContext creates a standalone context for the given request/response
// pair. Primarily useful for testing; in normal operation contexts come from
// the router's pool.
func NewContext(w http.ResponseWriter, r *http.Request) *Context {
	return &Context{
		Request:  r,
		Response: &responseWriter{ResponseWriter: w},
		index:    -1,
		frame:    -1,
	}
}

// reset clears the context for reuse. Large references are dropped so pooled
// contexts do not pin request bodies or parsed payloads.
func (c *Context) reset() {
	c.Request = nil
	c.Response = nil
	c.handlers = nil
	c.index = -1
	c.frame = -1
	c.nextedMask = 0
	c.paramCount = 0
	c.body = nil
	c.errs = c.errs[:0]
	c.aborted = false
	c.requestID = ""
	c.startTime = time.Time{}
	c.routePattern = ""
	c.logger = nil
	c.span = nil
	if c.state != nil {
		clear(c.state)
	}
	if c.params != nil && c.router != nil {
		c.router.paramPool.Release(c.params)
		c.params = nil
	}
}

// Next executes the next handler in the middleware chain. Middleware calls
// Next to continue; not calling it ends the chain, making the middleware
// responsible for finalizing the response.
//
// Calling Next more than once within the same middleware frame is a
// programmer error and panics with ErrNextCalledTwice.
func (c *Context) Next() {
	if f := c.frame; f >= 0 && f < 64 {
		bit := uint64(1) << uint(f)
		if c.nextedMask&bit != 0 {
			panic(ErrNextCalledTwice)
		}
		c.nextedMask |= bit
	}

	c.index++
	handlersLen := int32(len(c.handlers))
	checkCancel := c.router != nil && c.router.checkCancellation

	for c.index < handlersLen {
		if c.aborted {
			return
		}
		if checkCancel {
			if err := c.Request.Context().Err(); err != nil {
				return
			}
		}
		prev := c.frame
		c.frame = c.index
		c.handlers[c.index](c)
		c.frame = prev
		c.index++
	}
}

// Abort stops the handler chain from executing any further handlers.
// Handlers that already ran are unaffected.
func (c *Context) Abort() { c.aborted = true }

// IsAborted reports whether the handler chain has been aborted.
func (c *Context) IsAborted() bool { return c.aborted }

// Param returns the value of the URL parameter by key, or "" when absent.
// The wildcard capture is available under the key "*".
//
// Example:
//
//	r.GET("/users/:id", func(c *nextrush.Context) {
//	    userID := c.Param("id")
//	    ...
//	})
func (c *Context) Param(key string) string {
	for i := range c.paramCount {
		if c.paramKeys[i] == key {
			return c.paramValues[i]
		}
	}
	return c.params[key]
}

// Params returns all URL parameters as a map. The map is freshly built;
// mutating it does not affect routing state.
func (c *Context) Params() map[string]string {
	out := make(map[string]string, int(c.paramCount)+len(c.params))
	for i := range c.paramCount {
		out[c.paramKeys[i]] = c.paramValues[i]
	}
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// setParam stores a route parameter, using the arrays for the first 8 and
// a pooled overflow map beyond that.
func (c *Context) setParam(key, value string) {
	if idx := c.paramCount; idx < 8 {
		c.paramKeys[idx] = key
		c.paramValues[idx] = value
		c.paramCount = idx + 1
		return
	}
	if c.params == nil {
		if c.router != nil {
			c.params = c.router.paramPool.Acquire()
		} else {
			c.params = make(map[string]string, 2)
		}
	}
	c.params[key] = value
}

// Set stores a value in the per-request state map for later middleware.
func (c *Context) Set(key string, value any) {
	if c.state == nil {
		c.state = make(map[string]any, 4)
	}
	c.state[key] = value
}

// Get returns a value from the per-request state map.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.state[key]
	return v, ok
}

// GetString returns a string value from the state map, or "".
func (c *Context) GetString(key string) string {
	if v, ok := c.state[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Body returns the parsed request body, or nil when no parser has run.
func (c *Context) Body() any { return c.body }

// SetBody assigns the parsed request body. Called by the body parser.
func (c *Context) SetBody(v any) { c.body = v }

// RequestID returns the request id assigned by the requestid middleware,
// or "" when none is set.
func (c *Context) RequestID() string { return c.requestID }

// SetRequestID assigns the request id for this request.
func (c *Context) SetRequestID(id string) { c.requestID = id }

// StartTime returns the time the router began handling this request.
func (c *Context) StartTime() time.Time { return c.startTime }

// RoutePattern returns the matched route pattern (e.g., "/users/:id"), or a
// sentinel like "_not_found" for unmatched requests.
func (c *Context) RoutePattern() string { return c.routePattern }

// Logger returns the request-scoped logger. The logger carries the request
// id when one has been assigned. Never returns nil.
func (c *Context) Logger() *slog.Logger {
	logger := c.logger
	if logger == nil {
		if c.router != nil && c.router.logger != nil {
			logger = c.router.logger
		} else {
			return noopLogger
		}
	}
	if c.requestID != "" {
		return logger.With("request_id", c.requestID)
	}
	return logger
}

// SetLogger replaces the request-scoped logger.
func (c *Context) SetLogger(logger *slog.Logger) { c.logger = logger }

// Span returns the current trace span, or nil when tracing is not active.
func (c *Context) Span() trace.Span { return c.span }

// SetSpan attaches a trace span to the context.
func (c *Context) SetSpan(span trace.Span) { c.span = span }

// Fail records an error for the exception filter chain. The response is
// produced after the handler chain completes: the first matching filter
// wins, HTTPErrors map to their kind's status, anything else becomes a
// generic 500. Fail aborts the remaining chain.
//
// Example:
//
//	if err := store.Load(id); err != nil {
//	    c.Fail(nextrush.E(nextrush.KindNotFound, "no such record").Wrap(err))
//	    return
//	}
func (c *Context) Fail(err error) {
	if err == nil {
		return
	}
	c.errs = append(c.errs, err)
	c.aborted = true
}

// Errors returns the errors collected during request processing.
func (c *Context) Errors() []error { return c.errs }

// Written reports whether response headers have been flushed.
func (c *Context) Written() bool {
	if rw, ok := c.Response.(*responseWriter); ok {
		return rw.Written()
	}
	return false
}

// Status writes the response status code. Calling Status after the headers
// have been sent is a fatal programmer error and panics with ErrHeadersSent.
func (c *Context) Status(code int) {
	if c.Written() {
		panic(ErrHeadersSent)
	}
	c.Response.WriteHeader(code)
}

// Header sets a response header. Setting a header after the headers have
// been sent is a fatal programmer error and panics with ErrHeadersSent.
func (c *Context) Header(key, value string) {
	if c.Written() {
		panic(ErrHeadersSent)
	}
	c.Response.Header().Set(key, value)
}

// JSON sends a JSON response with the specified status code.
// The body is encoded to a buffer first so encoding failures never produce
// a half-written response.
func (c *Context) JSON(code int, obj any) error {
	var buf strings.Builder
	buf.Grow(256)
	if err := json.NewEncoder(&buf).Encode(obj); err != nil {
		return fmt.Errorf("JSON encoding failed for type %T: %w", obj, err)
	}

	c.Response.Header().Set("Content-Type", "application/json; charset=utf-8")
	if !c.Written() {
		c.Response.WriteHeader(code)
	}
	_, err := c.Response.Write([]byte(buf.String()))
	return err
}

// String sends a plain text response with the specified status code.
func (c *Context) String(code int, format string, args ...any) error {
	c.Response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !c.Written() {
		c.Response.WriteHeader(code)
	}
	_, err := fmt.Fprintf(c.Response, format, args...)
	return err
}

// Send writes raw bytes as the response body, flushing headers first if
// they have not been sent.
func (c *Context) Send(data []byte) error {
	_, err := c.Response.Write(data)
	return err
}

// SendStatus sends a status code with an empty body.
func (c *Context) SendStatus(code int) {
	if !c.Written() {
		c.Response.WriteHeader(code)
	}
}

// NoContent sends a 204 No Content response.
func (c *Context) NoContent() { c.SendStatus(http.StatusNoContent) }

// Redirect sends an HTTP redirect to the given location.
func (c *Context) Redirect(code int, location string) {
	http.Redirect(c.Response, c.Request, location, code)
}

// WriteErrorResponse sends a small JSON error body with the given status.
// The body is `{"error": message}`; internal details never appear.
func (c *Context) WriteErrorResponse(code int, message string) {
	c.JSON(code, map[string]any{"error": message}) //nolint:errcheck
}

// NotFound sends the standard 404 response.
func (c *Context) NotFound() {
	c.WriteErrorResponse(http.StatusNotFound, "Not Found")
}

// MethodNotAllowed sends a 405 response with the Allow header listing the
// methods registered for the path.
func (c *Context) MethodNotAllowed(allowed []string) {
	if len(allowed) > 0 {
		c.Response.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	c.WriteErrorResponse(http.StatusMethodNotAllowed, "Method Not Allowed")
}
