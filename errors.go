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
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by the core. These are programmer errors and
// configuration errors, not request failures.
var (
	// ErrNextCalledTwice is raised (via panic) when a handler calls Next()
	// more than once within the same middleware frame.
	ErrNextCalledTwice = errors.New("next() called multiple times")

	// ErrHeadersSent is raised (via panic) when a handler mutates the status
	// code or response headers after the headers have been flushed.
	ErrHeadersSent = errors.New("headers already sent")

	// ErrResponseWriterNotHijacker is returned when the underlying
	// http.ResponseWriter does not support connection hijacking.
	ErrResponseWriterNotHijacker = errors.New("response writer does not support hijacking")

	// ErrRouteCacheSizeInvalid is returned when the configured route cache
	// capacity is not positive.
	ErrRouteCacheSizeInvalid = errors.New("route cache size must be positive")

	// ErrServerNotStarted is returned by Shutdown when no server is running.
	ErrServerNotStarted = errors.New("server not started")
)

// Kind classifies request failures. Kinds map to HTTP status codes; handlers
// and middleware raise kinds, the exception filter chain converts them to
// responses.
type Kind int

// Error kinds, ordered roughly by status code.
const (
	KindBadRequest           Kind = iota // 400: malformed input, parse failure
	KindUnauthorized                     // 401: missing/invalid credential
	KindForbidden                        // 403: origin check fail, dotfile deny
	KindNotFound                         // 404: router miss, static file miss
	KindMethodNotAllowed                 // 405: path matched under another method
	KindRequestTimeout                   // 408: server-side timeout
	KindConflict                         // 409: resource conflict
	KindPayloadTooLarge                  // 413: parser limit exceeded
	KindUnsupportedMediaType             // 415: no parser and raw disabled
	KindRangeNotSatisfiable              // 416: unsatisfiable byte range
	KindTooManyRequests                  // 429: rate limiter block
	KindInternal                         // 500: unexpected, uncaught
	KindNotImplemented                   // 501: unknown HTTP method
)

// statusForKind maps error kinds to their default HTTP status codes.
var statusForKind = map[Kind]int{
	KindBadRequest:           http.StatusBadRequest,
	KindUnauthorized:         http.StatusUnauthorized,
	KindForbidden:            http.StatusForbidden,
	KindNotFound:             http.StatusNotFound,
	KindMethodNotAllowed:     http.StatusMethodNotAllowed,
	KindRequestTimeout:       http.StatusRequestTimeout,
	KindConflict:             http.StatusConflict,
	KindPayloadTooLarge:      http.StatusRequestEntityTooLarge,
	KindUnsupportedMediaType: http.StatusUnsupportedMediaType,
	KindRangeNotSatisfiable:  http.StatusRequestedRangeNotSatisfiable,
	KindTooManyRequests:      http.StatusTooManyRequests,
	KindInternal:             http.StatusInternalServerError,
	KindNotImplemented:       http.StatusNotImplemented,
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	if code, ok := statusForKind[k]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// String returns a short machine-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindRequestTimeout:
		return "request_timeout"
	case KindConflict:
		return "conflict"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindUnsupportedMediaType:
		return "unsupported_media_type"
	case KindRangeNotSatisfiable:
		return "range_not_satisfiable"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindInternal:
		return "internal"
	case KindNotImplemented:
		return "not_implemented"
	}
	return "internal"
}

// HTTPError is a typed request failure. Components raise HTTPErrors; the
// exception filter chain converts them to HTTP responses.
//
// The Message is sent to the client. The wrapped Err (if any) is logged but
// never serialized — stack traces, internal paths, and driver errors stay on
// the server.
type HTTPError struct {
	Kind    Kind   // Failure classification, determines the status code
	Message string // Client-visible message
	Code    string // Optional machine-readable code for structured clients
	Details any    // Optional structured data serialized alongside the message
	Err     error  // Wrapped cause, logged only
}

// E constructs an HTTPError with the given kind and client-visible message.
//
// Example:
//
//	return nextrush.E(nextrush.KindPayloadTooLarge, "body exceeds 10MB limit")
func E(kind Kind, message string) *HTTPError {
	return &HTTPError{Kind: kind, Message: message}
}

// Ef constructs an HTTPError with a formatted message.
func Ef(kind Kind, format string, args ...any) *HTTPError {
	return &HTTPError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to the error and returns it for chaining.
func (e *HTTPError) Wrap(err error) *HTTPError {
	e.Err = err
	return e
}

// WithCode attaches a machine-readable code and returns the error.
func (e *HTTPError) WithCode(code string) *HTTPError {
	e.Code = code
	return e
}

// WithDetails attaches structured details and returns the error.
func (e *HTTPError) WithDetails(details any) *HTTPError {
	e.Details = details
	return e
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *HTTPError) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error.
func (e *HTTPError) Status() int { return e.Kind.Status() }

// ExceptionFilter converts errors escaping the handler chain into HTTP
// responses. Filters are ordered; the first filter whose Catch returns true
// handles the error and stops the chain.
//
// Example:
//
//	type notFoundFilter struct{}
//
//	func (notFoundFilter) Catch(err error, c *nextrush.Context) bool {
//	    var he *nextrush.HTTPError
//	    if errors.As(err, &he) && he.Kind == nextrush.KindNotFound {
//	        c.JSON(404, map[string]string{"error": "no such thing"})
//	        return true
//	    }
//	    return false
//	}
type ExceptionFilter interface {
	Catch(err error, c *Context) bool
}

// FilterFunc adapts a function to the ExceptionFilter interface.
type FilterFunc func(err error, c *Context) bool

// Catch implements ExceptionFilter.
func (f FilterFunc) Catch(err error, c *Context) bool { return f(err, c) }

// handleError routes an error through the registered exception filters.
// Unhandled errors become a generic 500 with the cause logged, never sent.
func (r *Router) handleError(c *Context, err error) {
	for _, f := range r.filters {
		if f.Catch(err, c) {
			return
		}
	}
	defaultErrorResponse(c, err)
}

// defaultErrorResponse is the terminal exception filter: HTTPErrors map to
// their kind's status, everything else becomes a 500 with a generic body.
func defaultErrorResponse(c *Context, err error) {
	if c.Written() {
		// Headers already flushed; nothing safe to send. Log and bail.
		c.Logger().Error("error after response started", "error", err)
		return
	}

	var he *HTTPError
	if errors.As(err, &he) {
		body := map[string]any{"error": he.Message}
		if he.Code != "" {
			body["code"] = he.Code
		}
		if he.Details != nil {
			body["details"] = he.Details
		}
		if he.Kind == KindInternal || he.Err != nil {
			c.Logger().Error("request failed", "kind", he.Kind.String(), "error", err)
		}
		c.JSON(he.Status(), body) //nolint:errcheck
		return
	}

	c.Logger().Error("unhandled error", "error", err)
	c.JSON(http.StatusInternalServerError, map[string]any{"error": "Internal Server Error"}) //nolint:errcheck
}
