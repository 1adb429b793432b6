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

// Conditional request helpers (RFC 7232). The static file middleware uses
// these to answer If-None-Match / If-Modified-Since revalidations with 304.

import (
	"net/http"
	"strings"
	"time"
)

// ETag represents an HTTP entity tag with an optional weak flag.
type ETag struct {
	Value string
	Weak  bool
}

// String returns the ETag in wire format: W/"value" for weak, "value" for
// strong, "" when empty.
func (e ETag) String() string {
	if e.Value == "" {
		return ""
	}
	if e.Weak {
		return `W/"` + e.Value + `"`
	}

	return `"` + e.Value + `"`
}

// SetETag sets the ETag response header. Empty tags are ignored.
func (c *Context) SetETag(tag ETag) {
	if tag.Value == "" {
		return
	}
	c.Header("ETag", tag.String())
}

// SetLastModified sets the Last-Modified response header in HTTP format.
func (c *Context) SetLastModified(t time.Time) {
	if t.IsZero() {
		return
	}
	c.Header("Last-Modified", t.UTC().Format(http.TimeFormat))
}

// normalizeETagValue strips the weak prefix and quotes from a header tag.
func normalizeETagValue(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "W/")

	return strings.Trim(tag, `"`)
}

// IfNoneMatch answers an If-None-Match revalidation for safe methods.
// ETag comparison is weak: W/"v" matches "v". Returns true when a 304 was
// written; the ETag header is set either way so the client can revalidate
// again later.
func (c *Context) IfNoneMatch(tag ETag) bool {
	if tag.Value == "" {
		return false
	}
	if m := c.Request.Method; m != http.MethodGet && m != http.MethodHead {
		return false
	}
	inm := c.Request.Header.Get("If-None-Match")
	if inm == "" {
		return false
	}

	for clientTag := range strings.SplitSeq(inm, ",") {
		clientTag = strings.TrimSpace(clientTag)
		if clientTag == "*" || normalizeETagValue(clientTag) == tag.Value {
			c.SetETag(tag)
			c.Status(http.StatusNotModified)

			return true
		}
	}

	return false
}

// IfModifiedSince answers an If-Modified-Since revalidation for safe
// methods. HTTP dates have one-second granularity, so "not after" counts as
// unmodified. Returns true when a 304 was written.
func (c *Context) IfModifiedSince(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	if m := c.Request.Method; m != http.MethodGet && m != http.MethodHead {
		return false
	}
	ims := c.Request.Header.Get("If-Modified-Since")
	if ims == "" {
		return false
	}

	clientTime, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	if !t.Truncate(time.Second).After(clientTime) {
		c.SetLastModified(t)
		c.Status(http.StatusNotModified)

		return true
	}

	return false
}

// Fresh checks both validators: If-None-Match wins over If-Modified-Since
// per RFC 7232. Returns true when a 304 was written.
func (c *Context) Fresh(tag ETag, lastModified time.Time) bool {
	if c.Request.Header.Get("If-None-Match") != "" {
		return c.IfNoneMatch(tag)
	}

	return c.IfModifiedSince(lastModified)
}

// AddVary merges fields into the Vary response header, canonicalizing and
// deduplicating names.
func (c *Context) AddVary(fields ...string) {
	if len(fields) == 0 {
		return
	}

	seen := make(map[string]bool, len(fields)+2)
	var all []string
	if existing := c.Response.Header().Get("Vary"); existing != "" {
		for field := range strings.SplitSeq(existing, ",") {
			canonical := http.CanonicalHeaderKey(strings.TrimSpace(field))
			if canonical != "" && !seen[canonical] {
				seen[canonical] = true
				all = append(all, canonical)
			}
		}
	}
	for _, field := range fields {
		canonical := http.CanonicalHeaderKey(strings.TrimSpace(field))
		if canonical != "" && !seen[canonical] {
			seen[canonical] = true
			all = append(all, canonical)
		}
	}

	if len(all) > 0 {
		c.Response.Header().Set("Vary", strings.Join(all, ", "))
	}
}
