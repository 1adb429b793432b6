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

// Package nextrush is a fast HTTP framework built on a radix-tree router
// with pooled request contexts.
//
// The core provides routing (literal, parameter, regex-constrained and
// wildcard segments), an LRU route cache, a middleware chain driven by
// Context.Next, a typed error taxonomy with ordered exception filters,
// conditional-request helpers, and graceful server lifecycle management.
//
// Basic usage:
//
//	r := nextrush.MustNew()
//	r.Use(requestid.New(), accesslog.New(accesslog.WithLogger(logger)))
//	r.GET("/users/:id", func(c *nextrush.Context) {
//	    c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
//	})
//	r.Serve(":8080")
//
// Subpackages supply body parsing (bodyparser), WebSocket rooms
// (websocket), a service container (container), and the middleware suite
// (middleware/...).
package nextrush
