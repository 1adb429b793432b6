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
	"regexp"
	"strings"
)

// WildcardParam is the parameter key under which a wildcard segment stores
// the captured remainder of the path.
const WildcardParam = "*"

// edge represents a per-segment child in the radix tree. A linear scan over
// a small slice beats map hashing in the hot path.
type edge struct {
	label string
	node  *node
}

// node is a node in the per-method route tree.
//
// Matching strategies, in precedence order at each node:
//  1. Exact static match (edges, linear scan; full-path staticPaths at root)
//  2. Regex-constrained parameter (e.g., ":id(\\d+)")
//  3. Plain parameter (e.g., ":id")
//  4. Wildcard (e.g., "/static/*", captures the rest under "*")
//
// Thread safety: the tree itself is not synchronized. The Router guards all
// access with its tree lock, allowing registration after serving starts.
type node struct {
	handlers    []HandlerFunc    // Handler chain for this route (nil = no route ends here)
	edges       []edge           // Static children
	staticPaths map[string]*node // Full-path static routes (root node only)
	regexps     []*regexParam    // Regex-constrained parameter children
	param       *param           // Plain parameter child (at most one per node)
	wildcard    *node            // Wildcard child
	pattern     string           // Registered route pattern for terminal nodes
}

// param is a plain parameter child. A node holds at most one; registering a
// second parameter name on the same prefix is a conflict.
type param struct {
	key  string
	node *node
}

// regexParam is a parameter child whose value must match a compiled pattern.
// Children are tried in registration order.
type regexParam struct {
	key  string
	expr string
	re   *regexp.Regexp
	node *node
}

func (n *node) findChild(segment string) *node {
	for i := range n.edges {
		if n.edges[i].label == segment {
			return n.edges[i].node
		}
	}

	return nil
}

func (n *node) findOrCreateChild(segment string) *node {
	if child := n.findChild(segment); child != nil {
		return child
	}
	child := &node{}
	n.edges = append(n.edges, edge{label: segment, node: child})

	return child
}

// paramSegment matches ":name" and ":name(pattern)" route segments.
var paramSegment = regexp.MustCompile(`^:([A-Za-z_][A-Za-z0-9_]*)(?:\((.+)\))?$`)

// addRoute inserts a route pattern into the tree. It reports whether an
// existing registration for the same pattern was replaced, so the router
// can warn about silent overwrites.
//
// Registration errors:
//   - conflicting parameter names on a shared prefix ("/u/:id" vs "/u/:name")
//   - conflicting names for the same regex on a shared prefix
//   - invalid regex in a ":name(pattern)" segment
//   - segments after a wildcard
func (n *node) addRoute(path string, handlers []HandlerFunc) (replaced bool, err error) {
	// NOTE: handlers are stored without copying. Router.addRoute always
	// builds a fresh combined slice, so aliasing is not a concern here.

	if path == "/" || path == "" {
		replaced = n.handlers != nil
		n.handlers = handlers
		n.pattern = path

		return replaced, nil
	}

	// Full-static fast path: store the whole path at the root.
	if !strings.ContainsAny(path, ":*") {
		if n.staticPaths == nil {
			n.staticPaths = make(map[string]*node, 8)
		}
		child := n.staticPaths[path]
		if child == nil {
			child = &node{}
			n.staticPaths[path] = child
		}
		replaced = child.handlers != nil
		child.handlers = handlers
		child.pattern = path

		return replaced, nil
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	current := n

	for i, segment := range segments {
		if segment == "" {
			continue
		}

		switch {
		case segment == "*":
			if i != len(segments)-1 {
				return false, fmt.Errorf("route %q: wildcard must be the final segment", path)
			}
			if current.wildcard == nil {
				current.wildcard = &node{}
			}
			replaced = current.wildcard.handlers != nil
			current.wildcard.handlers = handlers
			current.wildcard.pattern = path

			return replaced, nil

		case strings.HasPrefix(segment, ":"):
			m := paramSegment.FindStringSubmatch(segment)
			if m == nil {
				return false, fmt.Errorf("route %q: malformed parameter segment %q", path, segment)
			}
			name, expr := m[1], m[2]

			if expr != "" {
				child, findErr := current.findOrCreateRegex(path, name, expr)
				if findErr != nil {
					return false, findErr
				}
				current = child
			} else {
				if current.param == nil {
					current.param = &param{key: name, node: &node{}}
				} else if current.param.key != name {
					return false, fmt.Errorf(
						"route %q: parameter :%s conflicts with existing :%s on the same prefix",
						path, name, current.param.key)
				}
				current = current.param.node
			}

		default:
			current = current.findOrCreateChild(segment)
		}

		if i == len(segments)-1 {
			replaced = current.handlers != nil
			current.handlers = handlers
			current.pattern = path
		}
	}

	return replaced, nil
}

func (n *node) findOrCreateRegex(path, name, expr string) (*node, error) {
	for _, rp := range n.regexps {
		if rp.expr == expr {
			if rp.key != name {
				return nil, fmt.Errorf(
					"route %q: parameter :%s(%s) conflicts with existing :%s(%s) on the same prefix",
					path, name, expr, rp.key, rp.expr)
			}

			return rp.node, nil
		}
	}

	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("route %q: invalid regex for :%s: %w", path, name, err)
	}
	rp := &regexParam{key: name, expr: expr, re: re, node: &node{}}
	n.regexps = append(n.regexps, rp)

	return rp.node, nil
}

// getRoute matches a request path, writing captured parameters into the
// context. Returns the handler chain and the registered pattern, or
// (nil, "") when nothing matches.
//
// Parsing is manual (no strings.Split) to keep the hot path allocation-free.
func (n *node) getRoute(path string, ctx *Context) ([]HandlerFunc, string) {
	if path == "/" || path == "" {
		return n.handlers, n.pattern
	}

	if n.staticPaths != nil {
		if child := n.staticPaths[path]; child != nil && child.handlers != nil {
			return child.handlers, child.pattern
		}
	}

	current := n
	start := 0
	if path[0] == '/' {
		start = 1
	}
	pathLen := len(path)

	for start < pathLen {
		end := start
		for end < pathLen && path[end] != '/' {
			end++
		}
		segment := path[start:end]
		isLast := end >= pathLen

		if next := current.findChild(segment); next != nil {
			current = next
		} else if next, key := current.matchRegex(segment); next != nil {
			ctx.setParam(key, segment)
			current = next
		} else if current.param != nil {
			ctx.setParam(current.param.key, segment)
			current = current.param.node
		} else if current.wildcard != nil {
			ctx.setParam(WildcardParam, path[start:])

			return current.wildcard.handlers, current.wildcard.pattern
		} else {
			return nil, ""
		}

		if isLast {
			return current.handlers, current.pattern
		}

		start = end + 1
	}

	// Path ended on a slash ("/files/"); a wildcard here captures "".
	if current.wildcard != nil {
		ctx.setParam(WildcardParam, "")

		return current.wildcard.handlers, current.wildcard.pattern
	}

	return current.handlers, current.pattern
}

func (n *node) matchRegex(segment string) (*node, string) {
	for _, rp := range n.regexps {
		if rp.re.MatchString(segment) {
			return rp.node, rp.key
		}
	}

	return nil, ""
}

// hasRoute reports whether any route matches the path, without touching a
// context. Used to compute the Allow set for 405 responses.
func (n *node) hasRoute(path string) bool {
	probe := Context{}
	handlers, _ := n.getRoute(path, &probe)

	return handlers != nil
}
