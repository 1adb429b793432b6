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

// Request information helpers on Context: query access, scheme/host, and
// trusted-proxy-aware client IP resolution.

import (
	"net"
	"net/http"
	"strings"
)

// Query returns the first value of a query parameter, or "".
//
// Example:
//
//	// Request: /search?q=golang&page=2
//	q := c.Query("q") // "golang"
func (c *Context) Query(key string) string {
	return c.Request.URL.Query().Get(key)
}

// QueryDefault returns the query parameter value, or def when absent.
func (c *Context) QueryDefault(key, def string) string {
	if v := c.Request.URL.Query().Get(key); v != "" {
		return v
	}

	return def
}

// Queries returns all query parameters, taking the last value when a key
// repeats.
func (c *Context) Queries() map[string]string {
	values := c.Request.URL.Query()
	result := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			result[key] = vals[len(vals)-1]
		}
	}

	return result
}

// Hostname returns the hostname from the Host header, without the port.
func (c *Context) Hostname() string {
	host := c.Request.Host
	if host == "" {
		host = c.Request.URL.Host
	}
	if colonIdx := strings.LastIndex(host, ":"); colonIdx != -1 {
		// Guard against bare IPv6 literals
		if !strings.Contains(host, "]") || colonIdx > strings.Index(host, "]") {
			return host[:colonIdx]
		}
	}

	return host
}

// Scheme returns "http" or "https", consulting X-Forwarded-Proto only when
// the immediate peer is a trusted proxy.
func (c *Context) Scheme() string {
	if c.Request.TLS != nil {
		return "https"
	}
	if c.peerTrusted() {
		if proto := c.Request.Header.Get("X-Forwarded-Proto"); proto != "" {
			return proto
		}
	}

	return "http"
}

// ClientIP returns the real client IP. Forwarding headers are honored only
// when the immediate peer is within a trusted proxy range; otherwise the
// socket address wins, preventing header spoofing.
//
// Header precedence: X-Forwarded-For (first untrusted hop), X-Real-IP.
func (c *Context) ClientIP() string {
	remote := remoteIP(c.Request)
	if !c.peerTrusted() {
		return remote
	}

	if xff := c.Request.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		// Walk right to left, skipping trusted proxies; the first
		// untrusted address is the client.
		cfg := c.proxyConfig()
		for i := len(parts) - 1; i >= 0; i-- {
			ip := strings.TrimSpace(parts[i])
			if ip == "" {
				continue
			}
			if cfg == nil || !cfg.trusted(ip) {
				return ip
			}
		}
		if first := strings.TrimSpace(parts[0]); first != "" {
			return first
		}
	}

	if realIP := c.Request.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}

	return remote
}

func (c *Context) proxyConfig() *trustedProxyConfig {
	if c.router == nil {
		return nil
	}

	return c.router.trustedProxies
}

func (c *Context) peerTrusted() bool {
	cfg := c.proxyConfig()
	if cfg == nil {
		return false
	}

	return cfg.trusted(remoteIP(c.Request))
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

// trustedProxyConfig holds parsed trusted proxy CIDR ranges.
type trustedProxyConfig struct {
	nets []*net.IPNet
}

func newTrustedProxyConfig(cidrs []string) (*trustedProxyConfig, error) {
	cfg := &trustedProxyConfig{nets: make([]*net.IPNet, 0, len(cidrs))}
	for _, cidr := range cidrs {
		// Bare addresses get a full-length mask.
		if !strings.Contains(cidr, "/") {
			if strings.Contains(cidr, ":") {
				cidr += "/128"
			} else {
				cidr += "/32"
			}
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, err
		}
		cfg.nets = append(cfg.nets, ipNet)
	}

	return cfg, nil
}

func (cfg *trustedProxyConfig) trusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range cfg.nets {
		if n.Contains(ip) {
			return true
		}
	}

	return false
}
