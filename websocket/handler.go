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

package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextrush/nextrush"
)

type config struct {
	readBufferSize  int
	writeBufferSize int
	maxMessageSize  int64
	sendQueueSize   int
	dropOnFullQueue bool
	pingInterval    time.Duration
	idleTimeout     time.Duration
	writeTimeout    time.Duration
	cleanupInterval time.Duration
	maxRooms        int
	allowedOrigins  []string
	subprotocols    []string
	logger          *slog.Logger

	onConnect    func(*Conn)
	onMessage    func(*Conn, []byte)
	onDisconnect func(*Conn)
}

func defaultConfig() *config {
	return &config{
		readBufferSize:  4096,
		writeBufferSize: 4096,
		maxMessageSize:  1 << 20,
		sendQueueSize:   256,
		pingInterval:    30 * time.Second,
		idleTimeout:     75 * time.Second, // Longer than two ping intervals
		writeTimeout:    10 * time.Second,
		cleanupInterval: 60 * time.Second,
		maxRooms:        0, // Unlimited
		logger:          nextrush.NoopLogger(),
	}
}

// Option configures a Hub or Handler.
type Option func(*config)

// WithMaxMessageSize caps inbound message size; larger senders are closed
// with 1009.
func WithMaxMessageSize(n int64) Option {
	return func(cfg *config) { cfg.maxMessageSize = n }
}

// WithSendQueueSize sets the per-connection outbound queue length.
func WithSendQueueSize(n int) Option {
	return func(cfg *config) { cfg.sendQueueSize = n }
}

// WithDropOnFullQueue switches the backpressure policy from blocking to
// dropping: Send returns false instead of waiting for queue space.
func WithDropOnFullQueue() Option {
	return func(cfg *config) { cfg.dropOnFullQueue = true }
}

// WithPingInterval sets the liveness ping cadence.
func WithPingInterval(d time.Duration) Option {
	return func(cfg *config) { cfg.pingInterval = d }
}

// WithIdleTimeout sets how long a connection may stay silent (no pong, no
// message) before the read loop gives up.
func WithIdleTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.idleTimeout = d }
}

// WithMaxRooms caps the number of live rooms; Join fails beyond the cap.
func WithMaxRooms(n int) Option {
	return func(cfg *config) { cfg.maxRooms = n }
}

// WithCleanupInterval sets the empty-room sweeper cadence.
func WithCleanupInterval(d time.Duration) Option {
	return func(cfg *config) { cfg.cleanupInterval = d }
}

// WithAllowedOrigins restricts upgrades to the listed Origin values.
// Without this option same-origin policy applies (gorilla's default);
// "*" allows everything.
func WithAllowedOrigins(origins ...string) Option {
	return func(cfg *config) { cfg.allowedOrigins = origins }
}

// WithSubprotocols sets the server's supported subprotocols for
// negotiation.
func WithSubprotocols(protocols ...string) Option {
	return func(cfg *config) { cfg.subprotocols = protocols }
}

// WithHubLogger sets the logger used for send/marshal failures.
func WithHubLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// OnConnect registers a callback invoked after a successful upgrade.
func OnConnect(fn func(*Conn)) Option {
	return func(cfg *config) { cfg.onConnect = fn }
}

// OnMessage registers the inbound message callback.
func OnMessage(fn func(*Conn, []byte)) Option {
	return func(cfg *config) { cfg.onMessage = fn }
}

// OnDisconnect registers a callback invoked after a connection detaches.
func OnDisconnect(fn func(*Conn)) Option {
	return func(cfg *config) { cfg.onDisconnect = fn }
}

// Handler returns a route handler that upgrades the request and hands the
// connection to the hub. Options given here bind to connections made
// through this route: callbacks, origins, message/queue limits, and
// timeouts. Room limits and the sweeper cadence stay hub-wide.
//
// Upgrade failures are answered by the library: 400 for a malformed
// handshake, 403 for a rejected origin.
func Handler(hub *Hub, opts ...Option) nextrush.HandlerFunc {
	// Copy the hub config so per-route options do not leak across routes.
	cfg := *hub.cfg
	for _, opt := range opts {
		opt(&cfg)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  cfg.readBufferSize,
		WriteBufferSize: cfg.writeBufferSize,
		Subprotocols:    cfg.subprotocols,
	}
	if len(cfg.allowedOrigins) > 0 {
		allowed := make(map[string]bool, len(cfg.allowedOrigins))
		allowAll := false
		for _, o := range cfg.allowedOrigins {
			if o == "*" {
				allowAll = true
			}
			allowed[o] = true
		}
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return allowAll || allowed[r.Header.Get("Origin")]
		}
	}

	return func(c *nextrush.Context) {
		ws, err := upgrader.Upgrade(c.Response, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the failure response.
			c.Abort()

			return
		}

		conn := newConn(ws, hub, &cfg)
		hub.attach(conn)
		conn.state.Store(StateOpen)

		if cfg.onConnect != nil {
			cfg.onConnect(conn)
		}

		go conn.writeLoop()
		conn.readLoop()
	}
}
