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
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection states. Transitions are monotonic: a connection never moves
// backwards (Closed never reopens).
const (
	StateConnecting int32 = iota
	StateOpen
	StateClosing
	StateClosed
)

// Event is the envelope for room emits: {"event": name, "data": payload}.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is one WebSocket connection managed by a Hub.
//
// Outbound messages go through a bounded send queue serviced by a single
// writer goroutine (gorilla connections allow one concurrent writer).
// When the queue is full the configured backpressure policy applies:
// block (default) or drop.
type Conn struct {
	id  string
	ws  *websocket.Conn
	hub *Hub
	cfg *config // Route-scoped config: limits, timeouts, callbacks

	send   chan []byte
	closed chan struct{} // Closed by Close; unblocks pending senders
	state  atomic.Int32

	mu    sync.RWMutex
	rooms map[string]struct{} // Guarded by hub.mu, mirrored here for reads
	data  map[string]any

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, hub *Hub, cfg *config) *Conn {
	c := &Conn{
		id:     uuid.NewString(),
		ws:     ws,
		hub:    hub,
		cfg:    cfg,
		send:   make(chan []byte, cfg.sendQueueSize),
		closed: make(chan struct{}),
		rooms:  make(map[string]struct{}),
		data:   make(map[string]any),
	}
	c.state.Store(StateConnecting)

	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// State returns the current connection state.
func (c *Conn) State() int32 { return c.state.Load() }

// Set stores per-connection user data.
func (c *Conn) Set(key string, value any) {
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
}

// Get returns per-connection user data.
func (c *Conn) Get(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.data[key]
	c.mu.RUnlock()

	return v, ok
}

// Rooms returns the rooms this connection has joined.
func (c *Conn) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		out = append(out, room)
	}

	return out
}

// Send enqueues a raw text message. Returns false when the connection is
// not open, or when the queue is full under the drop policy.
func (c *Conn) Send(data []byte) bool {
	if c.state.Load() != StateOpen {
		return false
	}

	if c.cfg.dropOnFullQueue {
		select {
		case c.send <- data:
			return true
		default:
			c.cfg.logger.Warn("send queue full, dropping message", "conn", c.id)

			return false
		}
	}

	select {
	case c.send <- data:
		return true
	case <-c.closed:
		return false
	case <-c.hub.done:
		return false
	}
}

// SendJSON marshals v and enqueues it.
func (c *Conn) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.cfg.logger.Error("marshal outbound message", "conn", c.id, "error", err)

		return false
	}

	return c.Send(data)
}

// Emit sends an event envelope to this connection.
func (c *Conn) Emit(event string, data any) bool {
	return c.SendJSON(Event{Event: event, Data: data})
}

// Join adds the connection to a room via its hub.
func (c *Conn) Join(room string) error { return c.hub.Join(c, room) }

// Leave removes the connection from a room via its hub.
func (c *Conn) Leave(room string) { c.hub.Leave(c, room) }

// Close sends a close frame with the given code and tears the connection
// down. Idempotent.
func (c *Conn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(StateClosing)
		close(c.closed)
		if c.ws != nil {
			deadline := time.Now().Add(c.cfg.writeTimeout)
			msg := websocket.FormatCloseMessage(code, reason)
			c.ws.WriteControl(websocket.CloseMessage, msg, deadline) //nolint:errcheck
			c.ws.Close()                                            //nolint:errcheck
		}
		c.state.Store(StateClosed)
		c.hub.detach(c)
	})
}

// readLoop pumps inbound messages until the connection dies. The read
// limit closes oversized senders with 1009; pongs extend the idle
// deadline.
func (c *Conn) readLoop() {
	cfg := c.cfg
	c.ws.SetReadLimit(cfg.maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(cfg.idleTimeout)) //nolint:errcheck
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.idleTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				c.Close(websocket.CloseMessageTooBig, "message too big")
			} else {
				c.Close(websocket.CloseNormalClosure, "")
			}

			return
		}
		if cfg.onMessage != nil {
			cfg.onMessage(c, data)
		}
	}
}

// writeLoop services the send queue and keeps the connection alive with
// pings. Exactly one writeLoop runs per connection.
func (c *Conn) writeLoop() {
	cfg := c.cfg
	ticker := time.NewTicker(cfg.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(cfg.writeTimeout)) //nolint:errcheck
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")

				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.writeTimeout)) //nolint:errcheck
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")

				return
			}
		case <-c.closed:
			return
		case <-c.hub.done:
			return
		}
	}
}
