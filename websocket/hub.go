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

// Package websocket layers room-based messaging on top of
// github.com/gorilla/websocket. The library handles the RFC 6455 wire
// protocol (handshake, masking, control frames, fragmentation); this
// package adds managed connections with bounded send queues, a room
// registry, event envelopes, and liveness pings.
//
//	hub := websocket.NewHub()
//	r.GET("/ws", websocket.Handler(hub,
//	    websocket.OnConnect(func(c *websocket.Conn) { c.Join("lobby") }),
//	    websocket.OnMessage(func(c *websocket.Conn, data []byte) {
//	        hub.EmitToRoom("lobby", "chat", string(data), c.ID())
//	    }),
//	))
//	r.OnShutdown(hub.Shutdown)
package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub tracks connections and their room membership. Rooms spring into
// existence on first join and are destroyed when the last member leaves;
// a periodic sweeper clears any that linger empty.
//
// The hub mutex keeps room membership and each connection's room set
// consistent: every mutation updates both under the same lock.
type Hub struct {
	cfg *config

	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[string]map[*Conn]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub and starts its room sweeper.
func NewHub(opts ...Option) *Hub {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	h := &Hub{
		cfg:   cfg,
		conns: make(map[string]*Conn),
		rooms: make(map[string]map[*Conn]struct{}),
		done:  make(chan struct{}),
	}
	go h.sweep()

	return h
}

// Conn returns a connection by id.
func (h *Hub) Conn(id string) (*Conn, bool) {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()

	return c, ok
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

// RoomSize returns the number of members in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[room])
}

// Join adds a connection to a room, creating the room on first join.
// Fails when the room cap is reached.
func (h *Hub) Join(c *Conn, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		if h.cfg.maxRooms > 0 && len(h.rooms) >= h.cfg.maxRooms {
			return fmt.Errorf("room limit reached (%d)", h.cfg.maxRooms)
		}
		members = make(map[*Conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}

	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()

	return nil
}

// Leave removes a connection from a room, destroying the room when it
// empties.
func (h *Hub) Leave(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Conn, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// LeaveAll removes a connection from every room it joined.
func (h *Hub) LeaveAll(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.mu.RLock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.RUnlock()

	for _, room := range rooms {
		h.leaveLocked(c, room)
	}
}

// BroadcastToRoom sends raw data to every member of a room, skipping ids
// listed in except.
func (h *Hub) BroadcastToRoom(room string, data []byte, except ...string) {
	for _, c := range h.roomMembers(room, except) {
		c.Send(data)
	}
}

// EmitToRoom sends an event envelope to every member of a room, skipping
// ids listed in except.
func (h *Hub) EmitToRoom(room, event string, data any, except ...string) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		h.cfg.logger.Error("marshal room event", "room", room, "event", event, "error", err)

		return
	}
	h.BroadcastToRoom(room, payload, except...)
}

// Broadcast sends raw data to every connection on the hub.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Send(data)
	}
}

// roomMembers snapshots a room's members outside the send path so a slow
// receiver cannot hold the hub lock.
func (h *Hub) roomMembers(room string, except []string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[room]
	out := make([]*Conn, 0, len(members))
	for c := range members {
		if excluded(c.id, except) {
			continue
		}
		out = append(out, c)
	}

	return out
}

func excluded(id string, except []string) bool {
	for _, e := range except {
		if e == id {
			return true
		}
	}

	return false
}

// attach registers a new connection.
func (h *Hub) attach(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

// detach removes a connection and its room memberships. Called from
// Conn.Close.
func (h *Hub) detach(c *Conn) {
	h.LeaveAll(c)
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()

	if c.cfg.onDisconnect != nil {
		c.cfg.onDisconnect(c)
	}
}

// sweep periodically clears empty rooms. Normal leave handling already
// destroys them; the sweeper is a backstop against leaks.
func (h *Hub) sweep() {
	ticker := time.NewTicker(h.cfg.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.mu.Lock()
			for room, members := range h.rooms {
				if len(members) == 0 {
					delete(h.rooms, room)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			return
		}
	}
}

// Shutdown closes every connection with 1001 (going away) and stops the
// sweeper. Safe to call more than once; wired as a router shutdown hook.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.RLock()
		conns := make([]*Conn, 0, len(h.conns))
		for _, c := range h.conns {
			conns = append(conns, c)
		}
		h.mu.RUnlock()

		for _, c := range conns {
			c.Close(websocket.CloseGoingAway, "server shutting down")
		}
	})
}
