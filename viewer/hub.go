// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import (
	"sync"

	"github.com/NiroAgent/na-business-service-sub004/terminal"
)

// Hub tracks live connections by id.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

// Lookup implements terminal.ConnectionDirectory.
func (h *Hub) Lookup(id string) (terminal.Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[id]
	if !ok {
		return nil, false
	}
	return conn, true
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll closes every connection. Their handlers unregister them as
// their read loops fail.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (h *Hub) add(conn *Conn) {
	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}
