// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import "time"

// Event types delivered to connections.
const (
	// EventHistory carries the whole scrollback, sent once per
	// subscribe when the scrollback is non-empty.
	EventHistory = "terminal:history"

	// EventData carries one incremental chunk.
	EventData = "terminal:data"
)

// Event is what a connection receives. The JSON form is the viewer wire
// format.
type Event struct {
	Type      string    `json:"type"`
	Session   string    `json:"session"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Connection is a live viewer as seen by the registry.
type Connection interface {
	ID() string

	// Send queues event for delivery and returns false if the
	// connection is closed. It must not block.
	Send(event Event) bool
}

// ConnectionDirectory resolves connection ids at push time.
type ConnectionDirectory interface {
	Lookup(id string) (Connection, bool)
}

// SessionInfo is a read-only snapshot of one session.
type SessionInfo struct {
	Key         string `json:"key"`
	Subscribers int    `json:"subscribers"`
	BufferBytes int    `json:"buffer_bytes"`
	Chunks      int    `json:"chunks"`

	// Attached is true while a bound source has not exited.
	Attached bool `json:"attached"`
	PID      int  `json:"pid,omitempty"`

	// Exited and ExitCode describe the most recently bound source.
	Exited   bool `json:"exited,omitempty"`
	ExitCode int  `json:"exit_code,omitempty"`
}
