// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

// Client message types.
const (
	MessageSubscribe   = "terminal:subscribe"
	MessageUnsubscribe = "terminal:unsubscribe"
	MessageInput       = "terminal:input"
	MessageClear       = "terminal:clear"
)

// ClientMessage is one JSON frame sent by a viewer.
type ClientMessage struct {
	Type    string `json:"type"`
	Session string `json:"session"`

	// Data is the text to write for terminal:input.
	Data string `json:"data,omitempty"`
}
