// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package viewer carries terminal sessions to browsers and CLI clients
// over websockets.
//
// Each accepted websocket becomes a [Conn] registered in a [Hub] under a
// random id. The Hub is the registry's [terminal.ConnectionDirectory]:
// the registry pushes events by id and the Conn queues them without
// blocking. A per-connection write pump drains the queue to the socket.
//
// The outbound queue is bounded. When a slow client lets it fill, the
// oldest queued event is dropped to make room for the newest and the
// drop is counted; the client sees a gap but never stalls the registry
// or other viewers. Resubscribing replays the session's scrollback.
//
// Clients drive membership with JSON [ClientMessage] frames
// (terminal:subscribe, terminal:unsubscribe, terminal:input,
// terminal:clear). Server frames are [terminal.Event] objects. When the
// socket closes, the connection is unsubscribed from every session.
package viewer
