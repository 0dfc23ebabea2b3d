// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package terminal multiplexes the output of long-lived processes to any
// number of live viewers.
//
// A [Registry] owns one session per stable key (typically an agent or
// process name). Each session keeps a bounded [Scrollback] of text
// chunks and a set of subscribed connection ids. Output reaches a
// session either from a bound [Source] (stdout, stderr and an exit
// notification, see [Registry.Attach]), from echoed input
// ([Registry.SendInput]), or directly through [Registry.Broadcast].
// Every chunk is appended to the scrollback and then pushed to each
// current subscriber as a "terminal:data" [Event]. A subscriber that
// joins late receives the whole scrollback once, as a single
// "terminal:history" event, before any further live chunk.
//
// Connections are addressed by id only. The registry resolves ids
// through a [ConnectionDirectory] at push time and skips ids that no
// longer resolve, so a transport can tear a connection down at any
// moment. [Connection.Send] must never block: the registry calls it
// while holding the session lock, which is what keeps every
// subscriber's view in buffer order.
//
// Sessions are created on first reference and evicted once their
// subscriber set has stayed empty for the grace window. A session with
// a running source is never evicted; its window starts when the last
// source exits. The eviction
// timer re-checks the subscriber set when it fires, so a subscribe that
// lands inside the window keeps the session and its scrollback.
//
// Scrollback is trimmed with hysteresis: once the buffer exceeds the
// hard cap, oldest chunks are dropped until it fits under the soft cap.
package terminal
