// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the control socket spoken between the
// termmux server and its operator CLI.
//
// The protocol is one CBOR request and one CBOR response per Unix socket
// connection. A request is a map with an "action" key plus
// action-specific fields. The response is a [Response] envelope:
// {ok: true, data: ...} on success, {ok: false, error: "..."} on
// failure. CBOR values are self-delimiting, so no framing is needed.
//
// [Server] dispatches requests to [ActionFunc] handlers registered per
// action. [Client] opens one connection per [Client.Call].
//
// Access control is the socket file's mode: the server creates it 0600,
// so only the owning user can connect.
package service
