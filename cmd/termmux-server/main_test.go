// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NiroAgent/na-business-service-sub004/lib/clock"
	"github.com/NiroAgent/na-business-service-sub004/lib/config"
	"github.com/NiroAgent/na-business-service-sub004/lib/service"
	"github.com/NiroAgent/na-business-service-sub004/lib/testutil"
	"github.com/NiroAgent/na-business-service-sub004/terminal"
	"github.com/NiroAgent/na-business-service-sub004/viewer"
)

func TestServerEndToEnd(t *testing.T) {
	t.Parallel()
	shell, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	cfg := config.Default()
	cfg.Server.HTTPAddress = "127.0.0.1:0"
	cfg.Server.SocketPath = filepath.Join(testutil.SocketDir(t), "control.sock")
	cfg.Sources = []config.SourceConfig{{
		Key:     "worker",
		Command: []string{shell, "-c", "echo ready; read line; echo got $line"},
	}}

	srv, err := newServer(cfg, slog.New(slog.DiscardHandler), clock.Real())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 10*time.Second, "server did not stop"); err != nil {
			t.Errorf("run: %v", err)
		}
	})
	testutil.RequireClosed(t, srv.ready, 10*time.Second, "server not ready")

	url := "ws://" + srv.httpAddr.String() + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(viewer.ClientMessage{Type: viewer.MessageSubscribe, Session: "worker"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := ws.WriteJSON(viewer.ClientMessage{Type: viewer.MessageInput, Session: "worker", Data: "ping\n"}); err != nil {
		t.Fatalf("input: %v", err)
	}

	// History and live chunks together must show the whole run.
	var transcript bytes.Buffer
	ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	for !strings.Contains(transcript.String(), "code 0") {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("reading events (transcript so far %q): %v", transcript.String(), err)
		}
		var event terminal.Event
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("decoding %s: %v", data, err)
		}
		transcript.WriteString(event.Data)
	}
	for _, want := range []string{"pid", "ready", "got ping"} {
		if !strings.Contains(transcript.String(), want) {
			t.Errorf("transcript %q missing %q", transcript.String(), want)
		}
	}

	var info terminal.SessionInfo
	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	err = service.NewClient(cfg.Server.SocketPath).Call(callCtx, "describe", map[string]any{"session": "worker"}, &info)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if info.Subscribers != 1 || !info.Exited || info.ExitCode != 0 {
		t.Errorf("describe = %+v", info)
	}
}
