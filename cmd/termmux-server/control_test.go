// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NiroAgent/na-business-service-sub004/lib/clock"
	"github.com/NiroAgent/na-business-service-sub004/lib/service"
	"github.com/NiroAgent/na-business-service-sub004/lib/testutil"
	"github.com/NiroAgent/na-business-service-sub004/terminal"
	"github.com/NiroAgent/na-business-service-sub004/viewer"
)

type controlFixture struct {
	registry *terminal.Registry
	clock    *clock.FakeClock
	client   *service.Client
}

func newControlFixture(t *testing.T) *controlFixture {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	hub := viewer.NewHub()
	registry := terminal.NewRegistry(terminal.Options{Connections: hub, Clock: fake})
	t.Cleanup(registry.Close)

	socketPath := filepath.Join(testutil.SocketDir(t), "control.sock")
	server := service.NewServer(socketPath, slog.New(slog.DiscardHandler))
	(&controlHandlers{registry: registry, hub: hub, clock: fake, startedAt: fake.Now()}).register(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "control server did not stop")
	})
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "control server not ready")

	return &controlFixture{registry: registry, clock: fake, client: service.NewClient(socketPath)}
}

func (f *controlFixture) call(t *testing.T, action string, fields map[string]any, result any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.client.Call(ctx, action, fields, result)
}

func TestControlStatus(t *testing.T) {
	t.Parallel()
	f := newControlFixture(t)
	f.registry.Broadcast("agent", "x")
	f.clock.Advance(90 * time.Second)

	var status statusResponse
	if err := f.call(t, "status", nil, &status); err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.UptimeSeconds != 90 || status.Connections != 0 {
		t.Errorf("status = %+v", status)
	}
	// The unwatched session was evicted by the advance.
	if status.Sessions != 0 {
		t.Errorf("Sessions = %d, want 0 after the grace window", status.Sessions)
	}
}

func TestControlSessionActions(t *testing.T) {
	t.Parallel()
	f := newControlFixture(t)
	f.registry.Broadcast("beta", "beta output")
	f.registry.Broadcast("alpha", "alpha output")

	var sessions []terminal.SessionInfo
	if err := f.call(t, "list-sessions", nil, &sessions); err != nil {
		t.Fatalf("list-sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].Key != "alpha" {
		t.Fatalf("sessions = %+v", sessions)
	}

	if err := f.call(t, "send-input", map[string]any{"session": "alpha", "text": "ls\n"}, nil); err != nil {
		t.Fatalf("send-input: %v", err)
	}

	var history historyResponse
	if err := f.call(t, "history", map[string]any{"session": "alpha"}, &history); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.HasPrefix(history.Data, "alpha output") || !strings.Contains(history.Data, "> ls") {
		t.Errorf("history = %q", history.Data)
	}

	if err := f.call(t, "clear", map[string]any{"session": "alpha"}, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	var info terminal.SessionInfo
	if err := f.call(t, "describe", map[string]any{"session": "alpha"}, &info); err != nil {
		t.Fatalf("describe: %v", err)
	}
	if info.BufferBytes != 0 {
		t.Errorf("BufferBytes = %d after clear", info.BufferBytes)
	}
}

func TestControlErrors(t *testing.T) {
	t.Parallel()
	f := newControlFixture(t)

	tests := []struct {
		action string
		fields map[string]any
		want   string
	}{
		{"describe", map[string]any{"session": "missing"}, `session "missing" not found`},
		{"history", map[string]any{"session": "missing"}, `session "missing" not found`},
		{"clear", map[string]any{"session": "missing"}, `session "missing" not found`},
		{"describe", nil, "missing required field: session"},
		{"send-input", map[string]any{"text": "x"}, "missing required field: session"},
	}
	for _, test := range tests {
		t.Run(test.action, func(t *testing.T) {
			err := f.call(t, test.action, test.fields, nil)
			var serviceErr *service.Error
			if !errors.As(err, &serviceErr) {
				t.Fatalf("error = %v, want *service.Error", err)
			}
			if serviceErr.Message != test.want {
				t.Errorf("Message = %q, want %q", serviceErr.Message, test.want)
			}
		})
	}

	if _, ok := f.registry.Describe("missing"); ok {
		t.Error("a failed control action created a session")
	}
}

func TestControlClearEvictedSession(t *testing.T) {
	t.Parallel()
	f := newControlFixture(t)
	f.registry.Broadcast("gone", "x")
	f.clock.Advance(time.Minute)

	err := f.call(t, "clear", map[string]any{"session": "gone"}, nil)
	var serviceErr *service.Error
	if !errors.As(err, &serviceErr) || serviceErr.Message != `session "gone" not found` {
		t.Fatalf("clear after eviction = %v, want not found", err)
	}
}
