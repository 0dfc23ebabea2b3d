// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NiroAgent/na-business-service-sub004/lib/clock"
	"github.com/NiroAgent/na-business-service-sub004/terminal"
)

const readTimeout = 5 * time.Second

type fixture struct {
	registry *terminal.Registry
	hub      *Hub
	server   *httptest.Server
}

func newFixture(t *testing.T, origins []string) *fixture {
	t.Helper()
	hub := NewHub()
	registry := terminal.NewRegistry(terminal.Options{
		Connections: hub,
		Clock:       clock.Fake(time.Unix(0, 0)),
	})
	handler := NewHandler(HandlerOptions{
		Registry:       registry,
		Hub:            hub,
		AllowedOrigins: origins,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		hub.CloseAll()
		server.Close()
		registry.Close()
	})
	return &fixture{registry: registry, hub: hub, server: server}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, message ClientMessage) {
	t.Helper()
	if err := ws.WriteJSON(message); err != nil {
		t.Fatalf("write %s: %v", message.Type, err)
	}
}

func receive(t *testing.T, ws *websocket.Conn) terminal.Event {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(readTimeout))
	var event terminal.Event
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}

// waitFor polls condition until it holds or the test times out.
func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func subscribers(f *fixture, key string) int {
	info, _ := f.registry.Describe(key)
	return info.Subscribers
}

func TestViewerReceivesHistoryThenLiveData(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.registry.Broadcast("agent", "before")

	ws := f.dial(t)
	send(t, ws, ClientMessage{Type: MessageSubscribe, Session: "agent"})

	history := receive(t, ws)
	if history.Type != terminal.EventHistory || history.Data != "before" || history.Session != "agent" {
		t.Fatalf("first event = %+v, want history %q", history, "before")
	}

	f.registry.Broadcast("agent", "after")
	live := receive(t, ws)
	if live.Type != terminal.EventData || live.Data != "after" {
		t.Fatalf("second event = %+v, want data %q", live, "after")
	}
}

func TestViewerInputIsEchoed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	ws := f.dial(t)
	send(t, ws, ClientMessage{Type: MessageSubscribe, Session: "agent"})
	send(t, ws, ClientMessage{Type: MessageInput, Session: "agent", Data: "ls\n"})

	echo := receive(t, ws)
	if echo.Data != terminal.InputText("ls\n") {
		t.Fatalf("event = %+v, want the input echo", echo)
	}
}

func TestViewerClear(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.registry.Broadcast("agent", "old")

	ws := f.dial(t)
	send(t, ws, ClientMessage{Type: MessageSubscribe, Session: "agent"})
	receive(t, ws)
	send(t, ws, ClientMessage{Type: MessageClear, Session: "agent"})

	if event := receive(t, ws); event.Data != terminal.ClearText {
		t.Fatalf("event = %+v, want the clear chunk", event)
	}
	if info, _ := f.registry.Describe("agent"); info.BufferBytes != 0 {
		t.Errorf("BufferBytes = %d after clear", info.BufferBytes)
	}
}

func TestViewerIgnoresMalformedMessages(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	ws := f.dial(t)
	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	send(t, ws, ClientMessage{Type: "terminal:bogus", Session: "agent"})
	send(t, ws, ClientMessage{Type: MessageSubscribe})
	send(t, ws, ClientMessage{Type: MessageSubscribe, Session: "agent"})

	waitFor(t, "subscription", func() bool { return subscribers(f, "agent") == 1 })
	if len(f.registry.DescribeAll()) != 1 {
		t.Errorf("sessions = %+v, want only agent", f.registry.DescribeAll())
	}
}

func TestViewerUnsubscribe(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	ws := f.dial(t)
	send(t, ws, ClientMessage{Type: MessageSubscribe, Session: "agent"})
	waitFor(t, "subscription", func() bool { return subscribers(f, "agent") == 1 })

	send(t, ws, ClientMessage{Type: MessageUnsubscribe, Session: "agent"})
	waitFor(t, "unsubscription", func() bool { return subscribers(f, "agent") == 0 })
}

func TestDisconnectUnsubscribesEverywhere(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	ws := f.dial(t)
	send(t, ws, ClientMessage{Type: MessageSubscribe, Session: "alpha"})
	send(t, ws, ClientMessage{Type: MessageSubscribe, Session: "beta"})
	waitFor(t, "subscriptions", func() bool {
		return subscribers(f, "alpha") == 1 && subscribers(f, "beta") == 1
	})

	ws.Close()
	waitFor(t, "disconnect cleanup", func() bool {
		return subscribers(f, "alpha") == 0 && subscribers(f, "beta") == 0 && f.hub.Len() == 0
	})

	// Grace window rules still apply: the sessions are kept for now.
	if _, ok := f.registry.Describe("alpha"); !ok {
		t.Error("disconnect evicted a session early")
	}
}

func TestOriginCheck(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []string{"https://dashboard.example"})
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")

	header := http.Header{"Origin": []string{"https://evil.example"}}
	if ws, response, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		ws.Close()
		t.Fatal("dial from a disallowed origin succeeded")
	} else if response == nil || response.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", response)
	}

	header = http.Header{"Origin": []string{"https://dashboard.example"}}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial from an allowed origin: %v", err)
	}
	ws.Close()
}
