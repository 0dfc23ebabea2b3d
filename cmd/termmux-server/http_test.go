// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NiroAgent/na-business-service-sub004/lib/clock"
	"github.com/NiroAgent/na-business-service-sub004/terminal"
)

func newTestMux(t *testing.T) (*terminal.Registry, *httptest.Server) {
	t.Helper()
	metrics := prometheus.NewRegistry()
	terminalMetrics, err := terminal.NewMetrics(metrics)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	registry := terminal.NewRegistry(terminal.Options{
		Clock:   clock.Fake(time.Unix(0, 0)),
		Metrics: terminalMetrics,
	})
	t.Cleanup(registry.Close)

	viewers := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	server := httptest.NewServer(newMux(registry, viewers, metrics, slog.New(slog.DiscardHandler)))
	t.Cleanup(server.Close)
	return registry, server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	response, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("reading %s: %v", url, err)
	}
	return response.StatusCode, string(body)
}

func TestSessionsEndpoints(t *testing.T) {
	t.Parallel()
	registry, server := newTestMux(t)
	registry.Broadcast("beta", "bb")
	registry.Broadcast("alpha", "a")

	status, body := get(t, server.URL+"/api/sessions")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var infos []terminal.SessionInfo
	if err := json.Unmarshal([]byte(body), &infos); err != nil {
		t.Fatalf("decoding %q: %v", body, err)
	}
	if len(infos) != 2 || infos[0].Key != "alpha" || infos[1].BufferBytes != 2 {
		t.Errorf("sessions = %+v", infos)
	}

	status, body = get(t, server.URL+"/api/sessions/alpha")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var info terminal.SessionInfo
	if err := json.Unmarshal([]byte(body), &info); err != nil {
		t.Fatalf("decoding %q: %v", body, err)
	}
	if info.Key != "alpha" || info.BufferBytes != 1 {
		t.Errorf("session = %+v", info)
	}

	if status, _ := get(t, server.URL+"/api/sessions/missing"); status != http.StatusNotFound {
		t.Errorf("missing session status = %d, want 404", status)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	registry, server := newTestMux(t)
	registry.Broadcast("agent", "x")

	if status, body := get(t, server.URL+"/healthz"); status != http.StatusOK || body != "ok\n" {
		t.Errorf("healthz = %d %q", status, body)
	}

	status, body := get(t, server.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}
	for _, want := range []string{"termmux_registry_sessions 1", `termmux_registry_chunks_appended_total{kind="output"} 1`} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestWebsocketRoute(t *testing.T) {
	t.Parallel()
	_, server := newTestMux(t)

	if status, _ := get(t, server.URL+"/ws"); status != http.StatusTeapot {
		t.Errorf("/ws status = %d, want the viewer handler", status)
	}
	response, err := http.Post(server.URL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", response.StatusCode)
	}
}
