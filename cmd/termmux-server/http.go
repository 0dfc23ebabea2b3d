// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NiroAgent/na-business-service-sub004/terminal"
)

// newMux routes the HTTP surface: the viewer websocket, read-only
// session JSON, Prometheus metrics and a liveness probe.
func newMux(registry *terminal.Registry, viewers http.Handler, gatherer prometheus.Gatherer, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", viewers)
	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, registry.DescribeAll())
	})
	mux.HandleFunc("GET /api/sessions/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		info, ok := registry.Describe(key)
		if !ok {
			writeJSON(w, logger, http.StatusNotFound, map[string]string{"error": "session not found", "session": key})
			return
		}
		writeJSON(w, logger, http.StatusOK, info)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		logger.Debug("writing JSON response", "error", err)
	}
}
