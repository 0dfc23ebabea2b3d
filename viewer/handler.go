// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/NiroAgent/na-business-service-sub004/lib/clock"
)

// Registry is the subset of terminal.Registry a viewer drives.
type Registry interface {
	Subscribe(connectionID, key string)
	Unsubscribe(connectionID, key string)
	UnsubscribeAll(connectionID string)
	SendInput(key, text string)
	Clear(key string) bool
}

// Defaults for zero-valued HandlerOptions fields.
const (
	DefaultQueueDepth   = 256
	DefaultWriteTimeout = 10 * time.Second
)

// maxMessageSize bounds one client frame.
const maxMessageSize = 64 * 1024

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Registry Registry
	Hub      *Hub
	Clock    clock.Clock
	Logger   *slog.Logger
	Metrics  *Metrics

	QueueDepth   int
	WriteTimeout time.Duration

	// PingInterval is how often the server pings an idle client. A
	// client that answers nothing for two intervals is disconnected.
	// Zero disables pings and the read deadline.
	PingInterval time.Duration

	// AllowedOrigins lists the Origin header values accepted on
	// upgrade. Empty means same-origin only; "*" accepts any origin.
	AllowedOrigins []string
}

// Handler upgrades requests to viewer websockets.
type Handler struct {
	registry Registry
	hub      *Hub
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *Metrics

	queueDepth   int
	writeTimeout time.Duration
	pingInterval time.Duration

	upgrader websocket.Upgrader
}

// NewHandler returns a Handler. Registry and Hub are required.
func NewHandler(options HandlerOptions) *Handler {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.QueueDepth <= 0 {
		options.QueueDepth = DefaultQueueDepth
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = DefaultWriteTimeout
	}

	handler := &Handler{
		registry:     options.Registry,
		hub:          options.Hub,
		clock:        options.Clock,
		logger:       options.Logger,
		metrics:      options.Metrics,
		queueDepth:   options.QueueDepth,
		writeTimeout: options.WriteTimeout,
		pingInterval: options.PingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	if len(options.AllowedOrigins) > 0 {
		origins := slices.Clone(options.AllowedOrigins)
		handler.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(origins, "*") || slices.Contains(origins, r.Header.Get("Origin"))
		}
	}
	return handler
}

// ServeHTTP upgrades the request and serves the connection until the
// client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(uuid.NewString(), ws, h.queueDepth, h.logger, h.metrics)
	h.hub.add(conn)
	h.metrics.connected()
	h.logger.Info("viewer connected", "connection", conn.id, "remote", r.RemoteAddr)

	go conn.writePump(h.clock, h.writeTimeout, h.pingInterval)
	h.readLoop(conn)

	h.registry.UnsubscribeAll(conn.id)
	h.hub.remove(conn.id)
	conn.Close()
	h.metrics.disconnected()
	h.logger.Info("viewer disconnected", "connection", conn.id, "dropped_events", conn.Dropped())
}

func (h *Handler) readLoop(conn *Conn) {
	ws := conn.ws
	ws.SetReadLimit(maxMessageSize)
	if h.pingInterval > 0 {
		wait := 2 * h.pingInterval
		ws.SetReadDeadline(time.Now().Add(wait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("viewer read failed", "connection", conn.id, "error", err)
			}
			return
		}
		var message ClientMessage
		if err := json.Unmarshal(data, &message); err != nil {
			h.logger.Debug("ignoring malformed client message", "connection", conn.id, "error", err)
			continue
		}
		h.dispatch(conn, message)
	}
}

func (h *Handler) dispatch(conn *Conn, message ClientMessage) {
	if message.Session == "" {
		h.logger.Debug("ignoring client message without session", "connection", conn.id, "type", message.Type)
		return
	}
	switch message.Type {
	case MessageSubscribe:
		h.registry.Subscribe(conn.id, message.Session)
	case MessageUnsubscribe:
		h.registry.Unsubscribe(conn.id, message.Session)
	case MessageInput:
		h.registry.SendInput(message.Session, message.Data)
	case MessageClear:
		h.registry.Clear(message.Session)
	default:
		h.logger.Debug("ignoring unknown client message", "connection", conn.id, "type", message.Type)
	}
}
