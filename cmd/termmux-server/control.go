// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NiroAgent/na-business-service-sub004/lib/clock"
	"github.com/NiroAgent/na-business-service-sub004/lib/codec"
	"github.com/NiroAgent/na-business-service-sub004/lib/service"
	"github.com/NiroAgent/na-business-service-sub004/lib/version"
	"github.com/NiroAgent/na-business-service-sub004/terminal"
	"github.com/NiroAgent/na-business-service-sub004/viewer"
)

// controlHandlers answers operator requests on the control socket.
type controlHandlers struct {
	registry  *terminal.Registry
	hub       *viewer.Hub
	clock     clock.Clock
	startedAt time.Time
}

// statusResponse is the reply to "status".
type statusResponse struct {
	Version       string  `cbor:"version"`
	UptimeSeconds float64 `cbor:"uptime_seconds"`
	Sessions      int     `cbor:"sessions"`
	Connections   int     `cbor:"connections"`
}

// historyResponse is the reply to "history".
type historyResponse struct {
	Session string `cbor:"session"`
	Data    string `cbor:"data"`
}

// sessionRequest carries the fields of every session-scoped action.
type sessionRequest struct {
	Session string `cbor:"session"`
	Text    string `cbor:"text"`
}

func (c *controlHandlers) register(server *service.Server) {
	server.Handle("status", c.status)
	server.Handle("list-sessions", c.listSessions)
	server.Handle("describe", c.describe)
	server.Handle("clear", c.clear)
	server.Handle("send-input", c.sendInput)
	server.Handle("history", c.history)
}

func (c *controlHandlers) status(ctx context.Context, raw []byte) (any, error) {
	return statusResponse{
		Version:       version.Info(),
		UptimeSeconds: c.clock.Now().Sub(c.startedAt).Seconds(),
		Sessions:      len(c.registry.DescribeAll()),
		Connections:   c.hub.Len(),
	}, nil
}

func (c *controlHandlers) listSessions(ctx context.Context, raw []byte) (any, error) {
	return c.registry.DescribeAll(), nil
}

func (c *controlHandlers) describe(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeSessionRequest(raw)
	if err != nil {
		return nil, err
	}
	info, ok := c.registry.Describe(request.Session)
	if !ok {
		return nil, notFound(request.Session)
	}
	return info, nil
}

func (c *controlHandlers) clear(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeSessionRequest(raw)
	if err != nil {
		return nil, err
	}
	if !c.registry.Clear(request.Session) {
		return nil, notFound(request.Session)
	}
	return nil, nil
}

func (c *controlHandlers) sendInput(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeSessionRequest(raw)
	if err != nil {
		return nil, err
	}
	c.registry.SendInput(request.Session, request.Text)
	return nil, nil
}

func (c *controlHandlers) history(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeSessionRequest(raw)
	if err != nil {
		return nil, err
	}
	data, ok := c.registry.History(request.Session)
	if !ok {
		return nil, notFound(request.Session)
	}
	return historyResponse{Session: request.Session, Data: data}, nil
}

func decodeSessionRequest(raw []byte) (sessionRequest, error) {
	var request sessionRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return request, fmt.Errorf("invalid request: %w", err)
	}
	if request.Session == "" {
		return request, errors.New("missing required field: session")
	}
	return request, nil
}

func notFound(key string) error {
	return fmt.Errorf("session %q not found", key)
}
