// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/NiroAgent/na-business-service-sub004/lib/config"
)

// newLogger builds the server logger. In auto format, a terminal gets
// human-readable text and anything else (journald, files, pipes) gets
// JSON.
func newLogger(cfg config.LoggingConfig, output *os.File) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}
	options := &slog.HandlerOptions{Level: level}

	format := cfg.Format
	if format == "auto" || format == "" {
		format = "json"
		if term.IsTerminal(int(output.Fd())) {
			format = "text"
		}
	}
	return slog.New(newHandler(format, output, options)), nil
}

func newHandler(format string, output io.Writer, options *slog.HandlerOptions) slog.Handler {
	if format == "text" {
		return slog.NewTextHandler(output, options)
	}
	return slog.NewJSONHandler(output, options)
}
