// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/NiroAgent/na-business-service-sub004/lib/config"
	"github.com/NiroAgent/na-business-service-sub004/terminal"
)

const (
	defaultColumns = 120
	defaultRows    = 40
)

// startSources starts every configured process and attaches it to its
// session. On error, processes already started are terminated.
func startSources(sources []config.SourceConfig, registry *terminal.Registry, logger *slog.Logger) ([]*terminal.Process, error) {
	var started []*terminal.Process
	for _, source := range sources {
		process, err := startSource(source)
		if err != nil {
			stopSources(started, logger)
			return nil, fmt.Errorf("source %q: %w", source.Key, err)
		}
		registry.Attach(source.Key, process)
		started = append(started, process)
	}
	return started, nil
}

func startSource(source config.SourceConfig) (*terminal.Process, error) {
	cmd := exec.Command(source.Command[0], source.Command[1:]...)
	cmd.Dir = source.Directory
	cmd.Env = append(os.Environ(), source.Env...)

	if !source.PTY {
		return terminal.StartProcess(cmd)
	}
	columns, rows := source.Columns, source.Rows
	if columns == 0 {
		columns = defaultColumns
	}
	if rows == 0 {
		rows = defaultRows
	}
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")
	return terminal.StartPTY(cmd, columns, rows)
}

// stopSources asks every process to terminate. Their exits reach the
// registry through the normal source path.
func stopSources(processes []*terminal.Process, logger *slog.Logger) {
	for _, process := range processes {
		if err := process.Signal(syscall.SIGTERM); err != nil {
			logger.Debug("signalling source", "pid", process.PID(), "error", err)
		}
	}
}
