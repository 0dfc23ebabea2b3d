// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/pflag"

	"github.com/NiroAgent/na-business-service-sub004/lib/service"
	"github.com/NiroAgent/na-business-service-sub004/terminal"
)

func socketFlag(name string, socketPath *string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(socketPath, "socket", defaultSocketPath, "server control socket")
	return flagSet
}

func sessionsCommand(stdout io.Writer) *command {
	var (
		socketPath string
		asJSON     bool
	)
	return &command{
		name:    "sessions",
		summary: "List live sessions",
		usage:   "termmux sessions [--socket PATH] [--json]",
		flags: func() *pflag.FlagSet {
			flagSet := socketFlag("sessions", &socketPath)
			flagSet.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
			return flagSet
		},
		run: func(ctx context.Context, args []string) error {
			var sessions []terminal.SessionInfo
			if err := service.NewClient(socketPath).Call(ctx, "list-sessions", nil, &sessions); err != nil {
				return err
			}
			if asJSON {
				encoder := json.NewEncoder(stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(sessions)
			}
			_, err := fmt.Fprintln(stdout, renderSessions(sessions))
			return err
		},
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// renderSessions formats sessions as a bordered table.
func renderSessions(sessions []terminal.SessionInfo) string {
	if len(sessions) == 0 {
		return "no sessions"
	}
	rows := make([][]string, 0, len(sessions))
	for _, info := range sessions {
		rows = append(rows, []string{
			info.Key,
			strconv.Itoa(info.Subscribers),
			strconv.Itoa(info.BufferBytes),
			strconv.Itoa(info.Chunks),
			sessionState(info),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SESSION", "VIEWERS", "BYTES", "CHUNKS", "SOURCE").
		Rows(rows...).
		StyleFunc(func(row, column int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func sessionState(info terminal.SessionInfo) string {
	switch {
	case info.Attached:
		return fmt.Sprintf("running (pid %d)", info.PID)
	case info.Exited:
		return fmt.Sprintf("exited (%d)", info.ExitCode)
	default:
		return "none"
	}
}

func historyCommand(stdout io.Writer) *command {
	var socketPath string
	return &command{
		name:    "history",
		summary: "Print a session's scrollback",
		usage:   "termmux history <session> [--socket PATH]",
		flags:   func() *pflag.FlagSet { return socketFlag("history", &socketPath) },
		run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("history: exactly one session is required")
			}
			var result struct {
				Data string `cbor:"data"`
			}
			if err := service.NewClient(socketPath).Call(ctx, "history", map[string]any{"session": args[0]}, &result); err != nil {
				return err
			}
			_, err := io.WriteString(stdout, result.Data)
			return err
		},
	}
}

func clearCommand() *command {
	var socketPath string
	return &command{
		name:    "clear",
		summary: "Discard a session's scrollback and clear its viewers",
		usage:   "termmux clear <session> [--socket PATH]",
		flags:   func() *pflag.FlagSet { return socketFlag("clear", &socketPath) },
		run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("clear: exactly one session is required")
			}
			return service.NewClient(socketPath).Call(ctx, "clear", map[string]any{"session": args[0]}, nil)
		},
	}
}

func sendCommand() *command {
	var (
		socketPath string
		noNewline  bool
	)
	return &command{
		name:    "send",
		summary: "Write text to a session's process",
		usage:   "termmux send <session> <text>... [--socket PATH] [-n]",
		flags: func() *pflag.FlagSet {
			flagSet := socketFlag("send", &socketPath)
			flagSet.BoolVarP(&noNewline, "no-newline", "n", false, "do not append a newline")
			return flagSet
		},
		run: func(ctx context.Context, args []string) error {
			if len(args) < 2 {
				return errors.New("send: a session and text are required")
			}
			text := strings.Join(args[1:], " ")
			if !noNewline {
				text += "\n"
			}
			return service.NewClient(socketPath).Call(ctx, "send-input", map[string]any{"session": args[0], "text": text}, nil)
		},
	}
}
