// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

// termmux is the operator CLI for termmux-server.
//
// attach follows a session live over the websocket, like a browser
// viewer, and forwards typed lines as input. sessions, history, clear
// and send talk to the server's control socket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NiroAgent/na-business-service-sub004/lib/process"
	"github.com/NiroAgent/na-business-service-sub004/lib/version"
)

// defaultSocketPath matches the server's default server.socket_path.
const defaultSocketPath = "/run/termmux/control.sock"

// defaultURL matches the server's default server.http_address.
const defaultURL = "ws://127.0.0.1:7681/ws"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCommand(os.Stdin, os.Stdout).execute(ctx, os.Args[1:], os.Stderr)
}

func rootCommand(stdin *os.File, stdout *os.File) *command {
	return &command{
		name:    "termmux",
		summary: "Watch and drive terminal sessions served by termmux-server.",
		usage:   "termmux <command> [flags]",
		subcommands: []*command{
			attachCommand(stdin, stdout),
			sessionsCommand(stdout),
			historyCommand(stdout),
			clearCommand(),
			sendCommand(),
			{
				name:    "version",
				summary: "Print version information",
				run: func(context.Context, []string) error {
					version.Print("termmux")
					return nil
				},
			},
		},
	}
}
