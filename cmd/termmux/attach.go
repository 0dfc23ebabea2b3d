// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/NiroAgent/na-business-service-sub004/terminal"
	"github.com/NiroAgent/na-business-service-sub004/viewer"
)

func attachCommand(stdin, stdout *os.File) *command {
	var (
		url   string
		plain bool
	)
	return &command{
		name:    "attach",
		summary: "Follow a session live and send typed lines as input",
		usage:   "termmux attach <session> [--url URL] [--plain]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("attach", pflag.ContinueOnError)
			flagSet.StringVar(&url, "url", defaultURL, "server websocket URL")
			flagSet.BoolVar(&plain, "plain", !term.IsTerminal(int(stdout.Fd())), "strip escape sequences from output (default when stdout is not a terminal)")
			return flagSet
		},
		run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("attach: exactly one session is required")
			}
			return attach(ctx, url, args[0], stdin, stdout, plain)
		},
	}
}

// attach subscribes to session and copies its output to stdout until
// ctx is cancelled or the server closes the connection. Each line read
// from stdin is sent as input.
func attach(ctx context.Context, url, session string, stdin io.Reader, stdout io.Writer, plain bool) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(viewer.ClientMessage{Type: viewer.MessageSubscribe, Session: session}); err != nil {
		return fmt.Errorf("subscribing to %s: %w", session, err)
	}

	// After the subscribe, this goroutine is the only writer of data
	// frames. WriteControl may run concurrently with it.
	go func() {
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			message := viewer.ClientMessage{Type: viewer.MessageInput, Session: session, Data: scanner.Text() + "\n"}
			if err := ws.WriteJSON(message); err != nil {
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading from %s: %w", url, err)
		}

		var event terminal.Event
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("decoding server event: %w", err)
		}
		text := event.Data
		if plain {
			text = ansi.Strip(text)
		}
		if _, err := io.WriteString(stdout, text); err != nil {
			return err
		}
	}
}
