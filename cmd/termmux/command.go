// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// command is one node of the CLI tree.
type command struct {
	name    string
	summary string
	usage   string

	// flags returns the command's flag set. Nil means no flags.
	flags func() *pflag.FlagSet

	subcommands []*command

	run func(ctx context.Context, args []string) error
}

// execute dispatches args to a subcommand or parses flags and runs.
func (c *command) execute(ctx context.Context, args []string, help io.Writer) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.printHelp(help)
		return nil
	}

	if len(c.subcommands) > 0 {
		if len(args) == 0 {
			c.printHelp(help)
			return errors.New("subcommand required")
		}
		for _, sub := range c.subcommands {
			if sub.name == args[0] {
				return sub.execute(ctx, args[1:], help)
			}
		}
		return fmt.Errorf("unknown command %q; run '%s --help' for usage", args[0], c.name)
	}

	if c.flags != nil {
		flagSet := c.flags()
		flagSet.SetOutput(io.Discard)
		if err := flagSet.Parse(args); err != nil {
			if errors.Is(err, pflag.ErrHelp) {
				c.printHelp(help)
				return nil
			}
			return fmt.Errorf("%s: %w; run '%s --help' for usage", c.name, err, c.name)
		}
		args = flagSet.Args()
	}
	return c.run(ctx, args)
}

func (c *command) printHelp(w io.Writer) {
	if c.usage != "" {
		fmt.Fprintf(w, "Usage: %s\n\n", c.usage)
	}
	if c.summary != "" {
		fmt.Fprintf(w, "%s\n", c.summary)
	}
	if len(c.subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, sub := range c.subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.name, sub.summary)
		}
		tw.Flush()
	}
	if c.flags != nil {
		flagSet := c.flags()
		if usage := flagSet.FlagUsages(); strings.TrimSpace(usage) != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usage)
		}
	}
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
