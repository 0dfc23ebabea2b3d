// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process is a Source backed by a child process started by this package.
type Process struct {
	cmd *exec.Cmd

	stdout io.Reader
	stderr io.Reader
	stdin  io.Writer

	// master is the PTY master for StartPTY processes, nil otherwise.
	master *os.File
}

// StartProcess starts cmd with its three standard streams connected to
// pipes. cmd must not have Stdin, Stdout or Stderr set.
func StartProcess(cmd *exec.Cmd) (*Process, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	return &Process{cmd: cmd, stdout: stdout, stderr: stderr, stdin: stdin}, nil
}

// PID returns the operating system process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Stdout returns the process's output stream.
func (p *Process) Stdout() io.Reader { return p.stdout }

// Stderr returns the error stream, nil for PTY processes whose error
// output is interleaved with Stdout.
func (p *Process) Stderr() io.Reader { return p.stderr }

// Stdin returns the process's input stream.
func (p *Process) Stdin() io.Writer { return p.stdin }

// Wait waits for the process and returns its exit code, or -1 if it was
// killed by a signal or could not be waited for.
func (p *Process) Wait() int {
	err := p.cmd.Wait()
	if p.master != nil {
		p.master.Close()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Signal sends sig to the process.
func (p *Process) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}
