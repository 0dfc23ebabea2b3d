// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// StartPTY starts cmd on a new pseudo-terminal of the given size. The
// process's stdout and stderr both arrive on Stdout; Stderr is nil.
func StartPTY(cmd *exec.Cmd, columns, rows uint16) (*Process, error) {
	master, slavePath, err := openPTY()
	if err != nil {
		return nil, err
	}

	if err := setWindowSize(int(master.Fd()), columns, rows); err != nil {
		master.Close()
		return nil, fmt.Errorf("set window size: %w", err)
	}

	slave, err := os.OpenFile(slavePath, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		master.Close()
		return nil, fmt.Errorf("open %s: %w", slavePath, err)
	}

	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}

	if err := cmd.Start(); err != nil {
		slave.Close()
		master.Close()
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	// The child holds its own copy. Closing ours lets the master read
	// EIO when the child exits.
	slave.Close()

	return &Process{cmd: cmd, stdout: master, stdin: master, master: master}, nil
}

// Resize sets the terminal size of a PTY process. The kernel delivers
// SIGWINCH to its foreground process group.
func (p *Process) Resize(columns, rows uint16) error {
	if p.master == nil {
		return errors.New("resize: process has no terminal")
	}
	return setWindowSize(int(p.master.Fd()), columns, rows)
}

func openPTY() (*os.File, string, error) {
	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, "", fmt.Errorf("open /dev/ptmx: %w", err)
	}

	fd := int(master.Fd())
	number, err := unix.IoctlGetInt(fd, unix.TIOCGPTN)
	if err != nil {
		master.Close()
		return nil, "", fmt.Errorf("get PTY number (TIOCGPTN): %w", err)
	}
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		master.Close()
		return nil, "", fmt.Errorf("unlock PTY slave (TIOCSPTLCK): %w", err)
	}
	return master, fmt.Sprintf("/dev/pts/%d", number), nil
}

func setWindowSize(fd int, columns, rows uint16) error {
	return unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, &unix.Winsize{Col: columns, Row: rows})
}
