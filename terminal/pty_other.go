// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package terminal

import (
	"errors"
	"os/exec"
)

var errNoPTY = errors.New("pseudo-terminals are only supported on linux")

// StartPTY is unsupported on this platform.
func StartPTY(cmd *exec.Cmd, columns, rows uint16) (*Process, error) {
	return nil, errNoPTY
}

// Resize is unsupported on this platform.
func (p *Process) Resize(columns, rows uint16) error {
	return errNoPTY
}
