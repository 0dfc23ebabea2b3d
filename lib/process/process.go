// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by termmux
// binaries for the one place raw stderr output is allowed: errors that
// escape run() before or after the structured logger exists.
package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
