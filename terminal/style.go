// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// Markers are rendered with the basic 16-colour ANSI profile regardless
// of the server's own terminal: they are payload for remote viewers.
var markerProfile = termenv.ANSI

// ClearText is the control chunk broadcast by Clear: erase the viewport
// and home the cursor.
const ClearText = ansi.EraseEntireScreen + ansi.CursorHomePosition

func mark(text string, color termenv.Color) string {
	return markerProfile.String(text).Foreground(color).String()
}

// StartedText is the synthetic first chunk of every attached source.
func StartedText(pid int) string {
	return mark(fmt.Sprintf("[session started: pid %d]", pid), termenv.ANSIGreen) + "\r\n"
}

// ErrorText wraps standard-error output.
func ErrorText(data string) string {
	return mark(data, termenv.ANSIRed)
}

// ExitText reports the source's exit code.
func ExitText(code int) string {
	return "\r\n" + mark(fmt.Sprintf("[process exited with code %d]", code), termenv.ANSIYellow) + "\r\n"
}

// InputText echoes text sent to the source's standard input.
func InputText(text string) string {
	return mark("> "+strings.TrimRight(text, "\r\n"), termenv.ANSICyan) + "\r\n"
}
