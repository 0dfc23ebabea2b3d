// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"
)

func output(text string) Chunk { return Chunk{Kind: ChunkOutput, Text: text} }

func TestScrollbackAppendAndString(t *testing.T) {
	t.Parallel()
	buffer := NewScrollback(DefaultBufferLimits)
	buffer.Append(output("hello "))
	buffer.Append(output("world"))

	if got := buffer.String(); got != "hello world" {
		t.Errorf("String() = %q", got)
	}
	if buffer.Len() != 11 {
		t.Errorf("Len() = %d, want 11", buffer.Len())
	}
	if buffer.Chunks() != 2 {
		t.Errorf("Chunks() = %d, want 2", buffer.Chunks())
	}
}

func TestScrollbackHysteresisTrim(t *testing.T) {
	t.Parallel()
	// Hard cap 100, soft cap 80.
	buffer := NewScrollback(BufferLimits{Unit: 1, HardMultiplier: 100, SoftMultiplier: 80})

	for i := 0; i < 10; i++ {
		if discarded := buffer.Append(output(strings.Repeat("a", 10))); discarded != 0 {
			t.Fatalf("append %d discarded %d bytes below the hard cap", i, discarded)
		}
	}
	if buffer.Len() != 100 {
		t.Fatalf("Len() = %d, want exactly the hard cap", buffer.Len())
	}

	// One more byte crosses the hard cap and trims down to the soft cap.
	discarded := buffer.Append(output("b"))
	if buffer.Len() > 80 {
		t.Errorf("Len() = %d after trim, want <= 80", buffer.Len())
	}
	if discarded != 30 {
		t.Errorf("discarded = %d, want 30", discarded)
	}
	if !strings.HasSuffix(buffer.String(), "b") {
		t.Error("newest chunk was trimmed")
	}

	// The next small appends fit without another trim.
	if discarded := buffer.Append(output("c")); discarded != 0 {
		t.Errorf("append after trim discarded %d bytes", discarded)
	}
}

func TestScrollbackOversizedChunk(t *testing.T) {
	t.Parallel()
	buffer := NewScrollback(BufferLimits{Unit: 1, HardMultiplier: 10, SoftMultiplier: 8})
	buffer.Append(output("old"))

	buffer.Append(output("€€€€€"))

	if buffer.Len() > 10 {
		t.Fatalf("Len() = %d exceeds hard cap", buffer.Len())
	}
	got := buffer.String()
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got)
	}
	if got != "old€€" {
		t.Errorf("String() = %q, want the old chunk and the trailing whole runes", got)
	}
}

func TestScrollbackNeverExceedsHardCap(t *testing.T) {
	t.Parallel()
	limits := BufferLimits{Unit: 50, HardMultiplier: 100, SoftMultiplier: 80}
	buffer := NewScrollback(limits)
	random := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 5000; i++ {
		buffer.Append(output(strings.Repeat("x", random.IntN(2*limits.HardCap()))))
		if buffer.Len() > limits.HardCap() {
			t.Fatalf("append %d: Len() = %d exceeds hard cap %d", i, buffer.Len(), limits.HardCap())
		}
	}
}

func TestScrollbackReset(t *testing.T) {
	t.Parallel()
	buffer := NewScrollback(DefaultBufferLimits)
	buffer.Append(output("something"))
	buffer.Reset()

	if buffer.Len() != 0 || buffer.Chunks() != 0 || buffer.String() != "" {
		t.Errorf("after Reset: Len=%d Chunks=%d String=%q", buffer.Len(), buffer.Chunks(), buffer.String())
	}
}

func TestScrollbackInvalidLimitsFallBack(t *testing.T) {
	t.Parallel()
	for _, limits := range []BufferLimits{
		{},
		{Unit: 10, HardMultiplier: 5, SoftMultiplier: 5},
		{Unit: 10, HardMultiplier: 5, SoftMultiplier: 8},
	} {
		buffer := NewScrollback(limits)
		if buffer.hardCap != DefaultBufferLimits.HardCap() || buffer.softCap != DefaultBufferLimits.SoftCap() {
			t.Errorf("limits %+v: caps %d/%d, want defaults", limits, buffer.hardCap, buffer.softCap)
		}
	}
}
