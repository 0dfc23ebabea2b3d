// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eapache/queue"
)

// ChunkKind classifies a scrollback chunk by where it came from.
type ChunkKind uint8

const (
	ChunkOutput ChunkKind = iota
	ChunkError
	ChunkExit
	ChunkStarted
	ChunkInput
)

// String returns the lowercase name used in metric labels.
func (kind ChunkKind) String() string {
	switch kind {
	case ChunkOutput:
		return "output"
	case ChunkError:
		return "error"
	case ChunkExit:
		return "exit"
	case ChunkStarted:
		return "started"
	case ChunkInput:
		return "input"
	default:
		return "unknown"
	}
}

// Chunk is one unit of session output. Text carries any style markers
// verbatim.
type Chunk struct {
	Kind      ChunkKind
	Text      string
	Timestamp time.Time
}

// BufferLimits sets the scrollback caps as multiples of a unit.
type BufferLimits struct {
	Unit           int
	HardMultiplier int
	SoftMultiplier int
}

// DefaultBufferLimits trims at 100,000 bytes down to 80,000.
var DefaultBufferLimits = BufferLimits{Unit: 1000, HardMultiplier: 100, SoftMultiplier: 80}

// HardCap is the byte length the buffer never exceeds after an append.
func (limits BufferLimits) HardCap() int { return limits.Unit * limits.HardMultiplier }

// SoftCap is the byte length a trim reduces the buffer to.
func (limits BufferLimits) SoftCap() int { return limits.Unit * limits.SoftMultiplier }

func (limits BufferLimits) valid() bool {
	return limits.Unit > 0 && limits.SoftMultiplier > 0 && limits.SoftMultiplier < limits.HardMultiplier
}

// Scrollback is an ordered, byte-bounded list of chunks, oldest first.
// It is not safe for concurrent use; the registry guards each one with
// its session lock.
type Scrollback struct {
	chunks  *queue.Queue
	size    int
	hardCap int
	softCap int
}

// NewScrollback returns an empty scrollback. Invalid limits fall back to
// DefaultBufferLimits.
func NewScrollback(limits BufferLimits) *Scrollback {
	if !limits.valid() {
		limits = DefaultBufferLimits
	}
	return &Scrollback{
		chunks:  queue.New(),
		hardCap: limits.HardCap(),
		softCap: limits.SoftCap(),
	}
}

// Append adds chunk at the tail and trims if the hard cap is exceeded.
// Returns the number of bytes discarded by the trim.
//
// A chunk larger than the soft cap on its own is cut down to its
// trailing soft-cap bytes first, so it survives the trim it triggers.
func (buffer *Scrollback) Append(chunk Chunk) int {
	discarded := 0
	if len(chunk.Text) > buffer.softCap {
		cut := len(chunk.Text) - buffer.softCap
		for cut < len(chunk.Text) && !utf8.RuneStart(chunk.Text[cut]) {
			cut++
		}
		discarded += cut
		chunk.Text = chunk.Text[cut:]
	}

	buffer.chunks.Add(chunk)
	buffer.size += len(chunk.Text)

	if buffer.size > buffer.hardCap {
		for buffer.size > buffer.softCap {
			oldest := buffer.chunks.Remove().(Chunk)
			buffer.size -= len(oldest.Text)
			discarded += len(oldest.Text)
		}
	}
	return discarded
}

// Len returns the total byte length of all chunks.
func (buffer *Scrollback) Len() int { return buffer.size }

// Chunks returns the number of chunks held.
func (buffer *Scrollback) Chunks() int { return buffer.chunks.Length() }

// String returns the concatenation of every chunk, oldest first.
func (buffer *Scrollback) String() string {
	var builder strings.Builder
	builder.Grow(buffer.size)
	for i := 0; i < buffer.chunks.Length(); i++ {
		builder.WriteString(buffer.chunks.Get(i).(Chunk).Text)
	}
	return builder.String()
}

// Reset discards every chunk.
func (buffer *Scrollback) Reset() {
	buffer.chunks = queue.New()
	buffer.size = 0
}
