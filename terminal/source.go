// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
	"unicode/utf8"
)

// Source is a running process as seen by the registry. Any of the three
// streams may be nil.
type Source interface {
	PID() int
	Stdout() io.Reader
	Stderr() io.Reader
	Stdin() io.Writer

	// Wait blocks until the process exits and returns its exit code.
	// The registry calls it once, after both output streams have
	// reached end of file.
	Wait() int
}

const (
	// readSize bounds one output chunk.
	readSize = 4096

	// inputQueueDepth is how many SendInput writes may be pending
	// against a slow stdin before further writes are dropped.
	inputQueueDepth = 64
)

// binding is one Attach of a source to a session.
type binding struct {
	source Source
	pid    int

	// input feeds the stdin writer goroutine. Nil when the source has
	// no stdin. Sent to and closed only under the session lock.
	input chan string
}

func newBinding(source Source) *binding {
	b := &binding{source: source, pid: source.PID()}
	if source.Stdin() != nil {
		b.input = make(chan string, inputQueueDepth)
	}
	return b
}

// run starts one pump per output stream and, once both drain, waits for
// the exit code and records it. The exit chunk is therefore always the
// last chunk a binding contributes.
func (r *Registry) run(s *session, b *binding) {
	var pumps sync.WaitGroup
	if stdout := b.source.Stdout(); stdout != nil {
		pumps.Add(1)
		go func() {
			defer pumps.Done()
			r.pump(s, stdout, ChunkOutput)
		}()
	}
	if stderr := b.source.Stderr(); stderr != nil {
		pumps.Add(1)
		go func() {
			defer pumps.Done()
			r.pump(s, stderr, ChunkError)
		}()
	}
	if b.input != nil {
		go r.writeInput(s.key, b.source.Stdin(), b.input)
	}

	go func() {
		pumps.Wait()
		r.finish(s, b, b.source.Wait())
	}()
}

// pump reads reader until it fails and appends what it reads. A
// multi-byte character split across two reads is held back until it is
// complete.
func (r *Registry) pump(s *session, reader io.Reader, kind ChunkKind) {
	buffer := make([]byte, readSize)
	var carry []byte
	for {
		n, err := reader.Read(buffer)
		if n > 0 {
			data := append(carry, buffer[:n]...)
			complete := completePrefix(data)
			if complete > 0 {
				r.deliver(s, kind, string(data[:complete]))
			}
			carry = append([]byte(nil), data[complete:]...)
		}
		if err != nil {
			if len(carry) > 0 {
				r.deliver(s, kind, string(carry))
			}
			if !endOfStream(err) {
				r.logger.Warn("reading source output", "session", s.key, "stream", kind.String(), "error", err)
			}
			return
		}
	}
}

// endOfStream reports whether err is an ordinary end of output. A PTY
// master reads EIO once the last slave descriptor closes.
func endOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, syscall.EIO)
}

// completePrefix returns the length of the longest prefix of data that
// does not end inside a UTF-8 sequence. Invalid trailing bytes count as
// complete.
func completePrefix(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if utf8.FullRune(data[i:]) {
				return len(data)
			}
			return i
		}
	}
	return len(data)
}

func (r *Registry) deliver(s *session, kind ChunkKind, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == ChunkError {
		text = ErrorText(text)
	}
	r.appendLocked(s, kind, text)
}

func (r *Registry) writeInput(key string, stdin io.Writer, input <-chan string) {
	var failed bool
	for text := range input {
		if failed {
			continue
		}
		if _, err := io.WriteString(stdin, text); err != nil {
			failed = true
			r.logger.Debug("writing source input", "session", key, "error", err)
		}
	}
}

func (r *Registry) finish(s *session, b *binding, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.input != nil {
		close(b.input)
	}
	s.running--

	r.appendLocked(s, ChunkExit, ExitText(code))
	r.logger.Info("source exited", "session", s.key, "pid", b.pid, "exit_code", code)
	if s.binding == b {
		s.binding = nil
		s.exited = true
		s.exitCode = code
	}

	if s.running == 0 && len(s.subscribers) == 0 && s.eviction == nil {
		r.scheduleEvictionLocked(s)
	}
}
