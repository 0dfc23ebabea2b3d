// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NiroAgent/na-business-service-sub004/lib/clock"
)

// DefaultGraceWindow is how long a session with no subscribers survives.
const DefaultGraceWindow = 60 * time.Second

// Options configures a Registry. The zero value is usable: it resolves
// no connections, uses the real clock, logs nothing and applies the
// default grace window and buffer limits.
type Options struct {
	// Connections resolves subscriber ids at push time.
	Connections ConnectionDirectory

	Clock  clock.Clock
	Logger *slog.Logger

	// GraceWindow is the delay between a session's subscriber set
	// becoming empty and its eviction. Non-positive means
	// DefaultGraceWindow.
	GraceWindow time.Duration

	Limits BufferLimits

	// Metrics may be nil.
	Metrics *Metrics
}

// Registry owns every session. All methods are safe for concurrent use
// and never block on I/O.
//
// Lock order is Registry.mu before session.mu. Nothing acquires
// Registry.mu while holding a session lock.
type Registry struct {
	connections ConnectionDirectory
	clock       clock.Clock
	logger      *slog.Logger
	graceWindow time.Duration
	limits      BufferLimits
	metrics     *Metrics

	closed atomic.Bool

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	key string

	mu          sync.Mutex
	buffer      *Scrollback
	subscribers map[string]struct{}

	// binding is the live source, nil when none is bound or the last
	// one exited.
	binding  *binding
	exited   bool
	exitCode int

	// running counts attached sources whose exit has not been recorded,
	// including ones replaced by a later Attach. A session with a
	// running source is never evicted.
	running int

	// eviction is the pending grace timer. generation is bumped on
	// every schedule and cancel so a timer that fires after losing a
	// race with Stop can tell it is stale.
	eviction   *clock.Timer
	generation uint64
}

// NewRegistry returns an empty registry.
func NewRegistry(options Options) *Registry {
	if options.Connections == nil {
		options.Connections = emptyDirectory{}
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.GraceWindow <= 0 {
		options.GraceWindow = DefaultGraceWindow
	}
	if !options.Limits.valid() {
		options.Limits = DefaultBufferLimits
	}
	return &Registry{
		connections: options.Connections,
		clock:       options.Clock,
		logger:      options.Logger,
		graceWindow: options.GraceWindow,
		limits:      options.Limits,
		metrics:     options.Metrics,
		sessions:    make(map[string]*session),
	}
}

// lock returns the session for key with its lock held, creating it if
// absent. Unless held, a session created here is armed for eviction
// immediately.
func (r *Registry) lock(key string, held bool) *session {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		s = &session{
			key:         key,
			buffer:      NewScrollback(r.limits),
			subscribers: make(map[string]struct{}),
		}
		r.sessions[key] = s
		r.metrics.sessionCreated()
		r.logger.Debug("session created", "session", key)
	}
	s.mu.Lock()
	r.mu.Unlock()

	if !ok && !held {
		r.scheduleEvictionLocked(s)
	}
	return s
}

// lookup returns the existing session for key with its lock held.
func (r *Registry) lookup(key string) (*session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	s.mu.Lock()
	r.mu.Unlock()
	return s, true
}

// Subscribe adds connectionID to the session for key, creating the
// session if needed. A non-empty scrollback is sent to that connection
// alone as one history event, before any live chunk can reach it.
func (r *Registry) Subscribe(connectionID, key string) {
	s := r.lock(key, true)
	defer s.mu.Unlock()

	r.cancelEvictionLocked(s)
	if _, ok := s.subscribers[connectionID]; !ok {
		s.subscribers[connectionID] = struct{}{}
		r.metrics.subscribersChanged(1)
	}

	if s.buffer.Len() > 0 {
		r.pushLocked(s, connectionID, Event{
			Type:      EventHistory,
			Session:   key,
			Data:      s.buffer.String(),
			Timestamp: r.clock.Now(),
		})
	}

	r.logger.Info("viewer subscribed",
		"session", key,
		"connection", connectionID,
		"subscribers", len(s.subscribers),
	)
}

// Unsubscribe removes connectionID from the session for key. When the
// last subscriber leaves, the grace window starts.
func (r *Registry) Unsubscribe(connectionID, key string) {
	s, ok := r.lookup(key)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	r.removeSubscriberLocked(s, connectionID)
}

// UnsubscribeAll removes connectionID from every session. Sessions left
// empty get the normal grace window, not an early eviction.
func (r *Registry) UnsubscribeAll(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.mu.Lock()
		r.removeSubscriberLocked(s, connectionID)
		s.mu.Unlock()
	}
}

func (r *Registry) removeSubscriberLocked(s *session, connectionID string) {
	if _, ok := s.subscribers[connectionID]; !ok {
		return
	}
	delete(s.subscribers, connectionID)
	r.metrics.subscribersChanged(-1)
	r.logger.Info("viewer unsubscribed",
		"session", s.key,
		"connection", connectionID,
		"subscribers", len(s.subscribers),
	)
	if len(s.subscribers) == 0 {
		r.scheduleEvictionLocked(s)
	}
}

// Attach binds source to the session for key and starts relaying its
// output. A "session started" chunk carrying the source's pid is
// appended before any real output. Attaching over a live source replaces
// the binding; the old source's remaining output still reaches the
// session. The session outlives the grace window until every attached
// source has exited.
func (r *Registry) Attach(key string, source Source) {
	s := r.lock(key, true)
	b := newBinding(source)
	s.binding = b
	s.running++
	s.exited = false
	s.exitCode = 0
	r.appendLocked(s, ChunkStarted, StartedText(b.pid))
	s.mu.Unlock()

	r.logger.Info("source attached", "session", key, "pid", b.pid)
	r.run(s, b)
}

// SendInput forwards text to the bound source's standard input and
// appends an echo of it to the session. The echo is recorded even when
// no source is bound or the write is dropped.
func (r *Registry) SendInput(key, text string) {
	s := r.lock(key, false)
	defer s.mu.Unlock()

	if b := s.binding; b != nil && b.input != nil {
		select {
		case b.input <- text:
		default:
			r.metrics.inputDropped()
			r.logger.Debug("input queue full, dropping write", "session", key, "bytes", len(text))
		}
	}
	r.appendLocked(s, ChunkInput, InputText(text))
}

// Broadcast appends text to the session for key as an output chunk and
// pushes it to every subscriber. A session with no subscribers still
// records the chunk.
func (r *Registry) Broadcast(key, text string) {
	s := r.lock(key, false)
	defer s.mu.Unlock()
	r.appendLocked(s, ChunkOutput, text)
}

// Clear discards the scrollback for key and pushes a clear-viewport
// chunk to current subscribers. The chunk is not recorded. Clearing an
// absent session does nothing and reports false.
func (r *Registry) Clear(key string) bool {
	s, ok := r.lookup(key)
	if !ok {
		return false
	}
	defer s.mu.Unlock()

	s.buffer.Reset()
	r.fanOutLocked(s, Event{
		Type:      EventData,
		Session:   key,
		Data:      ClearText,
		Timestamp: r.clock.Now(),
	})
	r.logger.Info("session cleared", "session", key)
	return true
}

// Describe returns a snapshot of the session for key.
func (r *Registry) Describe(key string) (SessionInfo, bool) {
	s, ok := r.lookup(key)
	if !ok {
		return SessionInfo{}, false
	}
	defer s.mu.Unlock()
	return s.infoLocked(), true
}

// DescribeAll returns a snapshot of every session, sorted by key.
func (r *Registry) DescribeAll() []SessionInfo {
	r.mu.Lock()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		s.mu.Lock()
		infos = append(infos, s.infoLocked())
		s.mu.Unlock()
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// History returns the concatenated scrollback for key.
func (r *Registry) History(key string) (string, bool) {
	s, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	defer s.mu.Unlock()
	return s.buffer.String(), true
}

// Close stops every pending eviction timer. Sessions stay readable but
// are never evicted afterwards. Bound sources are not touched.
func (r *Registry) Close() {
	r.closed.Store(true)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.mu.Lock()
		r.cancelEvictionLocked(s)
		s.mu.Unlock()
	}
}

func (s *session) infoLocked() SessionInfo {
	info := SessionInfo{
		Key:         s.key,
		Subscribers: len(s.subscribers),
		BufferBytes: s.buffer.Len(),
		Chunks:      s.buffer.Chunks(),
		Exited:      s.exited,
		ExitCode:    s.exitCode,
	}
	if s.binding != nil {
		info.Attached = true
		info.PID = s.binding.pid
	}
	return info
}

// appendLocked records one chunk and pushes it to every subscriber.
func (r *Registry) appendLocked(s *session, kind ChunkKind, text string) {
	now := r.clock.Now()
	trimmed := s.buffer.Append(Chunk{Kind: kind, Text: text, Timestamp: now})
	r.metrics.chunkAppended(kind, trimmed)
	if trimmed > 0 {
		r.logger.Debug("scrollback trimmed", "session", s.key, "bytes", trimmed)
	}
	r.fanOutLocked(s, Event{
		Type:      EventData,
		Session:   s.key,
		Data:      text,
		Timestamp: now,
	})
}

func (r *Registry) fanOutLocked(s *session, event Event) {
	for id := range s.subscribers {
		r.pushLocked(s, id, event)
	}
}

// pushLocked resolves id at the moment of the push. A connection that
// has gone away is skipped; it is removed from the session when its
// transport calls UnsubscribeAll.
func (r *Registry) pushLocked(s *session, id string, event Event) {
	conn, ok := r.connections.Lookup(id)
	if !ok {
		r.metrics.pushSkipped()
		r.logger.Debug("skipping push to unknown connection", "session", s.key, "connection", id)
		return
	}
	if !conn.Send(event) {
		r.metrics.pushSkipped()
		r.logger.Debug("skipping push to closed connection", "session", s.key, "connection", id)
	}
}

func (r *Registry) scheduleEvictionLocked(s *session) {
	r.cancelEvictionLocked(s)
	if r.closed.Load() {
		return
	}
	generation := s.generation
	s.eviction = r.clock.AfterFunc(r.graceWindow, func() {
		r.evict(s, generation)
	})
}

func (r *Registry) cancelEvictionLocked(s *session) {
	if s.eviction != nil {
		s.eviction.Stop()
		s.eviction = nil
	}
	s.generation++
}

// evict runs when a grace timer fires. Whether the session goes is
// decided now, not when the timer was set.
func (r *Registry) evict(s *session, generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.key] != s {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return
	}
	s.eviction = nil
	if len(s.subscribers) > 0 {
		return
	}
	if s.running > 0 {
		r.logger.Debug("grace window elapsed, retaining session with a running source", "session", s.key)
		return
	}

	delete(r.sessions, s.key)
	r.metrics.sessionEvicted()
	r.logger.Info("session evicted",
		"session", s.key,
		"buffer_bytes", s.buffer.Len(),
		"grace_window", r.graceWindow,
	)
}

type emptyDirectory struct{}

func (emptyDirectory) Lookup(string) (Connection, bool) { return nil, false }
