// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/gorilla/websocket"

	"github.com/NiroAgent/na-business-service-sub004/lib/clock"
	"github.com/NiroAgent/na-business-service-sub004/terminal"
)

// Conn is one websocket viewer. Send never blocks: events go into a
// bounded queue that the write pump drains.
type Conn struct {
	id      string
	ws      *websocket.Conn
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	pending *queue.Queue
	depth   int
	dropped uint64
	closed  bool

	// wake has capacity one and is signalled after every enqueue.
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newConn(id string, ws *websocket.Conn, depth int, logger *slog.Logger, metrics *Metrics) *Conn {
	return &Conn{
		id:      id,
		ws:      ws,
		logger:  logger,
		metrics: metrics,
		pending: queue.New(),
		depth:   depth,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// ID implements terminal.Connection.
func (c *Conn) ID() string { return c.id }

// Send implements terminal.Connection. When the queue is full the
// oldest queued data event is dropped; queued history events are kept.
func (c *Conn) Send(event terminal.Event) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if c.pending.Length() >= c.depth {
		c.dropOldestLocked()
	}
	c.pending.Add(event)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// Dropped returns how many events were discarded on overflow.
func (c *Conn) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close marks the connection closed and closes the socket. Safe to call
// more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.pending = queue.New()
		c.mu.Unlock()
		close(c.done)
		c.ws.Close()
	})
}

// dropOldestLocked discards the oldest queued event that is not
// history, so a slow viewer never receives live data whose scrollback
// was thrown away. A queue holding only history loses its oldest entry.
func (c *Conn) dropOldestLocked() {
	c.dropped++
	c.metrics.eventDropped()

	if c.pending.Peek().(terminal.Event).Type != terminal.EventHistory {
		c.pending.Remove()
		return
	}
	victim := 0
	for i := 1; i < c.pending.Length(); i++ {
		if c.pending.Get(i).(terminal.Event).Type != terminal.EventHistory {
			victim = i
			break
		}
	}
	kept := queue.New()
	for i := 0; c.pending.Length() > 0; i++ {
		event := c.pending.Remove()
		if i != victim {
			kept.Add(event)
		}
	}
	c.pending = kept
}

func (c *Conn) next() (terminal.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Length() == 0 {
		return terminal.Event{}, false
	}
	return c.pending.Remove().(terminal.Event), true
}

// writePump owns all writes to the socket. It returns, closing the
// connection, on the first write failure. Socket deadlines are wall
// clock; the clock only paces pings.
func (c *Conn) writePump(clk clock.Clock, writeTimeout, pingInterval time.Duration) {
	defer c.Close()

	var pings <-chan time.Time
	if pingInterval > 0 {
		ticker := clk.NewTicker(pingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case <-c.wake:
			for {
				event, ok := c.next()
				if !ok {
					break
				}
				c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.ws.WriteJSON(event); err != nil {
					c.logger.Debug("viewer write failed", "connection", c.id, "error", err)
					return
				}
			}
		case <-pings:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.logger.Debug("viewer ping failed", "connection", c.id, "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}
