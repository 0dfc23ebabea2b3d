// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockAdvanceMovesNow(t *testing.T) {
	clock := Fake(epoch)
	clock.Advance(90 * time.Second)
	if got, want := clock.Now(), epoch.Add(90*time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestFakeClockAfterFuncFiresAtDeadline(t *testing.T) {
	clock := Fake(epoch)
	var fired atomic.Int32
	clock.AfterFunc(time.Minute, func() { fired.Add(1) })

	clock.Advance(59 * time.Second)
	if fired.Load() != 0 {
		t.Fatal("callback ran before its deadline")
	}
	clock.Advance(time.Second)
	if fired.Load() != 1 {
		t.Fatalf("callback ran %d times at deadline, want 1", fired.Load())
	}
	clock.Advance(time.Hour)
	if fired.Load() != 1 {
		t.Fatalf("one-shot callback ran %d times, want 1", fired.Load())
	}
}

func TestFakeClockStopPreventsCallback(t *testing.T) {
	clock := Fake(epoch)
	var fired atomic.Bool
	timer := clock.AfterFunc(time.Second, func() { fired.Store(true) })

	if !timer.Stop() {
		t.Fatal("Stop() on a pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop() returned true")
	}
	clock.Advance(time.Minute)
	if fired.Load() {
		t.Fatal("stopped timer fired")
	}
	if clock.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d after Stop, want 0", clock.PendingCount())
	}
}

func TestFakeClockCallbackMayScheduleTimers(t *testing.T) {
	clock := Fake(epoch)
	var second atomic.Bool
	clock.AfterFunc(time.Second, func() {
		clock.AfterFunc(time.Second, func() { second.Store(true) })
	})

	clock.Advance(time.Second)
	if second.Load() {
		t.Fatal("nested timer fired without further advance")
	}
	clock.Advance(time.Second)
	if !second.Load() {
		t.Fatal("nested timer did not fire")
	}
}

func TestFakeClockCallbacksRunInDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	var order []int
	clock.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	clock.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	clock.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	clock.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("callbacks fired in order %v, want [1 2 3]", order)
	}
}

func TestFakeClockTickerDropsUnreadTicks(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("expected a buffered tick")
	}
	select {
	case <-ticker.C:
		t.Fatal("expected surplus ticks to be dropped")
	default:
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	registered := make(chan struct{})
	go func() {
		clock.AfterFunc(time.Second, func() {})
		close(registered)
	}()
	clock.WaitForTimers(1)
	<-registered
	if got := clock.PendingCount(); got != 1 {
		t.Fatalf("PendingCount() = %d, want 1", got)
	}
}

func TestClockImplementations(t *testing.T) {
	var _ Clock = (*FakeClock)(nil)
	var _ Clock = Real()
}
