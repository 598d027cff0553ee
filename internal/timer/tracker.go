// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_timer

import (
	"fmt"
	"sync"
	"time"
)

// Tracker accumulates active (non-paused) elapsed time across pause/resume
// cycles. Pure duration arithmetic, no I/O.
type Tracker struct {
	mu        sync.Mutex
	startTime time.Time
	pausedAt  time.Time
	pausedDur time.Duration
	active    bool
	paused    bool
	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{clock: time.Now}
}

// NewTrackerWithClock injects a clock, used by tests to drive time without
// sleeping.
func NewTrackerWithClock(clock func() time.Time) *Tracker {
	return &Tracker{clock: clock}
}

// Start begins timing from zero. Starting an already-active tracker restarts
// it.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = t.clock()
	t.pausedAt = time.Time{}
	t.pausedDur = 0
	t.active = true
	t.paused = false
}

// Pause stops the active interval. Errors if the tracker is not running.
func (t *Tracker) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return fmt.Errorf("tracker is not active")
	}
	if t.paused {
		return fmt.Errorf("tracker is already paused")
	}
	t.pausedAt = t.clock()
	t.paused = true
	return nil
}

// Resume ends the paused interval and returns the total paused duration in
// milliseconds. Errors if the tracker is not paused.
func (t *Tracker) Resume() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return 0, fmt.Errorf("tracker is not active")
	}
	if !t.paused {
		return 0, fmt.Errorf("tracker is not paused")
	}
	t.pausedDur += t.clock().Sub(t.pausedAt)
	t.pausedAt = time.Time{}
	t.paused = false
	return t.pausedDur.Milliseconds(), nil
}

// TotalDuration returns active elapsed time in milliseconds, excluding every
// paused interval. Live while running: a paused tracker reports the time up
// to the pause.
func (t *Tracker) TotalDuration() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startTime.IsZero() {
		return 0
	}
	end := t.clock()
	if t.paused {
		end = t.pausedAt
	}
	total := end.Sub(t.startTime) - t.pausedDur
	if total < 0 {
		total = 0
	}
	return total.Milliseconds()
}

// PausedDuration returns accumulated paused time in milliseconds, including
// the current pause when one is open.
func (t *Tracker) PausedDuration() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := t.pausedDur
	if t.paused {
		total += t.clock().Sub(t.pausedAt)
	}
	return total.Milliseconds()
}

// Reset zeroes start time, total and paused duration and clears both flags.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Time{}
	t.pausedAt = time.Time{}
	t.pausedDur = 0
	t.active = false
	t.paused = false
}

func (t *Tracker) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Tracker) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}
