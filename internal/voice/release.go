// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"sync"
	"time"
)

// DefaultReleaseGap is the silence after which a held key counts as released.
const DefaultReleaseGap = 120 * time.Millisecond

// ReleaseDetector infers key releases for hosts that only report presses,
// such as terminals.
//
// While a key is held the terminal delivers auto-repeat presses; once they
// stop for longer than the gap the key is considered released. The first
// auto-repeat usually arrives later than the gap, so a hold is seen as a
// short press followed by a second, repeating press. The capture threshold
// then runs from the first repeat.
type ReleaseDetector struct {
	clock     Clock
	gap       time.Duration
	onRelease func(KeyEvent)

	mu    sync.Mutex
	held  bool
	last  KeyEvent
	gen   uint64
	timer Timer
}

// NewReleaseDetector creates a detector that calls onRelease from a timer
// goroutine when a press is not followed by another within gap.
func NewReleaseDetector(clock Clock, gap time.Duration, onRelease func(KeyEvent)) *ReleaseDetector {
	if clock == nil {
		clock = SystemClock{}
	}
	if gap <= 0 {
		gap = DefaultReleaseGap
	}
	return &ReleaseDetector{clock: clock, gap: gap, onRelease: onRelease}
}

// Press records a press of the watched key and returns it with Repeat set
// when the key was already held.
func (d *ReleaseDetector) Press(ev KeyEvent) KeyEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	ev.Repeat = d.held
	d.held = true
	d.last = ev
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.gap, func() { d.expire(gen) })
	return ev
}

// Interrupt reports that another key was pressed. Terminals stop repeating a
// held key when another is pressed, so a held key is released immediately;
// the release event is returned instead of passed to onRelease.
func (d *ReleaseDetector) Interrupt() (KeyEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.held {
		return KeyEvent{}, false
	}
	return d.releaseLocked(), true
}

// Held reports whether the watched key is considered held.
func (d *ReleaseDetector) Held() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.held
}

// Stop cancels a pending release without reporting it.
func (d *ReleaseDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.held = false
	d.gen++
}

func (d *ReleaseDetector) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.held {
		d.mu.Unlock()
		return
	}
	ev := d.releaseLocked()
	d.mu.Unlock()

	if d.onRelease != nil {
		d.onRelease(ev)
	}
}

func (d *ReleaseDetector) releaseLocked() KeyEvent {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.held = false
	d.gen++
	ev := d.last
	ev.Repeat = false
	return ev
}
