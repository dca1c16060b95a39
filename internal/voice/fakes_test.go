// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// MANUAL CLOCK
// =============================================================================

type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	done    bool
	stopped bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward, firing due timers in order on the calling
// goroutine.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.done || t.stopped || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.done = true
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
}

// pending returns the number of timers that have neither fired nor stopped.
func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done && !t.stopped {
			n++
		}
	}
	return n
}

// =============================================================================
// FAKE RECOGNIZER
// =============================================================================

type fakeRecognizer struct {
	mu        sync.Mutex
	locales   []string
	listeners []*fakeListener
	err       error

	// gate, when set, blocks Start until closed; entered is signalled first.
	gate    chan struct{}
	entered chan struct{}
}

func (r *fakeRecognizer) Start(ctx context.Context, locale string, onResult func(Result)) (Listener, error) {
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.locales = append(r.locales, locale)
	if r.err != nil {
		return nil, r.err
	}
	l := &fakeListener{ctx: ctx, onResult: onResult}
	r.listeners = append(r.listeners, l)
	return l, nil
}

func (r *fakeRecognizer) starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locales)
}

func (r *fakeRecognizer) listener(i int) *fakeListener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listeners[i]
}

type fakeListener struct {
	ctx      context.Context
	onResult func(Result)

	mu    sync.Mutex
	stops int
}

func (l *fakeListener) Stop() {
	l.mu.Lock()
	l.stops++
	l.mu.Unlock()
}

func (l *fakeListener) stopCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stops
}

func (l *fakeListener) deliver(res Result) {
	l.onResult(res)
}

// =============================================================================
// RECORDERS
// =============================================================================

type countingCue struct {
	mu           sync.Mutex
	begins, ends int
}

func (c *countingCue) Begin() {
	c.mu.Lock()
	c.begins++
	c.mu.Unlock()
}

func (c *countingCue) End() {
	c.mu.Lock()
	c.ends++
	c.mu.Unlock()
}

func (c *countingCue) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.begins, c.ends
}

type submission struct {
	text    string
	quality model.Quality
}

type sinkRecorder struct {
	mu     sync.Mutex
	got    []submission
	err    error
	errors []error
}

func (s *sinkRecorder) submit(_ context.Context, text string, q model.Quality) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, submission{text: text, quality: q})
	return s.err
}

func (s *sinkRecorder) onError(err error) {
	s.mu.Lock()
	s.errors = append(s.errors, err)
	s.mu.Unlock()
}

func (s *sinkRecorder) submissions() []submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]submission(nil), s.got...)
}

func (s *sinkRecorder) reported() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}
