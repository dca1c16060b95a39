// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/parley/internal/document"
	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/voice"
)

// DefaultSnapshotRate caps how often streamed snapshots repaint the screen.
const DefaultSnapshotRate = 30

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards events from background goroutines to the program.
//
// Posting never blocks, so collaborators may post while holding their own
// locks or from inside Update. Messages are delivered in posting order.
// Log snapshots are coalesced: under the rate limit only the newest pending
// snapshot is delivered, and a completion always flushes it first. While the
// program is not draining the queue, a snapshot or voice state replaces a
// queued message of the same kind at the tail, so the queue only grows with
// discrete events.
type Bridge struct {
	limiter *rate.Limiter

	mu        sync.Mutex
	queue     []tea.Msg
	latest    *model.Log
	scheduled bool
	timer     *time.Timer
	closed    bool

	wake chan struct{}
}

// NewBridge creates a bridge that delivers at most perSecond snapshots per
// second. A non-positive rate disables the limit.
func NewBridge(perSecond float64) *Bridge {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Bridge{
		limiter: rate.NewLimiter(limit, 1),
		wake:    make(chan struct{}, 1),
	}
}

// Post queues msg for delivery.
func (b *Bridge) Post(msg tea.Msg) {
	b.mu.Lock()
	b.enqueueLocked(msg)
	b.mu.Unlock()
}

// PublishLog queues a snapshot, replacing any snapshot not yet delivered.
func (b *Bridge) PublishLog(l model.Log) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.latest = &l
	if b.scheduled {
		return
	}

	delay := b.limiter.Reserve().Delay()
	if delay <= 0 {
		b.flushLocked()
		return
	}
	b.scheduled = true
	b.timer = time.AfterFunc(delay, b.flushScheduled)
}

// PublishCompletion flushes the pending snapshot and queues the completion.
func (b *Bridge) PublishCompletion(done exchange.Completion) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
	b.enqueueLocked(CompletionMsg{Completion: done})
}

// PublishSession queues a document session change.
func (b *Bridge) PublishSession(s *document.Session) {
	b.Post(SessionMsg{Session: s})
}

// PublishVoiceState queues a push-to-talk state change.
func (b *Bridge) PublishVoiceState(s voice.State) {
	b.Post(VoiceStateMsg{State: s})
}

// PublishVoiceError queues a capture failure.
func (b *Bridge) PublishVoiceError(err error) {
	b.Post(VoiceErrorMsg{Err: err})
}

// PublishRelease queues an inferred trigger release.
func (b *Bridge) PublishRelease(ev voice.KeyEvent) {
	b.Post(TriggerReleasedMsg{Event: ev})
}

// Run delivers queued messages to s until ctx is done.
func (b *Bridge) Run(ctx context.Context, s Sender) error {
	defer b.close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.wake:
		}

		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		b.mu.Unlock()

		for _, msg := range batch {
			if ctx.Err() != nil {
				return nil
			}
			s.Send(msg)
		}
	}
}

func (b *Bridge) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	b.queue = nil
	b.latest = nil
}

func (b *Bridge) flushScheduled() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scheduled = false
	b.flushLocked()
}

func (b *Bridge) flushLocked() {
	if b.latest == nil {
		return
	}
	l := *b.latest
	b.latest = nil
	b.enqueueLocked(LogMsg{Log: l})
}

func (b *Bridge) enqueueLocked(msg tea.Msg) {
	if b.closed {
		return
	}
	if n := len(b.queue); n > 0 && supersedes(msg, b.queue[n-1]) {
		b.queue[n-1] = msg
	} else {
		b.queue = append(b.queue, msg)
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// supersedes reports whether next makes a queued prev redundant.
func supersedes(next, prev tea.Msg) bool {
	switch next.(type) {
	case LogMsg:
		_, ok := prev.(LogMsg)
		return ok
	case VoiceStateMsg:
		_, ok := prev.(VoiceStateMsg)
		return ok
	}
	return false
}
