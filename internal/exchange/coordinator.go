// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package exchange runs one question-and-answer exchange at a time against
// the service and owns the conversation log.
package exchange

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/parley/internal/backend"
	"github.com/jeranaias/parley/internal/document"
	"github.com/jeranaias/parley/internal/model"
)

// ApologyMessage replaces the assistant turn when an exchange fails.
const ApologyMessage = "Sorry, there was an error processing your message."

// ErrBusy is returned by Submit while another exchange is in flight.
var ErrBusy = errors.New("an exchange is already in progress")

// =============================================================================
// COLLABORATORS
// =============================================================================

// Transport performs the service calls.
type Transport interface {
	ChatStream(ctx context.Context, r backend.ChatRequest, callback backend.StreamCallback) error
	GroundedChat(ctx context.Context, r backend.GroundedRequest) (*backend.GroundedAnswer, error)
}

// Documents reports which mode the next exchange uses.
type Documents interface {
	Mode() document.Mode
	Current() (document.Session, bool)
}

// Origin records where an utterance came from.
type Origin int

const (
	OriginTyped Origin = iota
	OriginVoice
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	if o == OriginVoice {
		return "voice"
	}
	return "typed"
}

// Completion describes a finished exchange.
type Completion struct {
	// Turn is the terminal assistant turn.
	Turn model.Turn

	Mode    document.Mode
	Quality model.Quality
	Origin  Origin

	// Err is the transport failure, if the turn holds ApologyMessage.
	Err error

	// Discarded is set when the log was reset while the exchange was in
	// flight. Nothing from the exchange reached the log and Turn is empty.
	Discarded bool

	Elapsed time.Duration
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Config holds coordinator options.
type Config struct {
	// TopK is the number of retrieved chunks for grounded answers.
	TopK int
}

// Coordinator owns the conversation log and the single in-flight exchange.
//
// Log observers receive every new snapshot in mutation order; they are called
// while the coordinator's log lock is held and must not call back into the
// coordinator.
type Coordinator struct {
	transport Transport
	docs      Documents
	topK      int
	logger    *zap.Logger

	busy atomic.Bool

	mu     sync.Mutex
	log    model.Log
	epoch  uint64
	cancel context.CancelFunc

	obsMu      sync.RWMutex
	onLog      []func(model.Log)
	onComplete []func(Completion)
}

// New creates a coordinator with an empty log.
func New(transport Transport, docs Documents, cfg Config, logger *zap.Logger) *Coordinator {
	if cfg.TopK <= 0 {
		cfg.TopK = backend.DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		transport: transport,
		docs:      docs,
		topK:      cfg.TopK,
		logger:    logger.With(zap.String("component", "exchange")),
	}
}

// OnLog registers an observer for log snapshots.
func (c *Coordinator) OnLog(fn func(model.Log)) {
	c.obsMu.Lock()
	c.onLog = append(c.onLog, fn)
	c.obsMu.Unlock()
}

// OnComplete registers an observer for finished exchanges.
func (c *Coordinator) OnComplete(fn func(Completion)) {
	c.obsMu.Lock()
	c.onComplete = append(c.onComplete, fn)
	c.obsMu.Unlock()
}

// Log returns the current snapshot.
func (c *Coordinator) Log() model.Log {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log
}

// Busy reports whether an exchange is in flight.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// Reset clears the log. It is wired to document session changes.
//
// An exchange in flight is canceled and nothing it produces afterwards is
// merged into the cleared log.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.applyLocked(func(l model.Log) (model.Log, bool) { return l.Reset() })
}

func (c *Coordinator) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Submit runs one typed exchange. See SubmitFrom.
func (c *Coordinator) Submit(ctx context.Context, utterance string, quality model.Quality) error {
	return c.SubmitFrom(ctx, utterance, quality, OriginTyped)
}

// SubmitVoice runs one voice-originated exchange. Its signature matches
// voice.Sink.
func (c *Coordinator) SubmitVoice(ctx context.Context, utterance string, quality model.Quality) error {
	return c.SubmitFrom(ctx, utterance, quality, OriginVoice)
}

// SubmitFrom appends the utterance as a user turn and fills in the answer.
//
// Empty utterances are ignored. While another exchange is in flight it
// returns ErrBusy without touching the log. Transport failures are not
// returned: they end the exchange with ApologyMessage as the assistant turn
// and are reported through Completion.Err. Submit blocks until the exchange
// has finished.
func (c *Coordinator) SubmitFrom(ctx context.Context, utterance string, quality model.Quality, origin Origin) error {
	if strings.TrimSpace(utterance) == "" {
		return nil
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	start := time.Now()
	mode := c.docs.Mode()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	epoch := c.epoch
	c.cancel = cancel
	c.mu.Unlock()
	defer c.clearCancel(epoch)

	c.apply(epoch, func(l model.Log) (model.Log, bool) { return l.AppendUser(utterance) })

	var err error
	if mode == document.ModeGrounded {
		err = c.runGrounded(ctx, epoch, utterance)
	} else {
		err = c.runFreeform(ctx, epoch, quality)
	}

	done := Completion{
		Mode:    mode,
		Quality: quality,
		Origin:  origin,
		Err:     err,
	}
	if c.currentEpoch() != epoch {
		done.Discarded = true
		done.Elapsed = time.Since(start)
		c.logger.Debug("exchange discarded after reset",
			zap.Stringer("mode", mode),
			zap.Duration("elapsed", done.Elapsed))
		c.complete(done)
		return nil
	}

	if err != nil {
		c.logger.Warn("exchange failed",
			zap.Stringer("mode", mode),
			zap.Stringer("origin", origin),
			zap.Error(err))
		c.apply(epoch, func(l model.Log) (model.Log, bool) { return l.ReplaceWithError(ApologyMessage) })
	}

	done.Turn, _ = c.Log().Last()
	done.Elapsed = time.Since(start)
	c.logger.Debug("exchange complete",
		zap.Stringer("mode", mode),
		zap.Int("chars", len(done.Turn.Content)),
		zap.Duration("elapsed", done.Elapsed))
	c.complete(done)
	return nil
}

func (c *Coordinator) clearCancel(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch == epoch {
		c.cancel = nil
	}
}

func (c *Coordinator) runGrounded(ctx context.Context, epoch uint64, query string) error {
	sess, ok := c.docs.Current()
	if !ok {
		return errors.New("document session ended before the request")
	}

	ans, err := c.transport.GroundedChat(ctx, backend.GroundedRequest{
		SessionID: sess.ID,
		Query:     query,
		TopK:      c.topK,
	})
	if err != nil {
		return err
	}

	answer := ans.Answer
	c.apply(epoch, func(l model.Log) (model.Log, bool) { return l.CompleteAssistant(&answer) })
	return nil
}

func (c *Coordinator) runFreeform(ctx context.Context, epoch uint64, quality model.Quality) error {
	var history []model.Turn
	c.apply(epoch, func(l model.Log) (model.Log, bool) {
		next, changed := l.BeginAssistant()
		history = next.History()
		return next, changed
	})
	if history == nil {
		return context.Canceled
	}

	err := c.transport.ChatStream(ctx, backend.ChatRequest{
		History: history,
		Quality: quality,
	}, func(fragment string) {
		c.apply(epoch, func(l model.Log) (model.Log, bool) { return l.AppendFragment(fragment) })
	})
	if err != nil {
		return err
	}

	c.apply(epoch, func(l model.Log) (model.Log, bool) { return l.CompleteAssistant(nil) })
	return nil
}

// apply runs a reducer operation and publishes the new snapshot. Operations
// from an exchange that started before the last Reset are dropped.
func (c *Coordinator) apply(epoch uint64, op func(model.Log) (model.Log, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return
	}
	c.applyLocked(op)
}

func (c *Coordinator) applyLocked(op func(model.Log) (model.Log, bool)) {
	next, changed := op(c.log)
	if !changed {
		return
	}
	c.log = next

	c.obsMu.RLock()
	observers := c.onLog
	c.obsMu.RUnlock()
	for _, fn := range observers {
		fn(next)
	}
}

func (c *Coordinator) complete(done Completion) {
	c.obsMu.RLock()
	observers := c.onComplete
	c.obsMu.RUnlock()
	for _, fn := range observers {
		fn(done)
	}
}
