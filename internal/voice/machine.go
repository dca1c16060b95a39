// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice implements long-press push-to-talk capture.
//
// A Machine arbitrates key-down, key-up, its debounce timer and the
// recognizer's result. A short press of the trigger key is an ordinary
// keystroke; holding it past the threshold records speech and submits the
// transcript as a user message.
package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the capture state.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateRecording
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	default:
		return "idle"
	}
}

// KeyEvent is a press or release of a key.
type KeyEvent struct {
	// Key names the key, e.g. "space".
	Key string

	// Repeat is set for auto-repeat presses while the key is held.
	Repeat bool

	// Focused reports whether a text-entry field held focus.
	Focused bool
}

// Disposition tells the host what to do with a key event.
type Disposition struct {
	// SuppressDefault asks the host not to deliver the event to the focused
	// field.
	SuppressDefault bool
}

// Sink receives transcripts. It may block for the length of an exchange.
type Sink func(ctx context.Context, text string, quality model.Quality) error

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the capture timings.
type Config struct {
	// TriggerKey is the push-to-talk key (default: "space")
	TriggerKey string

	// LongPress is the hold time that starts a capture (default: 300ms)
	LongPress time.Duration

	// CueDelay separates the begin cue from the listener start (default: 150ms)
	CueDelay time.Duration

	// Locale is passed to the recognizer (default: "en-US")
	Locale string
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		TriggerKey: "space",
		LongPress:  300 * time.Millisecond,
		CueDelay:   150 * time.Millisecond,
		Locale:     "en-US",
	}
}

// Options wires a Machine to its collaborators. Recognizer and Sink are
// required.
type Options struct {
	Config     Config
	Recognizer Recognizer
	Sink       Sink
	Clock      Clock
	Cue        Cue
	Logger     *zap.Logger

	// OnError receives capture failures and rejected transcripts.
	OnError func(error)

	// OnState is called after each state change.
	OnState func(State)
}

// =============================================================================
// MACHINE
// =============================================================================

// Machine is the push-to-talk state machine.
//
// All inputs are serialised under one mutex. Each activation gets a new
// generation number; timer callbacks and listener results from an older
// generation are ignored. Cues, listener calls and callbacks run after the
// mutex is released.
type Machine struct {
	cfg        Config
	recognizer Recognizer
	sink       Sink
	clock      Clock
	cue        Cue
	logger     *zap.Logger
	onError    func(error)
	onState    func(State)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	focused   bool
	gen       uint64
	timer     Timer
	starting  bool
	stopAsked bool
	listener  Listener
	stopL     context.CancelFunc
	closed    bool
}

// NewMachine creates a machine in the idle state.
func NewMachine(opts Options) *Machine {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.TriggerKey == "" {
		cfg.TriggerKey = def.TriggerKey
	}
	if cfg.LongPress <= 0 {
		cfg.LongPress = def.LongPress
	}
	if cfg.CueDelay < 0 {
		cfg.CueDelay = 0
	}
	if cfg.Locale == "" {
		cfg.Locale = def.Locale
	}

	m := &Machine{
		cfg:        cfg,
		recognizer: opts.Recognizer,
		sink:       opts.Sink,
		clock:      opts.Clock,
		cue:        opts.Cue,
		logger:     opts.Logger,
		onError:    opts.OnError,
		onState:    opts.OnState,
	}
	if m.clock == nil {
		m.clock = SystemClock{}
	}
	if m.cue == nil {
		m.cue = NoCue{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.With(zap.String("component", "voice"))
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// State returns the current capture state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TriggerKey returns the configured push-to-talk key.
func (m *Machine) TriggerKey() string {
	return m.cfg.TriggerKey
}

// KeyDown handles a press of any key.
func (m *Machine) KeyDown(ev KeyEvent) Disposition {
	if ev.Key != m.cfg.TriggerKey {
		return Disposition{}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Disposition{}
	}
	switch m.state {
	case StateIdle:
		m.gen++
		gen := m.gen
		m.focused = ev.Focused
		m.timer = m.clock.AfterFunc(m.cfg.LongPress, func() { m.armedTimeout(gen) })
		m.state = StateArmed
		m.mu.Unlock()
		m.notify(StateArmed)
		return Disposition{}

	case StateArmed:
		// Auto-repeat while the threshold has not elapsed.
		suppress := ev.Repeat && m.focused
		m.mu.Unlock()
		return Disposition{SuppressDefault: suppress}

	default:
		suppress := m.focused
		m.mu.Unlock()
		return Disposition{SuppressDefault: suppress}
	}
}

// KeyUp handles a release of any key.
func (m *Machine) KeyUp(ev KeyEvent) Disposition {
	if ev.Key != m.cfg.TriggerKey {
		return Disposition{}
	}

	m.mu.Lock()
	switch m.state {
	case StateArmed:
		m.stopTimerLocked()
		m.gen++
		m.state = StateIdle
		m.mu.Unlock()
		m.notify(StateIdle)
		return Disposition{}

	case StateRecording:
		switch {
		case m.listener != nil:
			if m.stopAsked {
				m.mu.Unlock()
				break
			}
			m.stopAsked = true
			l := m.listener
			m.mu.Unlock()
			m.logger.Debug("stopping listener")
			l.Stop()

		case m.starting:
			// The recognizer is starting; stop it once it returns.
			m.stopAsked = true
			m.mu.Unlock()

		default:
			// Released during the cue delay, before any listener exists.
			m.stopTimerLocked()
			m.gen++
			m.state = StateIdle
			m.mu.Unlock()
			m.cue.End()
			m.notify(StateIdle)
		}
		return Disposition{SuppressDefault: true}

	default:
		m.mu.Unlock()
		return Disposition{}
	}
}

// Close aborts any capture and waits for pending transcript submissions.
func (m *Machine) Close() {
	m.mu.Lock()
	m.stopTimerLocked()
	m.gen++
	m.state = StateIdle
	m.listener = nil
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// =============================================================================
// INTERNAL TRANSITIONS
// =============================================================================

func (m *Machine) armedTimeout(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateArmed {
		m.mu.Unlock()
		return
	}
	m.state = StateRecording
	m.stopAsked = false
	m.timer = m.clock.AfterFunc(m.cfg.CueDelay, func() { m.startListener(gen) })
	m.mu.Unlock()

	m.logger.Debug("long press detected")
	m.cue.Begin()
	m.notify(StateRecording)
}

func (m *Machine) startListener(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateRecording || m.listener != nil || m.starting {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.starting = true
	ctx, cancel := context.WithCancel(m.ctx)
	m.mu.Unlock()

	l, err := m.recognizer.Start(ctx, m.cfg.Locale, func(res Result) { m.finish(gen, res) })

	m.mu.Lock()
	m.starting = false
	if err != nil {
		cancel()
		stale := gen != m.gen
		if !stale {
			m.gen++
			m.state = StateIdle
		}
		m.mu.Unlock()
		if stale {
			return
		}
		m.logger.Warn("listener start failed", zap.Error(err))
		m.cue.End()
		m.notify(StateIdle)
		m.report(&CaptureError{Op: OpStart, Err: err})
		return
	}
	if gen != m.gen {
		// Aborted while starting.
		m.mu.Unlock()
		cancel()
		return
	}
	m.listener = l
	m.stopL = cancel
	stop := m.stopAsked
	m.mu.Unlock()

	m.logger.Debug("listener started", zap.String("locale", m.cfg.Locale))
	if stop {
		l.Stop()
	}
}

func (m *Machine) finish(gen uint64, res Result) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateRecording {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.state = StateIdle
	m.listener = nil
	cancel := m.stopL
	m.stopL = nil

	text := NormalizeTranscript(res.Transcript)
	// Counted under m.mu; Close sets closed under the same lock.
	submit := res.Err == nil && text != "" && m.sink != nil && !m.closed
	if submit {
		m.wg.Add(1)
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.cue.End()
	m.notify(StateIdle)

	if res.Err != nil {
		m.logger.Warn("listener failed", zap.Error(res.Err))
		m.report(&CaptureError{Op: OpListen, Err: res.Err})
		return
	}
	if text == "" {
		m.logger.Debug("empty transcript")
		return
	}
	if !submit {
		return
	}

	go func() {
		defer m.wg.Done()
		if err := m.sink(m.ctx, text, model.QualityBrief); err != nil {
			m.report(&CaptureError{Op: OpSubmit, Err: err})
		}
	}()
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) notify(s State) {
	if m.onState != nil {
		m.onState(s)
	}
}

func (m *Machine) report(err error) {
	if m.onError != nil {
		m.onError(err)
	}
}

// NormalizeTranscript converts a transcript to NFC and collapses runs of
// whitespace.
func NormalizeTranscript(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
