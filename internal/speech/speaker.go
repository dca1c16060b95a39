// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech reads finished answers aloud.
package speech

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/parley/internal/exchange"
)

// Mode selects which answers are spoken.
type Mode string

const (
	ModeOff    Mode = "off"
	ModeVoice  Mode = "voice"
	ModeAlways Mode = "always"
)

// Speaker plays text. Speak returns immediately; a new call preempts the
// text still playing.
type Speaker interface {
	Speak(text string)
	Stop()
}

// =============================================================================
// COMMAND SPEAKER
// =============================================================================

// CommandSpeaker pipes text to an external text-to-speech program such as
// say or espeak on its standard input.
type CommandSpeaker struct {
	argv   []string
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCommandSpeaker creates a speaker for argv.
func NewCommandSpeaker(argv []string, logger *zap.Logger) *CommandSpeaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandSpeaker{argv: argv, logger: logger.With(zap.String("component", "speech"))}
}

// Speak starts playback of text, stopping any current playback.
func (s *CommandSpeaker) Speak(text string) {
	text = strings.TrimSpace(text)
	if text == "" || len(s.argv) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Start(); err != nil {
		cancel()
		s.logger.Warn("speech command failed to start", zap.Error(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			s.logger.Warn("speech command failed", zap.Error(err))
		}
	}()
}

// Stop ends playback and waits for the program to exit.
func (s *CommandSpeaker) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// =============================================================================
// COMPLETION HOOK
// =============================================================================

// Announcer decides which completed exchanges are read aloud.
type Announcer struct {
	speaker Speaker

	mu   sync.RWMutex
	mode Mode
}

// NewAnnouncer creates an announcer.
func NewAnnouncer(speaker Speaker, mode Mode) *Announcer {
	return &Announcer{speaker: speaker, mode: mode}
}

// SetMode changes the mode for later completions.
func (a *Announcer) SetMode(mode Mode) {
	a.mu.Lock()
	a.mode = mode
	a.mu.Unlock()
}

// Mode returns the current mode.
func (a *Announcer) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// Observe is registered with exchange.Coordinator.OnComplete.
func (a *Announcer) Observe(done exchange.Completion) {
	if done.Discarded {
		return
	}
	switch a.Mode() {
	case ModeAlways:
	case ModeVoice:
		if done.Origin != exchange.OriginVoice {
			return
		}
	default:
		return
	}
	a.speaker.Speak(done.Turn.Content)
}
