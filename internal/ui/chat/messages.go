// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/parley/internal/document"
	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/voice"
)

// =============================================================================
// MESSAGES FROM COLLABORATORS
// =============================================================================

// LogMsg delivers a conversation snapshot.
type LogMsg struct {
	Log model.Log
}

// CompletionMsg reports a finished exchange.
type CompletionMsg struct {
	Completion exchange.Completion
}

// SessionMsg reports a new document session, or nil after a clear.
type SessionMsg struct {
	Session *document.Session
}

// VoiceStateMsg reports a push-to-talk state change.
type VoiceStateMsg struct {
	State voice.State
}

// VoiceErrorMsg reports a failed capture or a rejected transcript.
type VoiceErrorMsg struct {
	Err error
}

// TriggerReleasedMsg reports an inferred release of the trigger key.
type TriggerReleasedMsg struct {
	Event voice.KeyEvent
}

// ModelChangedMsg reports a model switch after a config reload.
type ModelChangedMsg struct {
	Name string
}

// =============================================================================
// INTERNAL COMMAND RESULTS
// =============================================================================

type submitDoneMsg struct {
	err error
}

type uploadDoneMsg struct {
	name    string
	session *document.Session
	err     error
}

type exportDoneMsg struct {
	path string
	err  error
}
