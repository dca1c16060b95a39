// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package document tracks the uploaded document that grounds the conversation.
package document

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/jeranaias/parley/internal/backend"
)

// =============================================================================
// TYPES
// =============================================================================

// State is the lifecycle state of the document session.
type State int

const (
	StateNone State = iota
	StateUploading
	StateActive
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUploading:
		return "uploading"
	case StateActive:
		return "active"
	default:
		return "none"
	}
}

// Mode selects how the next exchange is answered.
type Mode int

const (
	// ModeFreeform streams a general chat answer.
	ModeFreeform Mode = iota
	// ModeGrounded answers from the active document.
	ModeGrounded
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	if m == ModeGrounded {
		return "grounded"
	}
	return "freeform"
}

// Session describes a live server-side document index.
type Session struct {
	ID         string
	SourceName string
	Size       int64
	UploadedAt time.Time
}

// Uploader sends a document to the service for indexing.
type Uploader interface {
	UploadDocument(ctx context.Context, r backend.UploadRequest) (*backend.UploadResult, error)
}

// =============================================================================
// MANAGER
// =============================================================================

// Config holds configuration for the document manager.
type Config struct {
	// MaxUploadBytes rejects larger files before upload (default: 25 MiB)
	MaxUploadBytes int64
}

// DefaultConfig returns the default document configuration.
func DefaultConfig() Config {
	return Config{MaxUploadBytes: 25 << 20}
}

// Manager owns the single document session.
//
// States move NONE -> UPLOADING -> ACTIVE -> NONE. A previously active
// session stays queryable while a replacement uploads; a failed upload
// destroys it. Only successful uploads and explicit clears notify the
// session-change hook.
type Manager struct {
	mu       sync.Mutex
	state    State
	session  *Session
	uploader Uploader
	maxBytes int64
	logger   *zap.Logger

	onChange func(*Session)
}

// NewManager creates a document manager.
func NewManager(uploader Uploader, cfg Config, logger *zap.Logger) *Manager {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		uploader: uploader,
		maxBytes: cfg.MaxUploadBytes,
		logger:   logger.With(zap.String("component", "document")),
	}
}

// OnSessionChange registers fn to run after a session is created or cleared.
// fn receives nil on clear.
func (m *Manager) OnSessionChange(fn func(*Session)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Mode returns ModeGrounded while a session is live.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		return ModeGrounded
	}
	return ModeFreeform
}

// Current returns a copy of the live session.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Upload validates and uploads the PDF at path.
//
// Validation failures return an *UploadError without touching the state.
// A second call while an upload is in flight returns ErrUploadInProgress.
func (m *Manager) Upload(ctx context.Context, path string) (*Session, error) {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, &UploadError{Reason: ReasonUnreadable, Name: name, Cause: err}
	}
	if info.IsDir() {
		return nil, &UploadError{Reason: ReasonUnreadable, Name: name, Cause: fmt.Errorf("is a directory")}
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return nil, &UploadError{Reason: ReasonNotPDF, Name: name}
	}
	if info.Size() > m.maxBytes {
		return nil, &UploadError{
			Reason: ReasonTooLarge,
			Name:   name,
			Cause:  fmt.Errorf("%d bytes exceeds limit of %d", info.Size(), m.maxBytes),
		}
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, &UploadError{Reason: ReasonUnreadable, Name: name, Cause: err}
	}
	if !mt.Is("application/pdf") {
		return nil, &UploadError{Reason: ReasonNotPDF, Name: name, Cause: fmt.Errorf("detected %s", mt.String())}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &UploadError{Reason: ReasonUnreadable, Name: name, Cause: err}
	}
	defer f.Close()

	return m.UploadReader(ctx, name, info.Size(), f)
}

// UploadReader uploads an already opened document. The caller is responsible
// for validating the content.
func (m *Manager) UploadReader(ctx context.Context, name string, size int64, r io.Reader) (*Session, error) {
	m.mu.Lock()
	if m.state == StateUploading {
		m.mu.Unlock()
		return nil, ErrUploadInProgress
	}
	m.state = StateUploading
	m.mu.Unlock()

	m.logger.Info("uploading document", zap.String("file", name), zap.Int64("bytes", size))

	res, err := m.uploader.UploadDocument(ctx, backend.UploadRequest{Filename: name, Body: r})
	if err != nil {
		m.mu.Lock()
		m.state = StateNone
		m.session = nil
		m.mu.Unlock()

		m.logger.Warn("upload failed", zap.String("file", name), zap.Error(err))
		return nil, &UploadError{Reason: ReasonTransport, Name: name, Cause: err}
	}

	sess := &Session{
		ID:         res.SessionID,
		SourceName: name,
		Size:       size,
		UploadedAt: time.Now(),
	}

	m.mu.Lock()
	m.state = StateActive
	m.session = sess
	hook := m.onChange
	m.mu.Unlock()

	m.logger.Info("document session active", zap.String("session_id", sess.ID), zap.String("file", name))
	if hook != nil {
		cp := *sess
		hook(&cp)
	}

	cp := *sess
	return &cp, nil
}

// Clear destroys the active session and reports whether one existed.
// Clearing during an upload is refused.
func (m *Manager) Clear() bool {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return false
	}
	id := m.session.ID
	m.state = StateNone
	m.session = nil
	hook := m.onChange
	m.mu.Unlock()

	m.logger.Info("document session cleared", zap.String("session_id", id))
	if hook != nil {
		hook(nil)
	}
	return true
}
