// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the parley TUI.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// CaptureIndicator mirrors the push-to-talk state shown in the header.
type CaptureIndicator int

const (
	CaptureIdle CaptureIndicator = iota
	CaptureArmed
	CaptureRecording
)

// maxDocNameWidth bounds the document badge in cells.
const maxDocNameWidth = 32

// Header is the single-line title bar.
type Header struct {
	Title     string
	ModelName string
	Width     int

	// DocName is the active document; empty means freeform chat.
	DocName   string
	Uploading bool
	Deep      bool
	Capture   CaptureIndicator

	theme *styles.Theme
}

// NewHeader creates a header with default values.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{
		Title: "parley",
		Width: 80,
		theme: theme,
	}
}

// ModeBadge returns the unstyled mode label.
func (h *Header) ModeBadge() string {
	if h.DocName == "" {
		return "CHAT"
	}
	return "DOC: " + runewidth.Truncate(h.DocName, maxDocNameWidth, "…")
}

// View renders the header.
func (h *Header) View() string {
	t := h.theme

	left := []string{t.HeaderBrand.Render(h.Title)}
	if h.ModelName != "" {
		left = append(left, t.HeaderModel.Render(h.ModelName))
	}

	var badges []string
	if h.DocName == "" {
		badges = append(badges, t.BadgeChat.Render(h.ModeBadge()))
	} else {
		badges = append(badges, t.BadgeDoc.Render(h.ModeBadge()))
	}
	if h.Uploading {
		badges = append(badges, t.BadgeUpload.Render("UPLOADING"))
	}
	if h.Deep {
		badges = append(badges, t.BadgeDeep.Render("DEEP"))
	}
	switch h.Capture {
	case CaptureArmed:
		badges = append(badges, t.BadgeArmed.Render("HOLD"))
	case CaptureRecording:
		badges = append(badges, t.BadgeRec.Render("● REC"))
	}

	leftStr := strings.Join(left, " ")
	rightStr := strings.Join(badges, " ")

	width := h.Width
	if width < 20 {
		width = 20
	}
	inner := width - t.Header.GetHorizontalFrameSize()
	gap := inner - lipgloss.Width(leftStr) - lipgloss.Width(rightStr)
	if gap < 1 {
		gap = 1
	}

	return t.Header.Width(width).Render(leftStr + strings.Repeat(" ", gap) + rightStr)
}
