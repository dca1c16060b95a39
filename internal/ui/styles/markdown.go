// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Glamour standard style names.
const (
	MarkdownDark  = "dark"
	MarkdownLight = "light"
	MarkdownPlain = "notty"
)

// MarkdownStyleFor returns the glamour style matching the theme.
func MarkdownStyleFor(t *Theme) string {
	if t == nil || t.IsDark {
		return MarkdownDark
	}
	return MarkdownLight
}

// Markdown renders answers with glamour. Renderers are built lazily per wrap
// width since the viewport width changes with the window.
type Markdown struct {
	style string

	mu        sync.Mutex
	width     int
	renderer  *glamour.TermRenderer
	lastError error
}

// NewMarkdown creates a renderer for a glamour standard style.
func NewMarkdown(style string) *Markdown {
	if style == "" {
		style = MarkdownDark
	}
	return &Markdown{style: style}
}

// Render renders md wrapped to width. On failure the source is returned as is.
func (m *Markdown) Render(md string, width int) string {
	if width < 20 {
		width = 20
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renderer == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.lastError = err
			return md
		}
		m.renderer = r
		m.width = width
	}

	out, err := m.renderer.Render(md)
	if err != nil {
		m.lastError = err
		return md
	}
	return strings.Trim(out, "\n")
}

// Err returns the most recent rendering failure.
func (m *Markdown) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}
