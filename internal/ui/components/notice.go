// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// NOTICE TYPES
// =============================================================================

// NoticeKind selects the notice color and indicator.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

// DefaultNoticeDuration is how long a notice stays up unless dismissed.
const DefaultNoticeDuration = 5 * time.Second

var noticeSeq atomic.Int64

// Notice is a one-line, auto-dismissing message below the conversation.
type Notice struct {
	ID       int64
	Message  string
	Kind     NoticeKind
	Duration time.Duration
}

// NewNotice creates a notice with a fresh ID and the default duration.
func NewNotice(kind NoticeKind, message string) Notice {
	return Notice{
		ID:       noticeSeq.Add(1),
		Message:  message,
		Kind:     kind,
		Duration: DefaultNoticeDuration,
	}
}

// NoticeExpiredMsg asks the model to drop the notice with ID, if still shown.
type NoticeExpiredMsg struct {
	ID int64
}

// ExpireCmd fires NoticeExpiredMsg after the notice's duration.
func (n Notice) ExpireCmd() tea.Cmd {
	id := n.ID
	return tea.Tick(n.Duration, func(time.Time) tea.Msg {
		return NoticeExpiredMsg{ID: id}
	})
}

// =============================================================================
// NOTICE RENDERING
// =============================================================================

// RenderNotice renders n on a single line of at most width cells.
func RenderNotice(theme *styles.Theme, n Notice, width int) string {
	var text string
	switch n.Kind {
	case NoticeSuccess:
		text = styles.StatusIndicators.Success + " " + n.Message
	case NoticeWarning:
		text = styles.StatusIndicators.Warning + " " + n.Message
	case NoticeError:
		text = styles.StatusIndicators.Error + " " + n.Message
	default:
		text = styles.StatusIndicators.Info + " " + n.Message
	}

	if width > 4 {
		text = runewidth.Truncate(text, width-2, "…")
	}
	if n.Kind == NoticeError || n.Kind == NoticeWarning {
		return theme.NoticeError.Render(text)
	}
	return theme.Notice.Render(text)
}
