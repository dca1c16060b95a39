// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/parley/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(styles.AppearanceDark)
}

func TestHeader_ModeBadge(t *testing.T) {
	h := NewHeader(testTheme())
	assert.Equal(t, "CHAT", h.ModeBadge())

	h.DocName = "report.pdf"
	assert.Equal(t, "DOC: report.pdf", h.ModeBadge())

	h.DocName = strings.Repeat("文", 40) + ".pdf"
	badge := h.ModeBadge()
	assert.True(t, strings.HasSuffix(badge, "…"))
	assert.LessOrEqual(t, lipgloss.Width(strings.TrimPrefix(badge, "DOC: ")), maxDocNameWidth)
}

func TestHeader_View(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Header)
		want  []string
		avoid []string
	}{
		{
			name:  "chat",
			setup: func(h *Header) { h.ModelName = "gpt-4o" },
			want:  []string{"parley", "gpt-4o", "CHAT"},
			avoid: []string{"DEEP", "REC", "UPLOADING"},
		},
		{
			name: "document deep recording",
			setup: func(h *Header) {
				h.DocName = "a.pdf"
				h.Deep = true
				h.Capture = CaptureRecording
			},
			want:  []string{"DOC: a.pdf", "DEEP", "REC"},
			avoid: []string{"CHAT"},
		},
		{
			name:  "armed uploading",
			setup: func(h *Header) { h.Capture = CaptureArmed; h.Uploading = true },
			want:  []string{"HOLD", "UPLOADING"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHeader(testTheme())
			h.Width = 100
			tc.setup(h)
			out := h.View()
			for _, s := range tc.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tc.avoid {
				assert.NotContains(t, out, s)
			}
			assert.Equal(t, 100, lipgloss.Width(out))
		})
	}
}

func TestNotice(t *testing.T) {
	a := NewNotice(NoticeInfo, "hello")
	b := NewNotice(NoticeError, "boom")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, DefaultNoticeDuration, a.Duration)

	assert.Contains(t, RenderNotice(testTheme(), a, 80), "[i] hello")
	assert.Contains(t, RenderNotice(testTheme(), b, 80), "[X] boom")

	long := NewNotice(NoticeWarning, strings.Repeat("x", 200))
	assert.LessOrEqual(t, lipgloss.Width(RenderNotice(testTheme(), long, 40)), 40)
}

func TestNotice_ExpireCmd(t *testing.T) {
	n := NewNotice(NoticeInfo, "x")
	n.Duration = 1
	msg := n.ExpireCmd()()
	assert.Equal(t, NoticeExpiredMsg{ID: n.ID}, msg)
}
