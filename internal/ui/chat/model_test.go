// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/document"
	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/voice"
)

func noticeText(t *testing.T, m Model) (string, components.NoticeKind) {
	t.Helper()
	n, ok := m.Notice()
	require.True(t, ok, "expected a notice")
	return n.Message, n.Kind
}

// =============================================================================
// TYPED INPUT
// =============================================================================

func TestModel_EnterSubmitsWithCurrentQuality(t *testing.T) {
	h := newHarness(t, false)
	h.typeText("what is go?")

	h.run(h.send(enterKey))

	assert.Equal(t, []submission{{"what is go?", model.QualityBrief}}, h.ex.submits)
	assert.Empty(t, h.m.InputValue())
}

func TestModel_EmptyEnterDoesNothing(t *testing.T) {
	h := newHarness(t, false)
	h.typeText("   ")
	assert.Nil(t, h.send(enterKey))
	assert.Empty(t, h.ex.submits)
}

func TestModel_BusyKeepsInput(t *testing.T) {
	h := newHarness(t, false)
	h.ex.busy = true
	h.typeText("hello")

	h.send(enterKey)

	assert.Empty(t, h.ex.submits)
	assert.Equal(t, "hello", h.m.InputValue())
	msg, kind := noticeText(t, h.m)
	assert.Equal(t, components.NoticeWarning, kind)
	assert.Contains(t, msg, "Still answering")
}

func TestModel_RejectedSubmitShowsNotice(t *testing.T) {
	h := newHarness(t, false)
	h.ex.err = exchange.ErrBusy
	h.typeText("hi")

	h.run(h.send(enterKey))
	msg, _ := noticeText(t, h.m)
	assert.Contains(t, msg, "Still answering")
}

func TestModel_DeepToggle(t *testing.T) {
	h := newHarness(t, false)

	h.send(tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Equal(t, model.QualityDeep, h.m.Quality())
	assert.Contains(t, h.m.View(), "DEEP")

	h.typeText("explain")
	h.run(h.send(enterKey))
	require.Len(t, h.ex.submits, 1)
	assert.Equal(t, model.QualityDeep, h.ex.submits[0].quality)

	h.typeText("/deep")
	h.send(enterKey)
	assert.Equal(t, model.QualityBrief, h.m.Quality())
}

func TestModel_AltEnterInsertsNewline(t *testing.T) {
	h := newHarness(t, false)
	h.typeText("a")
	h.send(tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	h.typeText("b")

	assert.Equal(t, "a\nb", h.m.InputValue())
	assert.Empty(t, h.ex.submits)
}

func TestModel_BrowseMode(t *testing.T) {
	h := newHarness(t, false)

	h.send(escKey)
	h.typeText("x")
	assert.Empty(t, h.m.InputValue(), "keys do not reach a blurred input")

	h.send(runeKey('i'))
	h.typeText("y")
	assert.Equal(t, "y", h.m.InputValue())
}

func TestModel_CtrlCQuits(t *testing.T) {
	h := newHarness(t, false)
	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestModel_UploadSuccess(t *testing.T) {
	h := newHarness(t, false)
	h.typeText("/upload \"/tmp/report.pdf\"")

	h.run(h.send(enterKey))

	assert.Equal(t, []string{"/tmp/report.pdf"}, h.docs.uploads)
	msg, kind := noticeText(t, h.m)
	assert.Equal(t, components.NoticeSuccess, kind)
	assert.Equal(t, "Document ready: report.pdf", msg)
	assert.Contains(t, h.m.View(), "DOC: report.pdf")
}

func TestModel_UploadFailure(t *testing.T) {
	h := newHarness(t, false)
	h.docs.uploadErr = &document.UploadError{Reason: document.ReasonNotPDF, Name: "notes.txt"}
	h.typeText("/upload notes.txt")

	h.run(h.send(enterKey))

	msg, kind := noticeText(t, h.m)
	assert.Equal(t, components.NoticeError, kind)
	assert.Equal(t, "notes.txt is not a PDF file", msg)
	assert.Contains(t, h.m.View(), "CHAT")
}

func TestModel_UploadRefusedWhileBusy(t *testing.T) {
	h := newHarness(t, false)
	h.ex.busy = true
	h.typeText("/upload a.pdf")

	h.run(h.send(enterKey))

	assert.Empty(t, h.docs.uploads)
	msg, _ := noticeText(t, h.m)
	assert.Contains(t, msg, "Wait for the current answer")
}

func TestModel_ClearDocument(t *testing.T) {
	h := newHarness(t, false)

	h.send(tea.KeyMsg{Type: tea.KeyCtrlX})
	msg, _ := noticeText(t, h.m)
	assert.Equal(t, "No document to clear", msg)

	h.typeText("/upload a.pdf")
	h.run(h.send(enterKey))
	require.Equal(t, document.StateActive, h.docs.State())

	h.typeText("/clear")
	h.send(enterKey)
	msg, kind := noticeText(t, h.m)
	assert.Equal(t, components.NoticeSuccess, kind)
	assert.Contains(t, msg, "Document cleared")
	assert.Equal(t, document.StateNone, h.docs.State())
}

func TestModel_UnknownCommand(t *testing.T) {
	h := newHarness(t, false)
	h.typeText("/frobnicate now")
	h.send(enterKey)

	msg, kind := noticeText(t, h.m)
	assert.Equal(t, components.NoticeWarning, kind)
	assert.Contains(t, msg, "/frobnicate")
	assert.Empty(t, h.ex.submits)
}

func TestModel_Export(t *testing.T) {
	h := newHarness(t, false)

	h.typeText("/export")
	h.run(h.send(enterKey))
	msg, kind := noticeText(t, h.m)
	assert.Equal(t, components.NoticeWarning, kind)
	assert.Equal(t, "Nothing to export yet", msg)

	l, _ := model.NewLog().AppendUser("Hello")
	answer := "Hi there"
	l, _ = l.CompleteAssistant(&answer)
	h.send(LogMsg{Log: l})

	h.typeText("/export json")
	h.run(h.send(enterKey))
	msg, kind = noticeText(t, h.m)
	require.Equal(t, components.NoticeSuccess, kind, msg)
	path := strings.TrimPrefix(msg, "Saved ")
	assert.Equal(t, h.exportDir, filepath.Dir(path))
	assert.Equal(t, ".json", filepath.Ext(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"Hi there"`)

	h.typeText("/export pdf")
	h.send(enterKey)
	msg, _ = noticeText(t, h.m)
	assert.Contains(t, msg, "unknown export format")
}

func TestModel_ExportUsesConfiguredDir(t *testing.T) {
	config.ResetGlobalForTesting()
	t.Cleanup(config.ResetGlobalForTesting)
	dir := t.TempDir()
	cfg := config.Default()
	cfg.UI.ExportDir = dir
	config.SetGlobal(cfg, filepath.Join(dir, "config.toml"))

	h := newHarness(t, false)
	h.m.exportDir = ""
	l, _ := model.NewLog().AppendUser("Hello")
	answer := "Hi there"
	l, _ = l.CompleteAssistant(&answer)
	h.send(LogMsg{Log: l})

	h.typeText("/export")
	h.run(h.send(enterKey))
	msg, kind := noticeText(t, h.m)
	require.Equal(t, components.NoticeSuccess, kind, msg)
	assert.Equal(t, dir, filepath.Dir(strings.TrimPrefix(msg, "Saved ")))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
		ok   bool
	}{
		{"hello", Command{}, false},
		{"/clear", Command{Name: "/clear"}, true},
		{"  /UPLOAD  my file.pdf ", Command{Name: "/upload", Args: "my file.pdf"}, true},
	}
	for _, tc := range tests {
		got, ok := ParseCommand(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

// =============================================================================
// NOTICES
// =============================================================================

func TestModel_NoticeDismissal(t *testing.T) {
	h := newHarness(t, false)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlX})
	first, ok := h.m.Notice()
	require.True(t, ok)

	// A stale expiry does not remove a newer notice.
	h.send(tea.KeyMsg{Type: tea.KeyCtrlX})
	h.send(components.NoticeExpiredMsg{ID: first.ID})
	_, ok = h.m.Notice()
	assert.True(t, ok)

	// Any key dismisses.
	h.typeText("a")
	_, ok = h.m.Notice()
	assert.False(t, ok)
}

// =============================================================================
// CONVERSATION RENDERING
// =============================================================================

func TestModel_RendersSnapshots(t *testing.T) {
	h := newHarness(t, false)
	assert.Contains(t, h.m.View(), "hold space to talk")

	l, _ := model.NewLog().AppendUser("Hello")
	l, _ = l.BeginAssistant()
	l, _ = l.AppendFragment("Partial answ")
	h.send(LogMsg{Log: l})
	view := h.m.View()
	assert.Contains(t, view, "Hello")
	assert.Contains(t, view, "Partial answ")

	l, _ = l.AppendFragment("er")
	l, _ = l.CompleteAssistant(nil)
	h.send(LogMsg{Log: l})
	assert.Contains(t, h.m.View(), "Partial answer")
	assert.Equal(t, 2, h.m.Log().Len())

	l, _ = l.AppendUser("again")
	l, _ = l.ReplaceWithError(exchange.ApologyMessage)
	h.send(LogMsg{Log: l})
	assert.Contains(t, h.m.View(), exchange.ApologyMessage)
}

func TestModel_ModelChanged(t *testing.T) {
	h := newHarness(t, false)
	assert.Contains(t, h.m.View(), "gpt-4.1-mini")
	h.send(ModelChangedMsg{Name: "gpt-4o"})
	assert.Contains(t, h.m.View(), "gpt-4o")
}

// =============================================================================
// PUSH-TO-TALK
// =============================================================================

func TestModel_TapIsOrdinarySpace(t *testing.T) {
	h := newHarness(t, true)
	h.typeText("a b")

	assert.Equal(t, "a b", h.m.InputValue())
	require.Len(t, h.voice.downs, 1)
	assert.Equal(t, voice.KeyEvent{Key: "space", Focused: true}, h.voice.downs[0])

	// The next key interrupts the held trigger and releases it.
	require.Len(t, h.voice.ups, 1)
	assert.Equal(t, "space", h.voice.ups[0].Key)
}

func TestModel_SuppressedPressNotInserted(t *testing.T) {
	h := newHarness(t, true)
	h.voice.suppress = true

	h.send(spaceKey)
	h.send(spaceKey)
	assert.Empty(t, h.m.InputValue())
	require.Len(t, h.voice.downs, 2)
	assert.False(t, h.voice.downs[0].Repeat)
	assert.True(t, h.voice.downs[1].Repeat)
}

func TestModel_RecordingStripsArmingSpaces(t *testing.T) {
	h := newHarness(t, true)
	h.typeText("hi")

	// Initial press and the first auto-repeat both reach the input.
	h.send(spaceKey)
	h.rel.held = false
	h.send(spaceKey)
	assert.Equal(t, "hi  ", h.m.InputValue())

	h.send(VoiceStateMsg{State: voice.StateRecording})
	assert.Equal(t, "hi", h.m.InputValue())
	assert.Contains(t, h.m.View(), "REC")

	h.send(VoiceStateMsg{State: voice.StateIdle})
	assert.NotContains(t, h.m.View(), "REC")
}

func TestModel_TriggerReleasedCallsKeyUp(t *testing.T) {
	h := newHarness(t, true)
	h.send(escKey)

	h.send(TriggerReleasedMsg{Event: voice.KeyEvent{Key: "space"}})
	require.Len(t, h.voice.ups, 1)
	assert.False(t, h.voice.ups[0].Focused, "focus reflects the input")
}

func TestModel_VoiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unsupported", &voice.CaptureError{Op: voice.OpStart, Err: voice.ErrUnsupported}, "recognizer_command"},
		{"busy", &voice.CaptureError{Op: voice.OpSubmit, Err: exchange.ErrBusy}, "not sent"},
		{"other", &voice.CaptureError{Op: voice.OpListen, Err: errors.New("no-speech")}, "no-speech"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, true)
			h.send(VoiceErrorMsg{Err: tc.err})
			msg, kind := noticeText(t, h.m)
			assert.Equal(t, components.NoticeError, kind)
			assert.Contains(t, msg, tc.want)
		})
	}
}
