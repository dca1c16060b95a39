// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/document"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/voice"
)

// =============================================================================
// FAKES
// =============================================================================

type submission struct {
	text    string
	quality model.Quality
}

type fakeExchange struct {
	mu      sync.Mutex
	busy    bool
	err     error
	submits []submission
}

func (f *fakeExchange) Submit(_ context.Context, text string, q model.Quality) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, submission{text, q})
	return f.err
}

func (f *fakeExchange) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

type fakeDocs struct {
	mu        sync.Mutex
	state     document.State
	session   *document.Session
	uploadErr error
	uploads   []string
}

func (f *fakeDocs) Upload(_ context.Context, path string) (*document.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, path)
	if f.uploadErr != nil {
		f.state = document.StateNone
		f.session = nil
		return nil, f.uploadErr
	}
	f.session = &document.Session{ID: "sess-1", SourceName: baseName(path)}
	f.state = document.StateActive
	cp := *f.session
	return &cp, nil
}

func (f *fakeDocs) Clear() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != document.StateActive {
		return false
	}
	f.state = document.StateNone
	f.session = nil
	return true
}

func (f *fakeDocs) State() document.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeDocs) Current() (document.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return document.Session{}, false
	}
	return *f.session, true
}

type fakeVoice struct {
	suppress bool
	downs    []voice.KeyEvent
	ups      []voice.KeyEvent
}

func (f *fakeVoice) KeyDown(ev voice.KeyEvent) voice.Disposition {
	f.downs = append(f.downs, ev)
	return voice.Disposition{SuppressDefault: f.suppress}
}

func (f *fakeVoice) KeyUp(ev voice.KeyEvent) voice.Disposition {
	f.ups = append(f.ups, ev)
	return voice.Disposition{SuppressDefault: true}
}

func (f *fakeVoice) TriggerKey() string { return "space" }

type fakeRelease struct {
	held bool
	last voice.KeyEvent
}

func (f *fakeRelease) Press(ev voice.KeyEvent) voice.KeyEvent {
	ev.Repeat = f.held
	f.held = true
	f.last = ev
	return ev
}

func (f *fakeRelease) Interrupt() (voice.KeyEvent, bool) {
	if !f.held {
		return voice.KeyEvent{}, false
	}
	f.held = false
	ev := f.last
	ev.Repeat = false
	return ev, true
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	ex        *fakeExchange
	docs      *fakeDocs
	voice     *fakeVoice
	rel       *fakeRelease
	exportDir string
	m         Model
}

func newHarness(t *testing.T, withVoice bool) *harness {
	t.Helper()
	h := &harness{
		ex:   &fakeExchange{},
		docs: &fakeDocs{},
	}
	opts := Options{
		Theme:          styles.NewTheme(styles.AppearanceDark),
		Exchange:       h.ex,
		Documents:      h.docs,
		ModelName:      "gpt-4.1-mini",
		MarkdownStyle:  styles.MarkdownPlain,
		NoticeDuration: time.Millisecond,
		ExportDir:      t.TempDir(),
	}
	h.exportDir = opts.ExportDir
	if withVoice {
		h.voice = &fakeVoice{}
		h.rel = &fakeRelease{}
		opts.Voice = h.voice
		opts.Release = h.rel
	}
	h.m = New(opts)
	h.send(tea.WindowSizeMsg{Width: 100, Height: 40})
	return h
}

// send runs Update and returns the command it produced.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

// run executes cmd and every command in a batch, feeding the results back
// into the model. Notice expiry messages are dropped so notices stay visible.
func (h *harness) run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	var out []tea.Msg
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			out = append(out, h.run(c)...)
		}
		return out
	}
	out = append(out, msg)
	switch msg.(type) {
	case nil:
	case tea.QuitMsg:
	default:
		if !isNoticeExpiry(msg) {
			h.run(h.send(msg))
		}
	}
	return out
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		if r == ' ' {
			h.send(spaceKey)
			continue
		}
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

var (
	spaceKey = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func isNoticeExpiry(msg tea.Msg) bool {
	_, ok := msg.(components.NoticeExpiredMsg)
	return ok
}
