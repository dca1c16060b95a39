// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/parley/internal/document"
	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/voice"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Exchange runs question-and-answer exchanges.
type Exchange interface {
	Submit(ctx context.Context, utterance string, quality model.Quality) error
	Busy() bool
}

// Documents manages the document session.
type Documents interface {
	Upload(ctx context.Context, path string) (*document.Session, error)
	Clear() bool
	State() document.State
	Current() (document.Session, bool)
}

// Voice is the push-to-talk machine.
type Voice interface {
	KeyDown(ev voice.KeyEvent) voice.Disposition
	KeyUp(ev voice.KeyEvent) voice.Disposition
	TriggerKey() string
}

// Releaser infers trigger releases from repeated presses.
type Releaser interface {
	Press(ev voice.KeyEvent) voice.KeyEvent
	Interrupt() (voice.KeyEvent, bool)
}

// Options configures New.
type Options struct {
	Theme     *styles.Theme
	Exchange  Exchange
	Documents Documents

	// Voice and Release enable push-to-talk; both nil disables it.
	Voice   Voice
	Release Releaser

	ModelName string
	Quality   model.Quality

	// MarkdownStyle is a glamour standard style; empty follows the theme.
	MarkdownStyle string

	// NoticeDuration overrides components.DefaultNoticeDuration.
	NoticeDuration time.Duration

	// ExportDir receives /export files. Empty means ui.export_dir from the
	// current configuration, read at export time so reloads apply.
	ExportDir string

	// Context bounds background exchanges and uploads.
	Context context.Context
	Logger  *zap.Logger
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	theme  *styles.Theme
	keys   KeyMap
	ctx    context.Context
	logger *zap.Logger

	exchange Exchange
	docs     Documents
	voice    Voice
	release  Releaser
	trigger  string

	header   *components.Header
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	markdown *styles.Markdown

	log       model.Log
	quality   model.Quality
	uploading bool
	capture   voice.State
	notice    *components.Notice
	noticeFor time.Duration
	showHelp  bool
	exportDir string

	// triggerRun counts consecutive trigger presses that reached the input.
	triggerRun int

	rendered      map[string]string
	renderedWidth int

	width  int
	height int
	ready  bool
}

// New creates the chat model.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.AppearanceAuto)
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MarkdownStyle == "" {
		opts.MarkdownStyle = styles.MarkdownStyleFor(opts.Theme)
	}
	if opts.NoticeDuration <= 0 {
		opts.NoticeDuration = components.DefaultNoticeDuration
	}

	ta := textarea.New()
	ta.Placeholder = "Ask anything. /help for commands"
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Spinner

	m := Model{
		theme:     opts.Theme,
		keys:      DefaultKeyMap(),
		ctx:       opts.Context,
		logger:    opts.Logger.With(zap.String("component", "tui")),
		exchange:  opts.Exchange,
		docs:      opts.Documents,
		header:    components.NewHeader(opts.Theme),
		viewport:  viewport.New(80, 20),
		input:     ta,
		spinner:   sp,
		help:      help.New(),
		markdown:  styles.NewMarkdown(opts.MarkdownStyle),
		quality:   opts.Quality,
		noticeFor: opts.NoticeDuration,
		exportDir: opts.ExportDir,
		rendered:  make(map[string]string),
	}
	if opts.Voice != nil && opts.Release != nil {
		m.voice = opts.Voice
		m.release = opts.Release
		m.trigger = opts.Voice.TriggerKey()
	}
	m.header.ModelName = opts.ModelName
	m.syncHeader()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Log returns the snapshot currently displayed.
func (m Model) Log() model.Log {
	return m.log
}

// Quality returns the response quality used for typed questions.
func (m Model) Quality() model.Quality {
	return m.quality
}

// InputValue returns the text in the input.
func (m Model) InputValue() string {
	return m.input.Value()
}

// Notice returns the notice on screen, if any.
func (m Model) Notice() (components.Notice, bool) {
	if m.notice == nil {
		return components.Notice{}, false
	}
	return *m.notice, true
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case LogMsg:
		m.log = msg.Log
		m.refreshViewport()
		return m, nil

	case CompletionMsg:
		if err := msg.Completion.Err; err != nil {
			m.logger.Debug("exchange ended with apology", zap.Error(err))
		}
		return m, nil

	case submitDoneMsg:
		if errors.Is(msg.err, exchange.ErrBusy) {
			return m.setNotice(components.NoticeWarning, "Still answering the previous question")
		}
		return m, nil

	case uploadDoneMsg:
		m.uploading = false
		m.syncHeader()
		if msg.err != nil {
			return m.setNotice(components.NoticeError, uploadErrorText(msg.err))
		}
		return m.setNotice(components.NoticeSuccess, fmt.Sprintf("Document ready: %s", msg.session.SourceName))

	case exportDoneMsg:
		switch {
		case errors.Is(msg.err, export.ErrEmpty):
			return m.setNotice(components.NoticeWarning, "Nothing to export yet")
		case msg.err != nil:
			return m.setNotice(components.NoticeError, msg.err.Error())
		}
		return m.setNotice(components.NoticeSuccess, "Saved "+msg.path)

	case SessionMsg:
		m.syncHeader()
		return m, nil

	case VoiceStateMsg:
		m.capture = msg.State
		if msg.State == voice.StateRecording {
			m.stripTriggerInserts()
		}
		m.syncHeader()
		return m, nil

	case VoiceErrorMsg:
		return m.setNotice(components.NoticeError, voiceErrorText(msg.Err))

	case TriggerReleasedMsg:
		if m.voice != nil {
			ev := msg.Event
			ev.Focused = m.input.Focused()
			m.voice.KeyUp(ev)
		}
		return m, nil

	case ModelChangedMsg:
		m.header.ModelName = msg.Name
		return m.setNotice(components.NoticeInfo, "Model: "+msg.Name)

	case components.NoticeExpiredMsg:
		if m.notice != nil && m.notice.ID == msg.ID {
			m.notice = nil
			m.layout()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.log.Pending() {
			m.refreshViewport()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	// Any key dismisses the notice.
	if m.notice != nil {
		m.notice = nil
		m.layout()
	}

	name := keyName(msg)
	if m.voice != nil {
		if name == m.trigger {
			ev := m.release.Press(voice.KeyEvent{Key: m.trigger, Focused: m.input.Focused()})
			if m.voice.KeyDown(ev).SuppressDefault {
				return m, nil
			}
		} else {
			if ev, ok := m.release.Interrupt(); ok {
				ev.Focused = m.input.Focused()
				m.voice.KeyUp(ev)
			}
			m.triggerRun = 0
		}
	}

	switch {
	case key.Matches(msg, m.keys.Deep):
		m.quality = m.quality.Toggle()
		m.syncHeader()
		return m.setNotice(components.NoticeInfo, m.quality.Label())

	case key.Matches(msg, m.keys.ClearDoc):
		return m.clearDocument()
	}

	if m.input.Focused() {
		return m.handleInputKey(msg, name)
	}
	return m.handleBrowseKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg, name string) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.submitInput()

	case key.Matches(msg, m.keys.Newline):
		m.input.InsertString("\n")
		return m, nil

	case key.Matches(msg, m.keys.Blur):
		m.input.Blur()
		m.layout()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if name == m.trigger && m.voice != nil && m.input.Value() != before {
		m.triggerRun++
	}
	return m, cmd
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Focus):
		cmd := m.input.Focus()
		m.layout()
		return m, cmd

	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
	}
	return m, nil
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runCommand(text)
	}

	if m.exchange.Busy() {
		return m.setNotice(components.NoticeWarning, "Still answering the previous question")
	}

	m.input.Reset()
	m.triggerRun = 0
	return m, m.submitCmd(text, m.quality)
}

func (m Model) submitCmd(text string, quality model.Quality) tea.Cmd {
	ex, ctx := m.exchange, m.ctx
	return func() tea.Msg {
		return submitDoneMsg{err: ex.Submit(ctx, text, quality)}
	}
}

func (m Model) startUpload(path string) (tea.Model, tea.Cmd) {
	if m.uploading || m.docs.State() == document.StateUploading {
		return m.setNotice(components.NoticeWarning, "An upload is already in progress")
	}
	if m.exchange.Busy() {
		return m.setNotice(components.NoticeWarning, "Wait for the current answer before uploading")
	}

	m.uploading = true
	m.syncHeader()

	docs, ctx := m.docs, m.ctx
	name := baseName(path)
	upload := func() tea.Msg {
		sess, err := docs.Upload(ctx, path)
		return uploadDoneMsg{name: name, session: sess, err: err}
	}

	next, noticeCmd := m.setNotice(components.NoticeInfo, "Uploading "+name+"…")
	return next, tea.Batch(noticeCmd, upload)
}

func (m Model) clearDocument() (tea.Model, tea.Cmd) {
	if m.docs.Clear() {
		m.syncHeader()
		return m.setNotice(components.NoticeSuccess, "Document cleared, back to chat")
	}
	if m.docs.State() == document.StateUploading {
		return m.setNotice(components.NoticeWarning, "Cannot clear while uploading")
	}
	return m.setNotice(components.NoticeInfo, "No document to clear")
}

func (m Model) setNotice(kind components.NoticeKind, text string) (Model, tea.Cmd) {
	n := components.NewNotice(kind, text)
	n.Duration = m.noticeFor
	m.notice = &n
	m.layout()
	return m, n.ExpireCmd()
}

// stripTriggerInserts removes the characters typed by the presses that
// armed a capture. A hold reaches the input as at most two presses: the
// initial press and the first auto-repeat after the release gap.
func (m *Model) stripTriggerInserts() {
	ins := insertedBy(m.trigger)
	if ins == "" || m.triggerRun == 0 {
		m.triggerRun = 0
		return
	}

	n := m.triggerRun
	if n > 2 {
		n = 2
	}
	val := m.input.Value()
	for i := 0; i < n && strings.HasSuffix(val, ins); i++ {
		val = strings.TrimSuffix(val, ins)
	}
	if val != m.input.Value() {
		m.input.SetValue(val)
	}
	m.triggerRun = 0
}

func (m *Model) syncHeader() {
	m.header.Deep = m.quality == model.QualityDeep
	m.header.Uploading = m.uploading

	m.header.DocName = ""
	if m.docs != nil {
		if sess, ok := m.docs.Current(); ok {
			m.header.DocName = sess.SourceName
		}
	}

	switch m.capture {
	case voice.StateArmed:
		m.header.Capture = components.CaptureArmed
	case voice.StateRecording:
		m.header.Capture = components.CaptureRecording
	default:
		m.header.Capture = components.CaptureIdle
	}
}

func uploadErrorText(err error) string {
	if errors.Is(err, document.ErrUploadInProgress) {
		return "An upload is already in progress"
	}
	var ue *document.UploadError
	if errors.As(err, &ue) && ue.Validation() {
		return ue.Error()
	}
	return "Upload failed: " + err.Error()
}

func voiceErrorText(err error) string {
	switch {
	case errors.Is(err, voice.ErrUnsupported):
		return "Voice input is not available. Set voice.recognizer_command in the config."
	case errors.Is(err, exchange.ErrBusy):
		return "Still answering the previous question; the spoken question was not sent"
	}
	return err.Error()
}
