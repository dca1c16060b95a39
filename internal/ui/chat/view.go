// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/components"
)

const emptyHint = "Type a question and press Enter, or hold space to talk.\n" +
	"Use /upload <file.pdf> to ask about a document."

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	var b strings.Builder
	b.WriteString(m.header.View())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.footerLine())
	b.WriteString("\n")
	b.WriteString(m.inputView())
	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.helpView())
	}
	return b.String()
}

func (m Model) inputView() string {
	style := m.theme.InputBlurred
	if m.input.Focused() {
		style = m.theme.InputFocused
	}
	return style.Render(m.input.View())
}

func (m Model) footerLine() string {
	if m.notice != nil {
		return components.RenderNotice(m.theme, *m.notice, m.width)
	}
	m.help.ShowAll = false
	return m.theme.Help.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m Model) helpView() string {
	var lines []string
	lines = append(lines, m.help.FullHelpView(m.keys.FullHelp()))
	lines = append(lines, "")
	for _, c := range Commands {
		lines = append(lines, fmt.Sprintf("%-20s %s", c.Usage, c.Summary))
	}
	return m.theme.Help.Render(strings.Join(lines, "\n"))
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.header.Width = m.width
	m.help.Width = m.width

	m.input.SetWidth(m.width - m.theme.InputFocused.GetHorizontalFrameSize())
	inputHeight := m.input.Height() + m.theme.InputFocused.GetVerticalFrameSize()

	helpHeight := 0
	if m.showHelp {
		helpHeight = lipgloss.Height(m.helpView()) + 1
	}

	// header + footer line + separators
	chrome := 1 + 1 + 2 + 1
	h := m.height - chrome - inputHeight - helpHeight
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.refreshViewport()
}

// contentWidth is the wrap width for turn bodies.
func (m *Model) contentWidth() int {
	w := m.viewport.Width - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderLog())
	if atBottom || m.log.Pending() {
		m.viewport.GotoBottom()
	}
}

// renderLog renders every turn. Complete answers are rendered as markdown
// once per width and cached by turn ID.
func (m *Model) renderLog() string {
	if m.log.IsEmpty() {
		return m.theme.Empty.Render(emptyHint)
	}

	width := m.contentWidth()
	if width != m.renderedWidth {
		m.rendered = make(map[string]string)
		m.renderedWidth = width
	}

	prev := m.rendered
	m.rendered = make(map[string]string, len(prev))
	var blocks []string
	for _, t := range m.log.Turns() {
		blocks = append(blocks, m.renderTurn(t, width, prev))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderTurn(t model.Turn, width int, cache map[string]string) string {
	wrap := lipgloss.NewStyle().Width(width)

	if t.IsUser() {
		return m.theme.UserLabel.Render(t.Role.DisplayName()) + "\n" +
			m.theme.UserText.Render(wrap.Render(t.Content))
	}

	label := m.theme.AssistantLabel.Render(t.Role.DisplayName())
	switch {
	case t.IsPending():
		body := t.Content
		if body == "" {
			body = "thinking"
		}
		return label + " " + m.spinner.View() + "\n" + m.theme.PendingText.Render(wrap.Render(body))

	case t.Content == exchange.ApologyMessage:
		return label + "\n" + m.theme.ErrorText.Render(wrap.Render(t.Content))
	}

	body, ok := cache[t.ID]
	if !ok {
		body = m.markdown.Render(t.Content, width)
	}
	m.rendered[t.ID] = body
	return label + "\n" + body
}
