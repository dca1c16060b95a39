// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/ui/components"
)

// Command describes a slash command typed into the input.
type Command struct {
	Name    string
	Args    string
	Usage   string
	Summary string
}

// Commands lists the slash commands in help order.
var Commands = []Command{
	{Name: "/upload", Usage: "/upload <file.pdf>", Summary: "chat with a PDF document"},
	{Name: "/clear", Usage: "/clear", Summary: "drop the document and return to chat"},
	{Name: "/deep", Usage: "/deep", Summary: "toggle detailed responses"},
	{Name: "/export", Usage: "/export [md|json]", Summary: "save the conversation to a file"},
	{Name: "/help", Usage: "/help", Summary: "show keys and commands"},
	{Name: "/quit", Usage: "/quit", Summary: "exit parley"},
}

// ParseCommand splits "/name args". ok is false for input that does not
// start with a slash.
func ParseCommand(input string) (Command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return Command{}, false
	}
	name, args, _ := strings.Cut(input, " ")
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}, true
}

func (m Model) runCommand(input string) (tea.Model, tea.Cmd) {
	cmd, _ := ParseCommand(input)

	switch cmd.Name {
	case "/upload":
		if cmd.Args == "" {
			return m.setNotice(components.NoticeWarning, "Usage: /upload <file.pdf>")
		}
		return m.startUpload(UploadPath(cmd.Args))

	case "/clear":
		return m.clearDocument()

	case "/deep":
		m.quality = m.quality.Toggle()
		m.syncHeader()
		return m.setNotice(components.NoticeInfo, m.quality.Label())

	case "/export":
		return m.exportLog(cmd.Args)

	case "/help", "/?":
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil

	case "/quit", "/exit", "/q":
		return m, tea.Quit
	}

	return m.setNotice(components.NoticeWarning, "Unknown command "+cmd.Name+". Try /help")
}

// exportLog writes the completed turns on screen to a file.
func (m Model) exportLog(format string) (tea.Model, tea.Cmd) {
	exporter, err := export.ForFormat(format, nil)
	if err != nil {
		return m.setNotice(components.NoticeWarning, err.Error())
	}
	doc := ""
	if sess, ok := m.docs.Current(); ok {
		doc = sess.SourceName
	}
	t := export.NewTranscript(m.log, m.header.ModelName, doc)
	opts := &export.Options{OutputDir: ExportDir(m.exportDir), IncludeTimestamps: true}
	return m, func() tea.Msg {
		path, err := export.ExportToFile(t, exporter, opts)
		return exportDoneMsg{path: path, err: err}
	}
}

// ExportDir resolves the directory for /export files. An empty dir falls
// back to ui.export_dir from the current configuration.
func ExportDir(dir string) string {
	if dir == "" {
		dir = config.Global().UI.ExportDir
	}
	if dir == "" {
		return "."
	}
	return expandHome(dir)
}

// UploadPath turns /upload arguments into a file path: one pair of quotes
// is stripped and a leading ~ expands to the home directory.
func UploadPath(args string) string {
	return expandHome(unquote(strings.TrimSpace(args)))
}

// unquote strips one pair of matching quotes, as left by drag-and-drop.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func baseName(path string) string {
	return filepath.Base(path)
}
