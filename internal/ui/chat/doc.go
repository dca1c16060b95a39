// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat screen for the parley TUI.
//
// The model never calls the service itself. Exchanges and uploads run as
// tea.Cmd functions against the exchange coordinator and document manager,
// and everything those collaborators report back (log snapshots, finished
// exchanges, session changes, push-to-talk state) arrives as a tea.Msg
// through a Bridge.
//
// # Push-to-talk
//
// Terminals report key presses but not releases. Each trigger press goes
// through a voice.ReleaseDetector, which marks auto-repeats and reports the
// release once repeats stop; the release comes back as TriggerReleasedMsg.
// A press the voice machine suppresses never reaches the input.
//
// # Key Bindings
//
//   - Enter: send, Alt+Enter: newline
//   - Esc: browse the conversation, i/Tab: back to typing
//   - Ctrl+O: toggle detailed responses
//   - Ctrl+X: clear the document
//   - Ctrl+C: quit
//
// # Commands
//
//   - /upload <file.pdf>, /clear, /deep, /export [md|json], /help, /quit
package chat
