// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes the current conversation to a file.
//
// Exports are one-way snapshots for the user to keep or share; parley never
// reads them back.
//
// # Supported Formats
//
//   - Markdown: human-readable, with YAML frontmatter
//   - JSON: machine-readable, one object per turn
//
// # Usage
//
//	t := export.NewTranscript(log, "gpt-4o", "report.pdf")
//	path, err := export.ExportToFile(t, export.NewMarkdownExporter(nil), nil)
package export
