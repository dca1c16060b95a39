// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the parley TUI.
//
// Colors are Lip Gloss AdaptiveColor values, so the same palette serves
// light and dark terminals. NewTheme resolves the appearance once, from the
// config or from termenv background detection, and the same answer picks the
// glamour style used for rendered answers.
//
// # Usage
//
//	theme := styles.NewTheme(styles.AppearanceAuto)
//	md := styles.NewMarkdown(styles.MarkdownStyleFor(theme))
//	out := md.Render(answer, 80)
//
// Notices carry an ASCII indicator from StatusIndicators as well as a color.
package styles
