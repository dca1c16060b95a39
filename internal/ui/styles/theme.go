// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderModel lipgloss.Style
	BadgeChat   lipgloss.Style
	BadgeDoc    lipgloss.Style
	BadgeDeep   lipgloss.Style
	BadgeArmed  lipgloss.Style
	BadgeRec    lipgloss.Style
	BadgeUpload lipgloss.Style

	// ==========================================================================
	// TURN STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	PendingText    lipgloss.Style
	ErrorText      lipgloss.Style
	Spinner        lipgloss.Style
	Empty          lipgloss.Style

	// ==========================================================================
	// INPUT AND FOOTER STYLES
	// ==========================================================================

	InputFocused lipgloss.Style
	InputBlurred lipgloss.Style
	Notice       lipgloss.Style
	NoticeError  lipgloss.Style
	Help         lipgloss.Style
}

// Appearance selects the palette. AppearanceAuto asks the terminal.
type Appearance string

const (
	AppearanceAuto  Appearance = "auto"
	AppearanceDark  Appearance = "dark"
	AppearanceLight Appearance = "light"
)

// NewTheme creates a theme for the given appearance.
func NewTheme(appearance Appearance) *Theme {
	isDark := true
	switch appearance {
	case AppearanceLight:
		isDark = false
	case AppearanceDark:
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func badge(bg lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(bg).
		Padding(0, 1)
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderModel = lipgloss.NewStyle().Foreground(TextSecondary)

	t.BadgeChat = badge(Cyan)
	t.BadgeDoc = badge(Emerald)
	t.BadgeDeep = badge(Amber)
	t.BadgeArmed = badge(Amber)
	t.BadgeRec = badge(Rose).Blink(true)
	t.BadgeUpload = badge(Purple)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.UserText = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.PendingText = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose).PaddingLeft(2)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.Empty = lipgloss.NewStyle().Foreground(TextMuted).Italic(true).Padding(1, 2)

	t.InputFocused = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan)
	t.InputBlurred = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)

	t.Notice = lipgloss.NewStyle().Foreground(TextSecondary).Padding(0, 1)
	t.NoticeError = lipgloss.NewStyle().Foreground(Rose).Padding(0, 1)
	t.Help = lipgloss.NewStyle().Foreground(TextMuted).Padding(0, 1)
}
