// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// SidebarWidth is the width of the conversation list, borders included.
const SidebarWidth = 30

// Theme holds the styled components of the chat screen.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	Sidebar        lipgloss.Style
	SidebarTitle   lipgloss.Style
	SidebarItem    lipgloss.Style
	SidebarActive  lipgloss.Style
	SidebarCursor  lipgloss.Style
	SidebarCount   lipgloss.Style
	SidebarFocused lipgloss.Style

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	ErrorLabel     lipgloss.Style
	Timestamp      lipgloss.Style
	MessageBody    lipgloss.Style
	ErrorBody      lipgloss.Style
	Attachment     lipgloss.Style
	Notice         lipgloss.Style
	NoticeError    lipgloss.Style
	EmptyState     lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputContainer lipgloss.Style
	InputFocused   lipgloss.Style
	StatusBar      lipgloss.Style
	Spinner        lipgloss.Style
	ThinkingText   lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style

	// ==========================================================================
	// COMPLETION POPUP
	// ==========================================================================

	CompletionPopup    lipgloss.Style
	CompletionItem     lipgloss.Style
	CompletionSelected lipgloss.Style
	CompletionDesc     lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(OverlayDim).
		Padding(0, 1)
	t.SidebarFocused = t.Sidebar.
		BorderForeground(Purple)
	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		MarginBottom(1)
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.SidebarActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary).
		Background(SelectionBg)
	t.SidebarCursor = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.SidebarCount = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		Background(SurfaceDim)
	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Italic(true)

	// Transcript
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.ErrorLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)
	t.ErrorBody = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Rose).
		PaddingLeft(1).
		MarginLeft(1)
	t.Attachment = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true).
		PaddingLeft(2)
	t.Notice = lipgloss.NewStyle().
		Foreground(TextSecondary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(OverlayDim).
		Padding(0, 1)
	t.NoticeError = t.Notice.
		Foreground(Rose).
		BorderForeground(Rose)
	t.EmptyState = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Padding(1, 2)

	// Input and status
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(OverlayDim)
	t.InputFocused = t.InputContainer.
		BorderForeground(Cyan)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 1)
	t.Spinner = lipgloss.NewStyle().
		Foreground(Amber)
	t.ThinkingText = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)
	t.ShortcutKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Completion popup
	t.CompletionPopup = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)
	t.CompletionItem = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.CompletionSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary).
		Background(SelectionBg)
	t.CompletionDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// SetSize records the terminal size for LayoutMode.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode returns the layout for the current width.
func (t *Theme) LayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// ShowSidebar reports whether the conversation list fits.
func (t *Theme) ShowSidebar() bool {
	return t.LayoutMode() != LayoutNarrow
}

// LayoutMode represents the responsive layout.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, no sidebar
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)
