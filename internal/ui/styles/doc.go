// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the color palette and lipgloss theme shared by
parley's full-screen interface and command-line output.

All colors are lipgloss.AdaptiveColor values so they follow the terminal's
light or dark background.

# Palette

  - Cyan - brand, prompt, user messages
  - Purple - assistant messages, selection
  - Rose - error notices
  - Amber - warnings and pending turns
  - Emerald - success

# Theme

NewTheme builds every style the chat screen uses: sidebar, header,
transcript labels, input box, status bar and completion popup. SetSize and
LayoutMode let the screen hide the sidebar on narrow terminals.

Status helpers (RenderSuccess, RenderError, RenderWarning, RenderInfo)
prefix an ASCII marker so status is readable without color.
*/
package styles
