// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/util"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	mainWidth := m.mainWidth()
	parts := []string{m.renderHeader(mainWidth), m.viewport.View()}
	if n := m.renderNotice(mainWidth); n != "" {
		parts = append(parts, n)
	}
	if p := m.renderCompletions(); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts,
		m.renderStatus(mainWidth),
		m.theme.InputFocused.Width(mainWidth-2).Render(m.input.View()),
		m.theme.StatusBar.Render(m.help.View(m.keys)),
	)
	main := lipgloss.JoinVertical(lipgloss.Left, parts...)

	if !m.theme.ShowSidebar() {
		return main
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) mainWidth() int {
	if m.theme.ShowSidebar() {
		return m.width - styles.SidebarWidth
	}
	return m.width
}

// layout sizes the input and the transcript to fill the space left by the
// fixed rows.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	mainWidth := m.mainWidth()

	m.input.SetWidth(max(mainWidth-2, 10))
	m.help.Width = mainWidth - 2

	used := headerHeight + statusHeight + inputHeight + 2
	used += lipgloss.Height(m.theme.StatusBar.Render(m.help.View(m.keys)))
	if n := m.renderNotice(mainWidth); n != "" {
		used += lipgloss.Height(n)
	}
	if p := m.renderCompletions(); p != "" {
		used += lipgloss.Height(p)
	}

	m.viewport.Width = mainWidth
	m.viewport.Height = max(m.height-used, 1)

	if m.rendererWidth != mainWidth {
		m.refresh()
	}
}

// refresh re-renders the transcript (or the overlay) into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	width := m.mainWidth()
	if m.rendererWidth != width {
		m.renderer = m.newRenderer(width)
		m.rendererWidth = width
	}

	if m.overlay != "" {
		m.viewport.SetContent(m.theme.MessageBody.Width(width - 2).Render(m.overlay))
		return
	}

	conv, _ := m.deps.Repo.Active()
	m.viewport.SetContent(m.renderTranscript(conv, width))
	m.viewport.GotoBottom()
}

// newRenderer builds the glamour renderer for assistant replies. The style
// follows the background detected before the program started; querying the
// terminal from inside the program would race the input reader.
func (m *Model) newRenderer(width int) *glamour.TermRenderer {
	if !m.deps.Markdown {
		return nil
	}
	style := "light"
	if m.theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width-6, 20)),
	)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Markdown renderer unavailable")
		return nil
	}
	return r
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) renderTranscript(conv model.Conversation, width int) string {
	if conv.IsEmpty() && m.pendingConv != conv.ID {
		return m.theme.EmptyState.Render("No messages yet. Type below to start, or /help for commands.")
	}

	var b strings.Builder
	for i, msg := range conv.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg, width))
	}
	if m.pending && m.pendingConv == conv.ID {
		b.WriteString("\n\n")
		b.WriteString(m.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName()))
		b.WriteString("\n")
		b.WriteString(m.theme.MessageBody.Render(m.theme.ThinkingText.Render("thinking...")))
	}
	return b.String()
}

func (m *Model) renderMessage(msg model.Message, width int) string {
	var label string
	switch {
	case msg.IsError:
		label = m.theme.ErrorLabel.Render("Error")
	case msg.Role == model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	default:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	}
	if !msg.Timestamp.IsZero() {
		label += " " + m.theme.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))
	}

	lines := []string{label}
	if msg.Attachment != nil {
		lines = append(lines, m.theme.Attachment.Render("[image: "+msg.Attachment.MIMEType+"]"))
	}

	switch {
	case msg.IsError:
		lines = append(lines, m.theme.ErrorBody.Width(max(width-4, 10)).Render(msg.Text))
	case msg.Role == model.RoleAssistant && m.renderer != nil:
		if out, err := m.renderer.Render(msg.Text); err == nil {
			lines = append(lines, strings.Trim(out, "\n"))
			break
		}
		fallthrough
	default:
		if msg.Text != "" {
			lines = append(lines, m.theme.MessageBody.Width(max(width-2, 10)).Render(msg.Text))
		}
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// CHROME
// =============================================================================

func (m Model) renderHeader(width int) string {
	title := "parley"
	if conv, err := m.deps.Repo.Active(); err == nil {
		title = conv.GetTitle()
	}
	modelName := m.deps.Settings.Snapshot().Model

	subtitle := "  " + modelName
	avail := width - 2 - util.StringWidth(subtitle)
	title = util.TruncateWidth(util.SingleLine(title), max(avail, 1))

	content := m.theme.HeaderTitle.Render(title) + m.theme.HeaderSubtitle.Render(subtitle)
	return m.theme.Header.Width(width).MaxHeight(headerHeight).Render(content)
}

func (m Model) renderSidebar() string {
	convs := m.deps.Repo.List()
	active := m.deps.Repo.ActiveID()

	inner := styles.SidebarWidth - 4
	const countWidth = 3
	titleWidth := inner - 2 - countWidth - 1

	// Title row plus its margin.
	rows := max(m.height-2-2, 1)
	start := 0
	for i, c := range convs {
		if c.ID == active && i >= rows {
			start = i - rows + 1
		}
	}
	end := min(start+rows, len(convs))

	lines := []string{m.theme.SidebarTitle.Render(fmt.Sprintf("Conversations (%d)", len(convs)))}
	for _, c := range convs[start:end] {
		title := util.PadWidth(util.SingleLine(c.GetTitle()), titleWidth)
		count := m.theme.SidebarCount.Render(fmt.Sprintf("%*d", countWidth, c.MessageCount()))
		if c.ID == active {
			lines = append(lines, m.theme.SidebarCursor.Render("▸ ")+m.theme.SidebarActive.Render(title)+" "+count)
			continue
		}
		lines = append(lines, "  "+m.theme.SidebarItem.Render(title)+" "+count)
	}

	return m.theme.Sidebar.
		Width(styles.SidebarWidth - 2).
		Height(max(m.height-2, 1)).
		Render(strings.Join(lines, "\n"))
}

func (m Model) renderNotice(width int) string {
	if m.notice == "" {
		return ""
	}
	style := m.theme.Notice
	if m.noticeIsErr {
		style = m.theme.NoticeError
	}
	return style.Width(max(width-2, 10)).Render(m.notice)
}

func (m Model) renderCompletions() string {
	if !m.completions.Visible || len(m.completions.Completions) == 0 {
		return ""
	}

	items := m.completions.Completions
	start := 0
	if m.completions.Selected >= maxPopupRows {
		start = m.completions.Selected - maxPopupRows + 1
	}
	end := min(start+maxPopupRows, len(items))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		c := items[i]
		label := c.Display
		if label == "" {
			label = c.Value
		}
		style := m.theme.CompletionItem
		if i == m.completions.Selected {
			style = m.theme.CompletionSelected
		}
		line := style.Render(util.PadWidth(label, 24))
		if c.Description != "" {
			line += " " + m.theme.CompletionDesc.Render(c.Description)
		}
		lines = append(lines, line)
	}
	return m.theme.CompletionPopup.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatus(width int) string {
	var status string
	switch {
	case m.pending:
		secs := int(time.Since(m.pendingSince).Seconds())
		status = m.spinner.View() + " " + m.theme.ThinkingText.Render(fmt.Sprintf("Waiting for the model... %ds", secs))
	case m.attachment != nil:
		status = m.theme.Attachment.UnsetPaddingLeft().Render("[image attached: " + m.attachment.MIMEType + "] sent with your next message, /detach to remove")
	case !m.deps.Settings.Snapshot().HasCredential():
		status = styles.RenderWarning("No API key. Use /key <api-key> before sending.")
	case m.overlay != "":
		status = m.theme.ShortcutKey.Render("Esc") + " " + m.theme.ShortcutDesc.Render("back to the conversation")
	default:
		status = m.theme.ShortcutDesc.Render(fmt.Sprintf("%d conversations", m.deps.Repo.Len()))
	}
	return m.theme.StatusBar.Width(width).MaxHeight(statusHeight).Render(status)
}
