// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/orchestrator"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.ready = true
		m.layout()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		// Ticking stops once the turn settles.
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TurnSettledMsg:
		m.handleSettled(msg.Outcome)
		m.layout()
		return m, nil

	case ConfigReloadedMsg:
		m.applyConfig(msg.UI)
		m.layout()
		return m, nil

	case commandResultMsg:
		cmd := m.handleCommandResult(msg)
		m.layout()
		return m, cmd

	case tea.KeyMsg:
		cmd, handled := m.handleKey(msg)
		if handled {
			m.layout()
			return m, cmd
		}
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEYS
// =============================================================================

// handleKey processes screen-level bindings. Keys it does not consume fall
// through to the input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	// Any key other than Tab or Enter closes the completion popup.
	if m.completions.Visible && !key.Matches(msg, m.keys.Complete, m.keys.Submit) {
		m.completions.Clear()
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil, true

	case key.Matches(msg, m.keys.Dismiss):
		switch {
		case m.completions.Visible:
			m.completions.Clear()
		case m.overlay != "":
			m.overlay = ""
			m.refresh()
		default:
			m.clearNotice()
		}
		return nil, true

	case key.Matches(msg, m.keys.Complete):
		m.complete()
		return nil, true

	case key.Matches(msg, m.keys.Submit):
		if m.completions.Visible {
			m.completions.Clear()
			return nil, true
		}
		return m.submitInput(), true

	case key.Matches(msg, m.keys.NewChat):
		m.deps.Repo.Create()
		m.switched()
		return nil, true

	case key.Matches(msg, m.keys.NextChat):
		m.cycleConversation(1)
		return nil, true

	case key.Matches(msg, m.keys.PrevChat):
		m.cycleConversation(-1)
		return nil, true

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfViewUp()
		return nil, true

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfViewDown()
		return nil, true
	}

	return nil, false
}

// complete fills the input from the command completer. Repeated presses
// cycle through the candidates.
func (m *Model) complete() {
	if m.deps.Completer == nil {
		return
	}
	if m.completions.Visible {
		m.completions.Next()
		m.SetInput(m.completions.Accept())
		return
	}

	line := m.input.Value()
	completions := m.deps.Completer.Complete(line, len(line))
	lines := m.deps.Completer.CompleteLine(line)
	if len(completions) == 0 || len(lines) != len(completions) {
		return
	}
	// The popup shows the completer's labels; accepting inserts the whole
	// rewritten line.
	for i := range completions {
		completions[i].Value = lines[i]
	}

	m.completions.Update(line, completions)
	m.SetInput(m.completions.Accept())
	if len(completions) == 1 {
		m.completions.Clear()
	}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// submitInput sends the input as a slash command or a chat message.
func (m *Model) submitInput() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" && m.attachment == nil {
		return nil
	}

	if commands.IsCommand(text) {
		m.input.Reset()
		return m.runCommand(text)
	}
	return m.submit(text)
}

// submit hands text to the orchestrator. The input is kept when the
// submission is rejected so nothing typed is lost.
func (m *Model) submit(text string) tea.Cmd {
	if m.pending {
		m.setNotice("A reply is still on its way. Please wait.", true)
		return nil
	}

	turn, err := m.deps.Orchestrator.Submit(context.Background(), text, m.attachment, m.deps.Settings.Snapshot())
	if err != nil {
		m.setNotice(describeError(err), true)
		return nil
	}
	if turn == nil {
		return nil
	}

	m.input.Reset()
	m.attachment = nil
	m.overlay = ""
	m.clearNotice()
	m.pending = true
	m.pendingConv = turn.ConversationID()
	m.pendingSince = time.Now()
	m.refresh()
	m.checkPersistence()
	return m.spinner.Tick
}

// runCommand executes a slash command off the update loop.
func (m *Model) runCommand(input string) tea.Cmd {
	registry := m.deps.Registry
	if registry == nil {
		m.setNotice("Commands are not available.", true)
		return nil
	}

	env := *m.deps.Env
	env.Attachment = m.attachment

	m.logger.Debug().Str("input", input).Msg("Running command")
	return func() tea.Msg {
		res, err := registry.Execute(context.Background(), &env, input)
		return commandResultMsg{input: input, result: res, err: err}
	}
}

func (m *Model) handleCommandResult(msg commandResultMsg) tea.Cmd {
	defer m.checkPersistence()

	if msg.err != nil {
		m.setNotice(describeError(msg.err), true)
		m.refresh()
		return nil
	}

	res := msg.result
	m.overlay = ""
	m.clearNotice()
	if out := strings.TrimRight(res.Output, "\n"); out != "" {
		if strings.Count(out, "\n")+1 > maxNoticeLines {
			m.overlay = out
		} else {
			m.setNotice(out, false)
		}
	}

	var cmd tea.Cmd
	switch res.Action {
	case commands.ActionQuit:
		m.quitting = true
		cmd = tea.Quit
	case commands.ActionAttach:
		m.attachment = res.Attachment
	case commands.ActionDetach:
		m.attachment = nil
	case commands.ActionSubmit:
		cmd = m.submit(res.Text)
	}

	m.refresh()
	if m.overlay != "" {
		m.viewport.GotoTop()
	}
	return cmd
}

// handleSettled updates the screen after a turn's reply has been recorded.
func (m *Model) handleSettled(o orchestrator.Outcome) {
	m.pending = false
	m.pendingConv = ""

	if o.Dropped {
		m.setNotice("The conversation was deleted before the reply arrived; reply discarded.", true)
	}
	if m.deps.SpeakReplies && m.deps.Speaker != nil && o.Succeeded() {
		m.deps.Speaker.Speak(o.Reply.Text, m.deps.Settings.Snapshot().Voice)
	}

	m.logger.Debug().
		Str("conversation", o.ConversationID).
		Str("state", o.State.String()).
		Dur("duration", o.Duration).
		Msg("Turn settled")

	m.refresh()
	m.checkPersistence()
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// cycleConversation activates the conversation delta places away in the
// list, wrapping around.
func (m *Model) cycleConversation(delta int) {
	convs := m.deps.Repo.List()
	if len(convs) < 2 {
		return
	}
	active := m.deps.Repo.ActiveID()
	idx := 0
	for i, c := range convs {
		if c.ID == active {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(convs)) % len(convs)
	m.deps.Repo.SetActive(convs[idx].ID)
	m.switched()
}

// switched resets per-conversation view state after the active
// conversation changes.
func (m *Model) switched() {
	m.overlay = ""
	m.clearNotice()
	m.refresh()
	m.checkPersistence()
}

// applyConfig adopts the reloadable UI settings. The interface mode only
// matters at startup and is ignored here.
func (m *Model) applyConfig(ui config.UIConfig) {
	if ui.Markdown == m.deps.Markdown && ui.SpeakReplies == m.deps.SpeakReplies {
		return
	}
	m.deps.Markdown = ui.Markdown
	m.deps.SpeakReplies = ui.SpeakReplies
	// Force the renderer to be rebuilt for the new markdown setting.
	m.rendererWidth = -1
	m.logger.Info().
		Bool("markdown", ui.Markdown).
		Bool("speak_replies", ui.SpeakReplies).
		Msg("UI settings reloaded")
	m.setNotice("Configuration reloaded.", false)
	m.refresh()
}

// =============================================================================
// NOTICES
// =============================================================================

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeIsErr = isErr
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeIsErr = false
}

// checkPersistence surfaces a new store failure once.
func (m *Model) checkPersistence() {
	err := m.deps.Repo.LastPersistError()
	if err == nil || err == m.lastPersist {
		return
	}
	m.lastPersist = err
	m.setNotice("Could not save: "+err.Error()+" (changes are kept for this session)", true)
}

func describeError(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrMissingCredential):
		return "No API key is set. Use /key <api-key> to add one."
	default:
		return err.Error()
	}
}
