// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/gateway"
	"github.com/jeranaias/parley/internal/orchestrator"
	"github.com/jeranaias/parley/internal/request"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/storage"
)

type fixture struct {
	repo     *conversation.Repository
	settings *settings.Manager
	orch     *orchestrator.Orchestrator
}

func replyWith(text string, err error) gateway.Func {
	return func(context.Context, *request.TurnRequest) (string, error) {
		return text, err
	}
}

func newTestModel(t *testing.T, gw gateway.Gateway, apiKey string) (Model, *fixture) {
	t.Helper()

	store := storage.NewMemoryStore()
	repo := conversation.New(store, conversation.WithLogger(zerolog.Nop()))
	mgr, err := settings.NewManager(store, settings.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	if apiKey != "" {
		require.NoError(t, mgr.SetCredential(apiKey))
	}
	orch := orchestrator.New(repo, gw, orchestrator.WithLogger(zerolog.Nop()))

	m := New(Deps{
		Repo:         repo,
		Settings:     mgr,
		Orchestrator: orch,
		Registry:     commands.NewRegistry(),
	})
	m, _ = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, &fixture{repo: repo, settings: mgr, orch: orch}
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	return update(m, tea.KeyMsg{Type: k})
}

func alt(m Model, r rune) (Model, tea.Cmd) {
	return update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}, Alt: true})
}

// settle waits for the pending turn and delivers its outcome the way the
// settle hook would.
func settle(t *testing.T, m Model, f *fixture) Model {
	t.Helper()
	f.orch.Wait()
	outcome, ok := f.orch.LastOutcome()
	require.True(t, ok)
	m, _ = update(m, TurnSettledMsg{Outcome: outcome})
	return m
}

func TestViewBeforeResize(t *testing.T) {
	store := storage.NewMemoryStore()
	repo := conversation.New(store, conversation.WithLogger(zerolog.Nop()))
	mgr, err := settings.NewManager(store, settings.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	m := New(Deps{Repo: repo, Settings: mgr, Orchestrator: orchestrator.New(repo, replyWith("", nil))})
	assert.Equal(t, "Loading...", m.View())
}

func TestSubmitAndSettle(t *testing.T) {
	m, f := newTestModel(t, replyWith("Hello there, traveller", nil), "sk-test-key")

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	assert.Equal(t, "hi", m.InputValue())

	m, cmd := press(m, tea.KeyEnter)
	assert.NotNil(t, cmd, "spinner should start ticking")
	assert.True(t, m.Pending())
	assert.Empty(t, m.InputValue())
	assert.Contains(t, m.View(), "Waiting for the model")

	m = settle(t, m, f)
	assert.False(t, m.Pending())

	conv, err := f.repo.Active()
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "hi", conv.Messages[0].Text)
	assert.Equal(t, "Hello there, traveller", conv.Messages[1].Text)

	view := m.View()
	assert.Contains(t, view, "Hello there, traveller")
	assert.NotContains(t, view, "Waiting for the model")
}

func TestSubmitWithoutCredentialKeepsInput(t *testing.T) {
	m, f := newTestModel(t, replyWith("unused", nil), "")

	m.SetInput("are you there?")
	m, cmd := press(m, tea.KeyEnter)

	assert.Nil(t, cmd)
	assert.False(t, m.Pending())
	assert.Contains(t, m.Notice(), "No API key")
	assert.Equal(t, "are you there?", m.InputValue())

	conv, err := f.repo.Active()
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestFailedTurnShowsErrorNotice(t *testing.T) {
	m, f := newTestModel(t, replyWith("", errors.New("connection reset")), "sk-test-key")

	m.SetInput("hello")
	m, _ = press(m, tea.KeyEnter)
	m = settle(t, m, f)

	conv, err := f.repo.Active()
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.True(t, conv.Messages[1].IsError)
	assert.Contains(t, m.View(), "Error")
}

func TestEmptyInputIgnored(t *testing.T) {
	m, _ := newTestModel(t, replyWith("unused", nil), "sk-test-key")

	m.SetInput("   ")
	m, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.False(t, m.Pending())
}

func TestSlashCommandRunsAsync(t *testing.T) {
	m, f := newTestModel(t, replyWith("unused", nil), "")

	m.SetInput("/rename Trip plans")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Empty(t, m.InputValue())

	m, _ = update(m, cmd())
	assert.Equal(t, `Renamed to "Trip plans".`, m.Notice())

	conv, err := f.repo.Active()
	require.NoError(t, err)
	assert.Equal(t, "Trip plans", conv.Title)
	assert.Contains(t, m.View(), "Trip plans")
}

func TestSlashCommandErrorShownAsNotice(t *testing.T) {
	m, _ := newTestModel(t, replyWith("unused", nil), "")

	m.SetInput("/nosuchthing")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)

	m, _ = update(m, cmd())
	assert.NotEmpty(t, m.Notice())
}

func TestLongCommandOutputUsesOverlay(t *testing.T) {
	m, _ := newTestModel(t, replyWith("unused", nil), "")

	m.SetInput("/help")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	m, _ = update(m, cmd())

	assert.Empty(t, m.Notice())
	view := m.View()
	assert.Contains(t, view, "/new")
	assert.Contains(t, view, "back to the conversation")

	m, _ = press(m, tea.KeyEsc)
	assert.NotContains(t, m.View(), "back to the conversation")
}

func TestNewAndCycleConversations(t *testing.T) {
	m, f := newTestModel(t, replyWith("unused", nil), "")
	first := f.repo.ActiveID()

	m, _ = alt(m, 'n')
	require.Equal(t, 2, f.repo.Len())
	second := f.repo.ActiveID()
	assert.NotEqual(t, first, second)

	m, _ = alt(m, 'j')
	assert.Equal(t, first, f.repo.ActiveID())

	// Wraps around.
	m, _ = alt(m, 'j')
	assert.Equal(t, second, f.repo.ActiveID())

	_, _ = alt(m, 'k')
	assert.Equal(t, first, f.repo.ActiveID())
}

func TestReplyLandsInOriginalConversation(t *testing.T) {
	release := make(chan struct{})
	gw := gateway.Func(func(context.Context, *request.TurnRequest) (string, error) {
		<-release
		return "late reply", nil
	})
	m, f := newTestModel(t, gw, "sk-test-key")
	origin := f.repo.ActiveID()

	m.SetInput("question")
	m, _ = press(m, tea.KeyEnter)
	require.True(t, m.Pending())

	m, _ = alt(m, 'n')
	close(release)
	m = settle(t, m, f)

	conv, err := f.repo.Get(origin)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "late reply", conv.Messages[1].Text)

	active, err := f.repo.Active()
	require.NoError(t, err)
	assert.Empty(t, active.Messages)
	assert.NotContains(t, m.View(), "late reply")
}

func TestSecondSubmitWhilePendingRejected(t *testing.T) {
	release := make(chan struct{})
	gw := gateway.Func(func(context.Context, *request.TurnRequest) (string, error) {
		<-release
		return "ok", nil
	})
	m, f := newTestModel(t, gw, "sk-test-key")

	m.SetInput("one")
	m, _ = press(m, tea.KeyEnter)
	m.SetInput("two")
	m, _ = press(m, tea.KeyEnter)

	assert.Equal(t, "two", m.InputValue())
	assert.Contains(t, m.Notice(), "still on its way")

	close(release)
	m = settle(t, m, f)
	assert.False(t, m.Pending())

	conv, err := f.repo.Active()
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
}

func TestTabCompletesCommand(t *testing.T) {
	m, _ := newTestModel(t, replyWith("unused", nil), "")

	m.SetInput("/ren")
	m, _ = press(m, tea.KeyTab)
	assert.True(t, strings.HasPrefix(m.InputValue(), "/rename"), "got %q", m.InputValue())
}

func TestQuitKey(t *testing.T) {
	m, _ := newTestModel(t, replyWith("unused", nil), "")

	m, cmd := press(m, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestSidebarHiddenWhenNarrow(t *testing.T) {
	m, _ := newTestModel(t, replyWith("unused", nil), "")
	assert.Contains(t, m.View(), "Conversations (1)")

	m, _ = update(m, tea.WindowSizeMsg{Width: 50, Height: 30})
	assert.NotContains(t, m.View(), "Conversations (1)")
}

func TestConfigReloadAppliesUISettings(t *testing.T) {
	m, _ := newTestModel(t, replyWith("", nil), "sk-test-key")
	require.Nil(t, m.renderer)

	m, _ = update(m, ConfigReloadedMsg{UI: config.UIConfig{Mode: "tui", Markdown: true, SpeakReplies: true}})
	assert.True(t, m.deps.Markdown)
	assert.True(t, m.deps.SpeakReplies)
	assert.NotNil(t, m.renderer)
	assert.Equal(t, "Configuration reloaded.", m.Notice())

	// An unchanged reload is silent.
	m, _ = press(m, tea.KeyEsc)
	m, _ = update(m, ConfigReloadedMsg{UI: config.UIConfig{Mode: "repl", Markdown: true, SpeakReplies: true}})
	assert.Empty(t, m.Notice())

	m, _ = update(m, ConfigReloadedMsg{UI: config.UIConfig{Markdown: false}})
	assert.False(t, m.deps.Markdown)
	assert.Nil(t, m.renderer)
}
