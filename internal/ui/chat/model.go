// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/orchestrator"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/speech"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Deps are the components the chat screen drives.
type Deps struct {
	Repo         *conversation.Repository
	Settings     *settings.Manager
	Orchestrator *orchestrator.Orchestrator
	Registry     *commands.Registry
	Completer    *commands.Completer

	// Env is the slash-command environment; Attachment is managed by the
	// screen.
	Env *commands.Context

	// Speaker, when set with SpeakReplies, reads successful replies aloud.
	Speaker      speech.Speaker
	SpeakReplies bool

	// Markdown renders assistant replies with glamour.
	Markdown bool

	// ConfigUpdates, when set, delivers the UI section each time the config
	// file is reloaded. Markdown and SpeakReplies follow it.
	ConfigUpdates <-chan config.UIConfig
}

// =============================================================================
// CHAT MODEL
// =============================================================================

const (
	inputHeight  = 3
	headerHeight = 1
	statusHeight = 1
	helpHeight   = 1
	maxPopupRows = 6

	// Command output taller than this goes to the overlay.
	maxNoticeLines = 4
)

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	deps   Deps
	theme  *styles.Theme
	keys   KeyMap
	logger zerolog.Logger

	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model

	renderer      *glamour.TermRenderer
	rendererWidth int

	completions *commands.CompletionState

	// attachment is held from /attach until the next submission.
	attachment *model.Attachment

	// notice is command output or a warning shown under the transcript
	// until dismissed or the conversation changes.
	notice      string
	noticeIsErr bool

	// overlay replaces the transcript with long command output, such as
	// /help or /show, until dismissed.
	overlay string

	pending      bool
	pendingConv  string
	pendingSince time.Time
	lastPersist  error
	quitting     bool
}

// New creates the chat screen.
func New(deps Deps) Model {
	ta := textarea.New()
	ta.Placeholder = "Message, or /help"
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	theme := styles.NewTheme()
	sp.Style = theme.Spinner

	if deps.Env == nil {
		deps.Env = &commands.Context{Repo: deps.Repo, Settings: deps.Settings, Orchestrator: deps.Orchestrator}
	}
	if deps.Completer == nil && deps.Registry != nil {
		deps.Completer = commands.NewCompleter(deps.Registry)
		deps.Completer.ConversationsFn = deps.Repo.List
	}

	return Model{
		deps:        deps,
		theme:       theme,
		keys:        DefaultKeyMap(),
		logger:      log.Logger.With().Str("component", "tui").Logger(),
		viewport:    viewport.New(0, 0),
		input:       ta,
		spinner:     sp,
		help:        help.New(),
		completions: commands.NewCompletionState(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Pending reports whether a turn is in flight.
func (m Model) Pending() bool {
	return m.pending
}

// Notice returns the current notice text.
func (m Model) Notice() string {
	return m.notice
}

// Attachment returns the attachment held for the next message.
func (m Model) Attachment() *model.Attachment {
	return m.attachment
}

// InputValue returns the text in the input box.
func (m Model) InputValue() string {
	return m.input.Value()
}

// SetInput replaces the text in the input box.
func (m *Model) SetInput(s string) {
	m.input.SetValue(s)
	m.input.CursorEnd()
}

// Run starts a full-screen program on the chat screen and blocks until it
// exits or ctx is cancelled. Turn outcomes reach the program through the
// orchestrator's settle hook.
func Run(ctx context.Context, deps Deps, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(deps), opts...)

	deps.Orchestrator.SetSettleHook(func(o orchestrator.Outcome) {
		p.Send(TurnSettledMsg{Outcome: o})
	})
	defer deps.Orchestrator.SetSettleHook(nil)

	if deps.ConfigUpdates != nil {
		go func() {
			for ui := range deps.ConfigUpdates {
				p.Send(ConfigReloadedMsg{UI: ui})
			}
		}()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return errors.Wrap(err, "run chat screen")
}
