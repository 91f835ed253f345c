// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat for parley.
//
// Command: chat (also the default when ui.mode is repl)
//
// Lines starting with / run slash commands (/help lists them); anything
// else is sent to the model as a new turn in the active conversation. The
// session waits for each reply before prompting again.
//
// Keys:
//   Tab        Complete commands, models and conversation references
//   Up/Down    Input history (saved to chat_history, mode 0600)
//   Ctrl+C     Abort the current line
//   Ctrl+D     Exit

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/orchestrator"
	"github.com/jeranaias/parley/internal/util"
)

// HistoryFileName is the REPL input history, kept in the data directory.
const HistoryFileName = "chat_history"

const chatPrompt = "you> "

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineInput provides line editing, history and tab completion.
type lineInput struct {
	line        *liner.State
	historyFile string
}

func newLineInput(historyFile string, complete func(string) []string) *lineInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	if complete != nil {
		line.SetCompleter(complete)
	}

	in := &lineInput{line: line, historyFile: historyFile}
	in.loadHistory()
	return in
}

func (in *lineInput) loadHistory() {
	f, err := os.Open(in.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := in.line.ReadHistory(f); err != nil {
		log.Debug().Err(err).Msg("Reading input history failed")
	}
}

// ReadLine prompts for one line. Non-blank input is added to history.
func (in *lineInput) ReadLine(prompt string) (string, error) {
	text, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		in.line.AppendHistory(text)
	}
	return text, nil
}

func (in *lineInput) saveHistory() {
	if err := os.MkdirAll(filepath.Dir(in.historyFile), util.PrivateDirPerm); err != nil {
		return
	}
	f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		log.Debug().Err(err).Msg("Saving input history failed")
		return
	}
	defer f.Close()
	if _, err := in.line.WriteHistory(f); err != nil {
		log.Debug().Err(err).Msg("Saving input history failed")
	}
}

// Close saves history and restores the terminal.
func (in *lineInput) Close() {
	in.saveHistory()
	in.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession is the REPL state between prompts.
type chatSession struct {
	app      *App
	env      *commands.Context
	out      io.Writer
	renderer *glamour.TermRenderer

	// attachment is held from /attach until the next submission.
	attachment *model.Attachment

	speakReplies bool
	lastPersist  error
}

func newChatSession(app *App, out io.Writer) *chatSession {
	s := &chatSession{
		app:          app,
		env:          app.CommandContext(),
		out:          out,
		speakReplies: app.Config.UI.SpeakReplies,
	}
	if app.Config.UI.Markdown && IsStdoutTTY() {
		r, err := newMarkdownRenderer(GetTerminalWidth())
		if err != nil {
			log.Warn().Err(err).Msg("Markdown rendering disabled")
		} else {
			s.renderer = r
		}
	}
	return s
}

// handleLine processes one line of input and reports whether to exit.
func (s *chatSession) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case commands.IsCommand(line):
		return s.runCommand(ctx, line)
	case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
		return true
	}
	s.submit(ctx, line)
	return false
}

func (s *chatSession) runCommand(ctx context.Context, line string) bool {
	s.env.Attachment = s.attachment
	res, err := s.app.Registry.Execute(ctx, s.env, line)
	if err != nil {
		DisplayError(s.out, err)
		return false
	}
	if res.Output != "" {
		fmt.Fprintln(s.out, res.Output)
	}

	switch res.Action {
	case commands.ActionQuit:
		return true
	case commands.ActionRefresh:
		if conv, err := s.app.Repo.Active(); err == nil {
			s.printConversation(conv)
		}
	case commands.ActionAttach:
		s.attachment = res.Attachment
	case commands.ActionDetach:
		s.attachment = nil
	case commands.ActionSubmit:
		s.submit(ctx, res.Text)
	}
	s.checkPersistence()
	return false
}

// submit sends a turn and waits for it to settle.
func (s *chatSession) submit(ctx context.Context, text string) {
	turn, err := s.app.Orchestrator.Submit(ctx, text, s.attachment, s.app.Settings.Snapshot())
	if err != nil {
		DisplayError(s.out, err)
		return
	}
	if turn == nil {
		return
	}
	s.attachment = nil

	fmt.Fprintln(s.out, DimStyle.Render("..."))
	outcome, err := turn.Wait(ctx)
	if err != nil {
		fmt.Fprintln(s.out, WarningStyle.Render("[Interrupted] the reply will still be saved to the conversation"))
		return
	}
	s.printOutcome(outcome)
	s.checkPersistence()
}

func (s *chatSession) printOutcome(o orchestrator.Outcome) {
	if o.Dropped {
		fmt.Fprintln(s.out, WarningStyle.Render("The conversation was deleted before the reply arrived; reply discarded."))
		return
	}
	fmt.Fprintln(s.out, messageLabel(o.Reply))
	fmt.Fprintln(s.out, renderReply(s.renderer, o.Reply))
	fmt.Fprintln(s.out)

	if s.speakReplies && o.Succeeded() && s.app.Speaker != nil {
		s.app.Speaker.Speak(o.Reply.Text, s.app.Settings.Snapshot().Voice)
	}
}

// checkPersistence warns once per new store failure.
func (s *chatSession) checkPersistence() {
	err := s.app.Repo.LastPersistError()
	if err == nil || err == s.lastPersist {
		return
	}
	s.lastPersist = err
	fmt.Fprintf(s.out, "%s %v (changes are kept for this session)\n", WarningStyle.Render("[Warning]"), err)
}

func (s *chatSession) printConversation(conv model.Conversation) {
	fmt.Fprintln(s.out, TitleStyle.Render(conv.GetTitle()))
	for _, msg := range conv.Messages {
		fmt.Fprintln(s.out, messageLabel(msg))
		if msg.Attachment != nil {
			fmt.Fprintln(s.out, DimStyle.Render("[image: "+msg.Attachment.MIMEType+"]"))
		}
		fmt.Fprintln(s.out, renderReply(s.renderer, msg))
		fmt.Fprintln(s.out)
	}
}

func (s *chatSession) printWelcome() {
	snap := s.app.Settings.Snapshot()
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, TitleStyle.Render("parley"))
	fmt.Fprintln(s.out, RenderSeparator(30))
	fmt.Fprintln(s.out, RenderField("Model:", snap.Model))
	fmt.Fprintln(s.out, RenderField("API key:", snap.MaskedCredential()))
	if conv, err := s.app.Repo.Active(); err == nil {
		fmt.Fprintln(s.out, RenderField("Conversation:", fmt.Sprintf("%s (%d messages)", conv.GetTitle(), conv.MessageCount())))
	}
	if !snap.HasCredential() {
		fmt.Fprintln(s.out, WarningStyle.Render("No API key set. Use /key <api-key> before sending a message."))
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, DimStyle.Render("Type a message and press Enter. /help lists commands, Ctrl+D exits."))
	fmt.Fprintln(s.out)
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// runChat runs the REPL until the user exits or ctx is cancelled.
func runChat(ctx context.Context, app *App, out io.Writer) error {
	session := newChatSession(app, out)

	dir, err := app.Config.DataDir()
	if err != nil {
		return err
	}
	input := newLineInput(filepath.Join(dir, HistoryFileName), app.Completer().CompleteLine)
	defer input.Close()

	session.printWelcome()
	for ctx.Err() == nil {
		line, err := input.ReadLine(chatPrompt)
		if err != nil {
			// Ctrl+C on an empty prompt and Ctrl+D both leave.
			if err != liner.ErrPromptAborted && err != io.EOF {
				log.Debug().Err(err).Msg("Prompt failed")
			}
			break
		}
		if session.handleLine(ctx, line) {
			break
		}
	}
	fmt.Fprintln(out, DimStyle.Render("Goodbye."))
	return nil
}
