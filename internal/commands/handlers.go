// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/gateway"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/speech"
)

// =============================================================================
// NAVIGATION
// =============================================================================

func handleHelp(_ context.Context, env *Context, args []string) (Result, error) {
	if len(args) > 0 {
		name := args[0]
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		cmd := env.registry.Get(name)
		if cmd == nil {
			return Result{}, errors.Wrapf(ErrUnknownCommand, "%s", name)
		}
		return Result{Output: CommandHelp(cmd)}, nil
	}
	return Result{Output: GenerateHelpText(env.registry)}, nil
}

func handleStatus(_ context.Context, env *Context, _ []string) (Result, error) {
	return Result{Output: GenerateStatusText(env)}, nil
}

func handleQuit(context.Context, *Context, []string) (Result, error) {
	return Result{Action: ActionQuit}, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func handleNew(_ context.Context, env *Context, _ []string) (Result, error) {
	env.Repo.Create()
	return Result{Output: "Started a new conversation.", Action: ActionRefresh}, nil
}

func handleList(_ context.Context, env *Context, _ []string) (Result, error) {
	return Result{Output: FormatConversationList(env.Repo.List(), env.Repo.ActiveID())}, nil
}

func handleSwitch(_ context.Context, env *Context, args []string) (Result, error) {
	conv, err := ResolveConversation(env.Repo.List(), args[0])
	if err != nil {
		return Result{}, err
	}
	env.Repo.SetActive(conv.ID)
	return Result{
		Output: fmt.Sprintf("Switched to %q.", conv.GetTitle()),
		Action: ActionRefresh,
	}, nil
}

func handleRename(_ context.Context, env *Context, args []string) (Result, error) {
	title := strings.TrimSpace(args[0])
	env.Repo.Rename(env.Repo.ActiveID(), title)
	return Result{Output: fmt.Sprintf("Renamed to %q.", title), Action: ActionRefresh}, nil
}

func handleDelete(_ context.Context, env *Context, args []string) (Result, error) {
	convs := env.Repo.List()
	target, err := activeOrResolved(env, convs, args)
	if err != nil {
		return Result{}, err
	}
	env.Repo.Delete(target.ID)
	return Result{
		Output: fmt.Sprintf("Deleted %q.", target.GetTitle()),
		Action: ActionRefresh,
	}, nil
}

func handleSearch(_ context.Context, env *Context, args []string) (Result, error) {
	query := strings.TrimSpace(args[0])
	matches := env.Repo.Search(query)
	if len(matches) == 0 {
		return Result{Output: fmt.Sprintf("No conversations match %q.", query)}, nil
	}

	// Show list positions so the result can be fed to /switch.
	positions := make(map[string]int)
	for i, conv := range env.Repo.List() {
		positions[conv.ID] = i + 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d conversation(s) match %q:\n", len(matches), query)
	for _, conv := range matches {
		fmt.Fprintf(&sb, "  %3d. %s  %s\n", positions[conv.ID], conv.GetTitle(), shortID(conv.ID))
	}
	return Result{Output: strings.TrimRight(sb.String(), "\n")}, nil
}

func handleHistory(_ context.Context, env *Context, _ []string) (Result, error) {
	conv, err := env.active()
	if err != nil {
		return Result{}, err
	}
	return Result{Output: FormatTranscript(conv)}, nil
}

func handleExport(_ context.Context, env *Context, args []string) (Result, error) {
	conv, err := env.active()
	if err != nil {
		return Result{}, err
	}

	opts := export.DefaultOptions()
	opts.OutputDir = env.ExportDir
	opts.Model = env.Settings.Snapshot().Model

	format := ""
	if len(args) > 0 {
		format = args[0]
	}
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return Result{}, err
	}

	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: "Exported to " + path}, nil
}

func handleDiagrams(ctx context.Context, env *Context, _ []string) (Result, error) {
	conv, err := env.active()
	if err != nil {
		return Result{}, err
	}
	if len(export.ExtractDiagrams(conv)) == 0 {
		return Result{Output: "No diagrams in this conversation."}, nil
	}

	renderer := env.Renderer
	if renderer == nil {
		renderer = export.SourceRenderer{}
	}
	paths, err := export.WriteDiagrams(ctx, conv, renderer, env.ExportDir)
	if len(paths) == 0 && err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Saved %d diagram(s):", len(paths))
	for _, p := range paths {
		sb.WriteString("\n  " + p)
	}
	if err != nil {
		fmt.Fprintf(&sb, "\nSome diagrams failed: %v", err)
	}
	return Result{Output: sb.String()}, nil
}

// =============================================================================
// INPUT
// =============================================================================

func handleAttach(_ context.Context, env *Context, args []string) (Result, error) {
	path := strings.TrimSpace(args[0])
	if tokens := ParseArgs(path); len(tokens) == 1 {
		path = tokens[0]
	}

	if strings.EqualFold(path, "clear") {
		if env.Attachment == nil {
			return Result{Output: "No attachment to clear.", Action: ActionDetach}, nil
		}
		return Result{Output: "Attachment cleared.", Action: ActionDetach}, nil
	}

	att, err := LoadAttachment(path)
	if err != nil {
		return Result{}, err
	}
	size := formatFileSize(int64(len(att.Data)) * 3 / 4)
	return Result{
		Output:     fmt.Sprintf("Attached %s (%s, %s). It will be sent with your next message.", filepath.Base(path), att.MIMEType, size),
		Action:     ActionAttach,
		Attachment: att,
	}, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func handleKey(_ context.Context, env *Context, args []string) (Result, error) {
	arg := ""
	if len(args) > 0 {
		arg = strings.TrimSpace(args[0])
	}

	switch strings.ToLower(arg) {
	case "", "status":
		return Result{Output: credentialStatus(env.Settings)}, nil
	case "clear":
		if err := env.Settings.ClearCredential(); err != nil {
			return Result{}, err
		}
		out := "API key cleared."
		if env.Settings.CredentialSource() == settings.SourceEnv {
			out += " The key from the environment still applies."
		}
		return Result{Output: out}, nil
	}

	if err := env.Settings.SetCredential(arg); err != nil {
		return Result{}, err
	}
	out := "API key saved: " + settings.MaskCredential(arg)
	if env.Settings.CredentialSource() == settings.SourceEnv {
		out += " (the key from the environment takes precedence)"
	}
	return Result{Output: out}, nil
}

func credentialStatus(m *settings.Manager) string {
	s := m.Snapshot()
	switch m.CredentialSource() {
	case settings.SourceEnv:
		return "API key: " + s.MaskedCredential() + " (from environment)"
	case settings.SourceStore:
		return "API key: " + s.MaskedCredential()
	default:
		return "API key: (not set). Use /key <api-key> to set one."
	}
}

func handleModel(_ context.Context, env *Context, args []string) (Result, error) {
	if len(args) == 0 {
		return Result{Output: FormatModelList(env.Settings.Snapshot().Model)}, nil
	}

	id := model.ResolveModelID(args[0])
	provider, _, err := gateway.ResolveProvider(id)
	if err != nil {
		return Result{}, err
	}
	if err := env.Settings.SetModel(id); err != nil {
		return Result{}, err
	}
	return Result{Output: fmt.Sprintf("Model set to %s (%s).", id, provider)}, nil
}

func handleSystem(_ context.Context, env *Context, args []string) (Result, error) {
	if len(args) == 0 {
		current := env.Settings.Snapshot().SystemInstructions
		if current == "" {
			return Result{Output: "No system instructions set."}, nil
		}
		return Result{Output: "System instructions:\n" + current}, nil
	}

	text := strings.TrimSpace(args[0])
	if strings.EqualFold(text, "clear") {
		text = ""
	}
	if err := env.Settings.SetSystemInstructions(text); err != nil {
		return Result{}, err
	}
	if text == "" {
		return Result{Output: "System instructions cleared."}, nil
	}
	return Result{Output: "System instructions updated."}, nil
}

// =============================================================================
// VOICE
// =============================================================================

func handleVoice(_ context.Context, env *Context, args []string) (Result, error) {
	voice := env.Settings.Snapshot().Voice
	if len(args) == 0 {
		return Result{Output: FormatVoice(voice)}, nil
	}

	field := strings.ToLower(args[0])
	if field == "reset" {
		voice = settings.DefaultVoice()
	} else {
		if len(args) < 2 {
			return Result{}, &ValidationError{Command: "/voice", Arg: "value", Message: "required argument missing", Expected: "a value for " + field}
		}
		value := args[1]
		switch field {
		case "language":
			voice.Language = value
		case "name":
			voice.Voice = value
		case "pitch", "rate":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil || f < settings.MinVoiceScale || f > settings.MaxVoiceScale {
				return Result{}, &ValidationError{
					Command:  "/voice",
					Arg:      field,
					Message:  "invalid value",
					Got:      value,
					Expected: fmt.Sprintf("a number from %.1f to %.1f", settings.MinVoiceScale, settings.MaxVoiceScale),
				}
			}
			if field == "pitch" {
				voice.Pitch = f
			} else {
				voice.Rate = f
			}
		}
	}

	if err := env.Settings.SetVoice(voice); err != nil {
		return Result{}, err
	}
	return Result{Output: FormatVoice(env.Settings.Snapshot().Voice)}, nil
}

func handleSpeak(_ context.Context, env *Context, _ []string) (Result, error) {
	if env.Speaker == nil {
		return Result{}, errors.Wrap(ErrUnavailable, "speech output")
	}
	conv, err := env.active()
	if err != nil {
		return Result{}, err
	}

	for i := len(conv.Messages) - 1; i >= 0; i-- {
		msg := conv.Messages[i]
		if msg.Role == model.RoleAssistant && !msg.IsError && strings.TrimSpace(msg.Text) != "" {
			env.Speaker.Speak(msg.Text, env.Settings.Snapshot().Voice)
			return Result{Output: "Speaking the last reply."}, nil
		}
	}
	return Result{Output: "Nothing to read yet."}, nil
}

func handleListen(ctx context.Context, env *Context, _ []string) (Result, error) {
	recognizer := env.Recognizer
	if recognizer == nil {
		recognizer = speech.UnsupportedRecognizer{}
	}

	text, err := recognizer.RecognizeOnce(ctx, env.Settings.Snapshot().Voice.Language)
	if err != nil {
		return Result{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, speech.ErrNoSpeech
	}
	return Result{Output: "Heard: " + text, Action: ActionSubmit, Text: text}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// active returns the active conversation. A repaired pointer is logged and
// otherwise ignored since the repository already recovered.
func (c *Context) active() (model.Conversation, error) {
	conv, err := c.Repo.Active()
	if err != nil {
		c.Logger.Warn().Err(err).Msg("active conversation was repaired")
	}
	return conv, nil
}

func activeOrResolved(env *Context, convs []model.Conversation, args []string) (model.Conversation, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return env.active()
	}
	return ResolveConversation(convs, args[0])
}

// ResolveConversation finds a conversation by 1-based list position or by a
// unique id prefix.
func ResolveConversation(convs []model.Conversation, ref string) (model.Conversation, error) {
	ref = strings.TrimSpace(ref)

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(convs) {
			return model.Conversation{}, errors.Wrapf(ErrNoMatch, "#%d (have %d)", n, len(convs))
		}
		return convs[n-1], nil
	}

	var found []model.Conversation
	lower := strings.ToLower(ref)
	for _, conv := range convs {
		if conv.ID == ref {
			return conv, nil
		}
		if strings.HasPrefix(strings.ToLower(conv.ID), lower) {
			found = append(found, conv)
		}
	}

	switch len(found) {
	case 0:
		return model.Conversation{}, errors.Wrapf(ErrNoMatch, "%q", ref)
	case 1:
		return found[0], nil
	default:
		return model.Conversation{}, errors.Wrapf(ErrAmbiguous, "%q matches %d conversations", ref, len(found))
	}
}
