// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// HELP
// =============================================================================

// GenerateHelpText lists visible commands by category.
func GenerateHelpText(r *Registry) string {
	var sb strings.Builder
	sb.WriteString("Commands:\n")

	groups := r.ByCategory()
	categories := append([]string(nil), categoryOrder...)
	for name := range groups {
		if !slices.Contains(categories, name) {
			categories = append(categories, name)
		}
	}

	for _, category := range categories {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s\n", category)
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			fmt.Fprintf(&sb, "  %s %s\n", util.PadWidth(usage, 44), cmd.Description)
		}
	}

	sb.WriteString("\nAnything else you type is sent to the model.")
	return sb.String()
}

// CommandHelp describes one command in detail.
func CommandHelp(cmd *Command) string {
	var sb strings.Builder
	usage := cmd.Usage
	if usage == "" {
		usage = cmd.Name
	}
	fmt.Fprintf(&sb, "%s\n  %s\n", usage, cmd.Description)
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(&sb, "  Aliases: %s\n", strings.Join(cmd.Aliases, ", "))
	}
	for _, arg := range cmd.Args {
		req := "optional"
		if arg.Required {
			req = "required"
		}
		line := fmt.Sprintf("  %s (%s): %s", arg.Name, req, arg.Description)
		if len(arg.Values) > 0 {
			line += " [" + strings.Join(arg.Values, ", ") + "]"
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// =============================================================================
// STATUS
// =============================================================================

// GenerateStatusText summarizes settings, storage and turn state.
func GenerateStatusText(env *Context) string {
	s := env.Settings.Snapshot()

	var sb strings.Builder
	sb.WriteString("Status\n")

	modelLine := s.Model
	if info, ok := model.GetModelInfo(s.Model); ok {
		modelLine = fmt.Sprintf("%s (%s, %s)", s.Model, info.Name, info.ContextString())
	}
	fmt.Fprintf(&sb, "  Model:         %s\n", modelLine)
	fmt.Fprintf(&sb, "  %s\n", credentialStatus(env.Settings))

	system := "(none)"
	if s.SystemInstructions != "" {
		system = util.TruncateRunes(util.SingleLine(s.SystemInstructions), 50)
	}
	fmt.Fprintf(&sb, "  System:        %s\n", system)

	active, _ := env.active()
	fmt.Fprintf(&sb, "  Conversations: %d\n", env.Repo.Len())
	fmt.Fprintf(&sb, "  Active:        %s (%d messages)\n", active.GetTitle(), active.MessageCount())

	if env.Attachment != nil {
		fmt.Fprintf(&sb, "  Attachment:    %s pending\n", env.Attachment.MIMEType)
	}

	if env.Orchestrator != nil {
		fmt.Fprintf(&sb, "  Turn:          %s\n", env.Orchestrator.State())
		if last, ok := env.Orchestrator.LastOutcome(); ok {
			fmt.Fprintf(&sb, "  Last turn:     %s in %s\n", last.State, last.Duration.Round(time.Millisecond))
		}
	}

	if err := env.Repo.LastPersistError(); err != nil {
		fmt.Fprintf(&sb, "  Storage:       last write failed: %v\n", err)
	} else {
		sb.WriteString("  Storage:       ok\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// =============================================================================
// LISTINGS
// =============================================================================

// FormatConversationList numbers conversations from 1 and marks the active
// one with "*".
func FormatConversationList(convs []model.Conversation, activeID string) string {
	var sb strings.Builder
	for i, conv := range convs {
		marker := " "
		if conv.ID == activeID {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %3d. %s  %s  %d msg\n",
			marker, i+1,
			util.PadWidth(conv.GetTitle(), 32),
			shortID(conv.ID),
			conv.MessageCount())
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatTranscript renders a conversation as plain text.
func FormatTranscript(conv model.Conversation) string {
	if conv.IsEmpty() {
		return fmt.Sprintf("%s\n(no messages yet)", conv.GetTitle())
	}

	var sb strings.Builder
	sb.WriteString(conv.GetTitle())
	sb.WriteString("\n")
	for _, msg := range conv.Messages {
		sb.WriteString("\n")
		label := msg.Role.DisplayName()
		if msg.IsError {
			label = "Error"
		}
		if !msg.Timestamp.IsZero() {
			label += " [" + msg.Timestamp.Local().Format("15:04") + "]"
		}
		sb.WriteString(label + ":\n")
		if msg.Attachment != nil {
			sb.WriteString("[image: " + msg.Attachment.MIMEType + "]\n")
		}
		if msg.Text != "" {
			sb.WriteString(msg.Text + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatModelList shows the catalog with the current model marked.
func FormatModelList(current string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current model: %s\n\nAvailable:\n", current)

	names := model.ModelShortNames()
	sort.Strings(names)
	for _, name := range names {
		info, _ := model.GetModelInfo(name)
		marker := " "
		if info.ID == current {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %-12s %-26s %s\n", marker, name, info.ID, info.Description)
	}
	sb.WriteString("\nAny full model id also works, or provider:model (e.g. openai:gpt-4.1).")
	return sb.String()
}

// FormatVoice describes a voice profile.
func FormatVoice(v settings.VoiceProfile) string {
	name := v.Voice
	if name == "" {
		name = "(default)"
	}
	return fmt.Sprintf("Voice: language %s, pitch %.2g, rate %.2g, voice %s", v.Language, v.Pitch, v.Rate, name)
}
