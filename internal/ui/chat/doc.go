// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat implements parley's full-screen chat interface on Bubble Tea.

# Layout

The screen has a conversation sidebar (hidden below 60 columns), a header
with the active conversation's title and model, a scrolling transcript, a
notice line for command output and failures, a status line, the input box
and a key help footer.

# Turns

Enter hands the input to the orchestrator, which records the user message
and calls the model in the background. The orchestrator's settle hook
delivers a TurnSettledMsg to the program when the reply (or an error
notice) has been appended; the screen then re-renders from the repository.
Only one turn is pending at a time. Switching conversations while a turn is
pending is allowed and the reply still lands in the conversation it was
sent from.

# Commands

Input starting with "/" runs through the shared command registry in a
tea.Cmd so slow commands (export, diagrams, voice input) never block
rendering. Tab completes command names and arguments. Output longer than a
few lines replaces the transcript until Esc.

# Usage

	err := chat.Run(ctx, chat.Deps{
		Repo:         repo,
		Settings:     settings,
		Orchestrator: orch,
		Registry:     commands.NewRegistry(),
		Markdown:     true,
	})
*/
package chat
