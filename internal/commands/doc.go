// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash commands shared by the REPL and the
// full-screen UI.
//
// Handlers never print. They return a Result whose Action tells the front
// end what to do next (quit, redraw, submit dictated text, hold an
// attachment).
//
// # Key Types
//
//   - Registry: Command registry with all built-in commands
//   - Context: Repository, settings and collaborators handed to handlers
//   - ParseResult: Parsed command with name and arguments
//   - Completer: Tab completion for commands and arguments
//
// # Usage
//
//	reg := commands.NewRegistry()
//	res, err := reg.Execute(ctx, env, "/rename Trip planning")
//
// Completions:
//
//	completer := commands.NewCompleter(reg)
//	completer.Complete("/mo", 3) // "/model"
package commands
