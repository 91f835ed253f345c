// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the parley command tree on cobra.
//
// Every command loads configuration (file, then PARLEY_* environment, then
// flags), initialises zerolog and builds an App that wires storage,
// settings, the conversation repository, the model gateway and the turn
// orchestrator together.
//
// # Commands
//
//	parley                  start the interface named by ui.mode
//	parley chat             line-oriented chat with history and completion
//	parley tui              full-screen interface
//	parley list|search      list or search conversations
//	parley show <ref>       print a transcript
//	parley export <ref>     export to Markdown or JSON, optionally diagrams
//	parley delete|rename    manage conversations
//	parley key              set, clear or inspect the API key
//	parley model [name]     show or select the model
//	parley config ...       show, init, get and set configuration
//	parley doctor           health checks
//
// A conversation <ref> is a list number, an id prefix or a title fragment.
//
// # Exit Codes
//
//	0  success
//	1  general error
//	2  usage error
//	3  invalid configuration
//	7  conversation not found
package cli
