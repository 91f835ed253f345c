// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import "github.com/jeranaias/parley/internal/export"

// Help categories, in display order.
var categoryOrder = []string{"Conversation", "Input", "Settings", "Voice", "Navigation"}

func (r *Registry) registerBuiltins() {
	// Navigation
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show help and available commands",
		Usage:       "/help [command]",
		Args: []ArgDef{
			{Name: "command", Type: ArgTypeString, Description: "Command to describe"},
		},
		Category: "Navigation",
		Handler:  handleHelp,
	})

	r.Register(&Command{
		Name:        "/status",
		Description: "Show model, credential and conversation status",
		Category:    "Navigation",
		Handler:     handleStatus,
	})

	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit parley",
		Category:    "Navigation",
		Handler:     handleQuit,
	})

	// Conversation
	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new conversation",
		Category:    "Conversation",
		Handler:     handleNew,
	})

	r.Register(&Command{
		Name:        "/list",
		Aliases:     []string{"/ls"},
		Description: "List conversations, newest first",
		Category:    "Conversation",
		Handler:     handleList,
	})

	r.Register(&Command{
		Name:        "/switch",
		Aliases:     []string{"/sw"},
		Description: "Switch to another conversation",
		Usage:       "/switch <number|id>",
		Args: []ArgDef{
			{Name: "conversation", Required: true, Type: ArgTypeConversation, Description: "List number or id prefix"},
		},
		Category: "Conversation",
		Handler:  handleSwitch,
	})

	r.Register(&Command{
		Name:        "/rename",
		Description: "Rename the active conversation",
		Usage:       "/rename <title>",
		Args: []ArgDef{
			{Name: "title", Required: true, Type: ArgTypeString, Rest: true, Description: "New title"},
		},
		Category: "Conversation",
		Handler:  handleRename,
	})

	r.Register(&Command{
		Name:        "/delete",
		Aliases:     []string{"/rm"},
		Description: "Delete a conversation (the active one by default)",
		Usage:       "/delete [number|id]",
		Args: []ArgDef{
			{Name: "conversation", Type: ArgTypeConversation, Description: "List number or id prefix"},
		},
		Category: "Conversation",
		Handler:  handleDelete,
	})

	r.Register(&Command{
		Name:        "/search",
		Aliases:     []string{"/find"},
		Description: "Search titles and messages",
		Usage:       "/search <text>",
		Args: []ArgDef{
			{Name: "query", Required: true, Type: ArgTypeString, Rest: true, Description: "Text to look for"},
		},
		Category: "Conversation",
		Handler:  handleSearch,
	})

	r.Register(&Command{
		Name:        "/history",
		Description: "Print the active conversation",
		Category:    "Conversation",
		Handler:     handleHistory,
	})

	r.Register(&Command{
		Name:        "/export",
		Description: "Export the active conversation to a file",
		Usage:       "/export [markdown|json]",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: append(export.Formats(), "md"), Description: "Export format"},
		},
		Category: "Conversation",
		Handler:  handleExport,
	})

	r.Register(&Command{
		Name:        "/diagrams",
		Description: "Save mermaid diagrams from the active conversation",
		Category:    "Conversation",
		Handler:     handleDiagrams,
	})

	// Input
	r.Register(&Command{
		Name:        "/attach",
		Description: "Attach an image to the next message",
		Usage:       "/attach <path|clear>",
		Args: []ArgDef{
			{Name: "path", Required: true, Type: ArgTypeFile, Rest: true, Description: "Image file (png, jpeg, gif, webp)"},
		},
		Category: "Input",
		Handler:  handleAttach,
	})

	// Settings
	r.Register(&Command{
		Name:        "/key",
		Description: "Set, clear or show the API key",
		Usage:       "/key [<api-key>|clear|status]",
		Args: []ArgDef{
			{Name: "key", Type: ArgTypeString, Description: "API key, clear or status"},
		},
		Category: "Settings",
		Handler:  handleKey,
	})

	r.Register(&Command{
		Name:        "/model",
		Aliases:     []string{"/m"},
		Description: "Switch or show the current model",
		Usage:       "/model [name]",
		Args: []ArgDef{
			{Name: "name", Type: ArgTypeModel, Description: "Catalog short name or full model id"},
		},
		Category: "Settings",
		Handler:  handleModel,
	})

	r.Register(&Command{
		Name:        "/system",
		Description: "Show, set or clear the system instructions",
		Usage:       "/system [text|clear]",
		Args: []ArgDef{
			{Name: "text", Type: ArgTypeString, Rest: true, Description: "Instructions sent with every text turn"},
		},
		Category: "Settings",
		Handler:  handleSystem,
	})

	// Voice
	r.Register(&Command{
		Name:        "/voice",
		Description: "Show or change the voice profile",
		Usage:       "/voice [language|pitch|rate|name|reset] [value]",
		Args: []ArgDef{
			{Name: "field", Type: ArgTypeEnum, Values: []string{"language", "pitch", "rate", "name", "reset"}, Description: "Profile field"},
			{Name: "value", Type: ArgTypeString, Description: "New value"},
		},
		Category: "Voice",
		Handler:  handleVoice,
	})

	r.Register(&Command{
		Name:        "/speak",
		Aliases:     []string{"/say"},
		Description: "Read the last reply aloud",
		Category:    "Voice",
		Handler:     handleSpeak,
	})

	r.Register(&Command{
		Name:        "/listen",
		Description: "Dictate a message with the microphone",
		Category:    "Voice",
		Handler:     handleListen,
	})
}
