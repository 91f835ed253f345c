// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/orchestrator"
)

// TurnSettledMsg is sent from the orchestrator's settle hook when a turn
// finishes. The reply is already in the repository.
type TurnSettledMsg struct {
	Outcome orchestrator.Outcome
}

// commandResultMsg carries the result of a slash command, which runs off
// the update loop because /export, /diagrams and /listen may block.
type commandResultMsg struct {
	input  string
	result commands.Result
	err    error
}

// ConfigReloadedMsg carries the UI section of a config file that changed on
// disk while the screen was running.
type ConfigReloadedMsg struct {
	UI config.UIConfig
}
