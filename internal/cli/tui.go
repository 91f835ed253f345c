// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/ui/chat"
)

// runTUI runs the full-screen interface until the user quits. Edits to the
// config file are picked up while it runs.
func runTUI(ctx context.Context, r *runner, app *App) error {
	if err := RequiresTTY("start the full-screen interface"); err != nil {
		return err
	}
	if !IsStdoutTTY() {
		return &TTYRequiredError{Operation: "draw the full-screen interface"}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deps := chat.Deps{
		Repo:         app.Repo,
		Settings:     app.Settings,
		Orchestrator: app.Orchestrator,
		Registry:     app.Registry,
		Completer:    app.Completer(),
		Env:          app.CommandContext(),
		SpeakReplies: app.Config.UI.SpeakReplies,
		Markdown:     app.Config.UI.Markdown,
	}
	if app.Speaker != nil {
		deps.Speaker = app.Speaker
	}
	if path, err := r.configFilePath(); err == nil {
		deps.ConfigUpdates = watchConfig(ctx, path, r.flags.loadConfig)
	}
	return chat.Run(ctx, deps)
}

// watchConfig reloads the config file on change and forwards its UI
// section until ctx is cancelled. It returns nil when the file cannot be
// watched; the screen then runs with the startup settings.
func watchConfig(ctx context.Context, path string, load func() (*config.Config, error)) <-chan config.UIConfig {
	updates := make(chan config.UIConfig, 1)
	w, err := config.NewWatcher(path, load, func(cfg *config.Config) {
		select {
		case updates <- cfg.UI:
		case <-ctx.Done():
		}
	})
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Config reload disabled")
		return nil
	}

	go func() {
		defer close(updates)
		if err := w.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("Config watcher stopped")
		}
	}()
	return updates
}
