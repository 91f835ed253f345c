// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// key_cmd.go - API key and model selection.
//
// Examples:
//   parley key set              Prompt for the key without echo
//   parley key set AIza...      Set the key from an argument
//   parley key status           Show where the key comes from
//   parley key clear
//   parley model                List models
//   parley model sonnet         Switch model

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/settings"
)

func newKeyCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the API key",
		Long: `Manage the API key sent to the model provider.

The key is stored with the conversations. ` + config.EnvAPIKey + ` overrides it
for a single process and is never saved.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(false, func(app *App) error {
				return printKeyStatus(cmd, app.Settings)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [api-key]",
		Short: "Store an API key (prompts when omitted)",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = strings.TrimSpace(args[0])
			} else {
				var err error
				if key, err = readSecret("API key: "); err != nil {
					return err
				}
			}
			if key == "" {
				return &UsageError{Message: "API key must not be blank", Usage: cmd.UseLine()}
			}
			return r.withApp(false, func(app *App) error {
				if err := app.Settings.SetCredential(key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s API key saved (%s).\n",
					SuccessStyle.Render("[OK]"), settings.MaskCredential(key))
				if app.Settings.CredentialSource() == settings.SourceEnv {
					fmt.Fprintln(cmd.OutOrStdout(), WarningStyle.Render(config.EnvAPIKey+" is set and takes precedence."))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(false, func(app *App) error {
				if err := app.Settings.ClearCredential(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s API key removed.\n", SuccessStyle.Render("[OK]"))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a key is configured",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(false, func(app *App) error {
				return printKeyStatus(cmd, app.Settings)
			})
		},
	})
	return cmd
}

func printKeyStatus(cmd *cobra.Command, mgr *settings.Manager) error {
	out := cmd.OutOrStdout()
	snap := mgr.Snapshot()

	var source string
	switch mgr.CredentialSource() {
	case settings.SourceEnv:
		source = config.EnvAPIKey
	case settings.SourceStore:
		source = "stored"
	default:
		source = "none"
	}
	fmt.Fprintln(out, RenderField("API key:", snap.MaskedCredential()))
	fmt.Fprintln(out, RenderField("Source:", source))
	return nil
}

func newModelCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "model [name]",
		Short: "Show or change the model",
		Long: `Without an argument, list the known models with the current one marked.
With a name, switch to it. Short names (flash, sonnet, gpt-4o), full model
ids and provider:model are accepted.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(false, func(app *App) error {
				line := "/model " + strings.Join(args, " ")
				res, err := app.Registry.Execute(cmd.Context(), app.CommandContext(), line)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Output)
				return nil
			})
		},
	}
}
