// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - View and edit config.toml.
//
// Subcommands:
//   show (default)      Display the effective configuration
//   path                Print the config file path
//   init [--force]      Write a default config file
//   get <key>           Print one value
//   set <key> <value>   Change one value and save
//
// Keys use dot notation, e.g. gateway.timeout_secs or ui.mode.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/config"
)

// configFilePath is the file the config subcommands operate on.
func (r *runner) configFilePath() (string, error) {
	if r.flags.configPath != "" {
		return r.flags.configPath, nil
	}
	return config.ConfigPath()
}

// readConfigFile loads the file for editing, or defaults if it does not
// exist yet. Environment overrides are not applied.
func (r *runner) readConfigFile() (*config.Config, string, error) {
	path, err := r.configFilePath()
	if err != nil {
		return nil, "", err
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return config.Default(), path, nil
	}
	cfg, err := config.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newConfigCommand(r *runner) *cobra.Command {
	show := func(cmd *cobra.Command, args []string) error {
		cfg, err := r.flags.loadConfig()
		if err != nil {
			return err
		}
		path, _ := r.configFilePath()
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, TitleStyle.Render("parley configuration"))
		fmt.Fprintln(out, RenderSeparator())
		fmt.Fprint(out, cfg.String())
		fmt.Fprintln(out, RenderSeparator())
		fmt.Fprintf(out, "Config file: %s\n", path)
		return nil
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Args:  noArgs,
		RunE:  show,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration (file, env and flags)",
		Args:  noArgs,
		RunE:  show,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := r.configFilePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("(file does not exist; run `parley config init`)"))
			}
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := r.configFilePath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return &UsageError{Message: path + " already exists", Usage: "parley config init --force"}
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.flags.loadConfig()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return &UsageError{Message: err.Error(), Usage: "keys: " + strings.Join(config.GetAllKeys(), ", ")}
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration value and save",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := r.readConfigFile()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return &UsageError{Message: err.Error(), Usage: "keys: " + strings.Join(config.GetAllKeys(), ", ")}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %v\n", SuccessStyle.Render("[OK]"), args[0], args[1])
			return nil
		},
	})
	return cmd
}
