// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/config"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// runner holds state shared by every subcommand of one invocation.
type runner struct {
	flags globalFlags
	info  BuildInfo

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	appOpts []appOption
}

// withApp loads configuration, initialises logging and opens the app for
// the duration of fn.
func (r *runner) withApp(interactive bool, fn func(*App) error) error {
	cfg, err := r.flags.loadConfig()
	if err != nil {
		return err
	}
	closeLog, err := initLogging(cfg, interactive)
	if err != nil {
		return err
	}
	defer closeLog()

	app, err := newApp(cfg, r.appOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Closing store failed")
		}
	}()
	return fn(app)
}

// NewRootCommand builds the parley command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	return newRootCommand(&runner{
		info:   info,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	})
}

func newRootCommand(r *runner) *cobra.Command {
	root := &cobra.Command{
		Use:   "parley",
		Short: "Chat with hosted language models from the terminal",
		Long: `parley keeps several independent conversations with Gemini, OpenAI and
Anthropic models, persists them locally and takes turns with the model one
request at a time.

Run without a subcommand to start the interface selected by ui.mode
(repl by default).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(true, func(app *App) error {
				if strings.EqualFold(app.Config.UI.Mode, "tui") {
					return runTUI(cmd.Context(), r, app)
				}
				return runChat(cmd.Context(), app, r.stdout)
			})
		},
	}
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &UsageError{Message: err.Error(), Usage: c.UseLine()}
	})
	root.SetIn(r.stdin)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.Version = r.info.Version
	root.SetVersionTemplate("parley {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&r.flags.configPath, "config", "", "config file (default ~/.parley/config.toml)")
	pf.StringVar(&r.flags.dataDir, "data-dir", "", "directory for conversations and settings")
	pf.StringVar(&r.flags.store, "store", "", "storage backend: file, bolt, sqlite, memory")
	pf.StringVar(&r.flags.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")
	pf.StringVar(&r.flags.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&r.flags.logFile, "log-file", "", "log file (\"-\" disables file logging)")
	pf.StringVarP(&r.flags.model, "model", "m", "", "model for new turns when none is saved")

	root.AddCommand(
		newChatCommand(r),
		newTUICommand(r),
		newListCommand(r),
		newShowCommand(r),
		newSearchCommand(r),
		newExportCommand(r),
		newDeleteCommand(r),
		newRenameCommand(r),
		newKeyCommand(r),
		newModelCommand(r),
		newConfigCommand(r),
		newDoctorCommand(r),
		newVersionCommand(r),
	)
	return root
}

func newChatCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start the line-oriented chat. Type a message and press Enter; lines
starting with / are commands (/help lists them). Tab completes commands,
models and conversation references. Ctrl+D exits.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(true, func(app *App) error {
				return runChat(cmd.Context(), app, r.stdout)
			})
		},
	}
}

func newTUICommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen interface",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(true, func(app *App) error {
				return runTUI(cmd.Context(), r, app)
			})
		},
	}
}

func newVersionCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "parley %s\n", r.info.Version)
			if r.info.GitCommit != "" {
				fmt.Fprintf(out, "  commit: %s\n", r.info.GitCommit)
			}
			if r.info.BuildDate != "" {
				fmt.Fprintf(out, "  built:  %s\n", r.info.BuildDate)
			}
			if path, err := config.ConfigPath(); err == nil {
				fmt.Fprintf(out, "  config: %s\n", path)
			}
		},
	}
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, info BuildInfo) int {
	return execute(ctx, NewRootCommand(info), os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, stderr io.Writer) int {
	if err := root.ExecuteContext(ctx); err != nil {
		DisplayError(stderr, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
