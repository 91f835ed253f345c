// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations_cmd.go - Non-interactive conversation management.
//
// Conversations are referenced by 1-based position in `parley list` or by a
// unique id prefix, the same references the /switch command accepts.
//
// Examples:
//   parley list
//   parley list --json
//   parley show 2
//   parley search "rate limit"
//   parley export 1 --format json --output ~/exports
//   parley rename 3 "Trip planning"
//   parley delete 3f2a

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// ARGUMENT VALIDATORS
// =============================================================================

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &UsageError{Message: fmt.Sprintf("unexpected argument %q", args[0]), Usage: cmd.UseLine()}
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &UsageError{Message: fmt.Sprintf("expected %d argument(s), got %d", n, len(args)), Usage: cmd.UseLine()}
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return &UsageError{Message: fmt.Sprintf("expected at least %d argument(s)", n), Usage: cmd.UseLine()}
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return &UsageError{Message: fmt.Sprintf("expected at most %d argument(s)", n), Usage: cmd.UseLine()}
		}
		return nil
	}
}

// =============================================================================
// LIST / SEARCH
// =============================================================================

// conversationSummary is the JSON shape of list and search output.
type conversationSummary struct {
	Index     int       `json:"index"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

func summarize(all []model.Conversation, shown []model.Conversation, activeID string) []conversationSummary {
	position := make(map[string]int, len(all))
	for i, conv := range all {
		position[conv.ID] = i + 1
	}
	out := make([]conversationSummary, 0, len(shown))
	for _, conv := range shown {
		out = append(out, conversationSummary{
			Index:     position[conv.ID],
			ID:        conv.ID,
			Title:     conv.GetTitle(),
			Messages:  conv.MessageCount(),
			CreatedAt: conv.CreatedAt,
			Active:    conv.ID == activeID,
		})
	}
	return out
}

func writeSummaries(w io.Writer, rows []conversationSummary, asJSON bool) error {
	if asJSON {
		return outputJSON(w, rows)
	}
	for _, row := range rows {
		marker := " "
		if row.Active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %3d. %s  %s  %s\n",
			marker,
			row.Index,
			DimStyle.Render(shortID(row.ID)),
			util.PadWidth(util.SingleLine(row.Title), 28),
			DimStyle.Render(fmt.Sprintf("%d msg", row.Messages)))
	}
	return nil
}

func newListCommand(r *runner) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, newest first",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(false, func(app *App) error {
				all := app.Repo.List()
				return writeSummaries(cmd.OutOrStdout(), summarize(all, all, app.Repo.ActiveID()), asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newSearchCommand(r *runner) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find conversations by title or message text",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return r.withApp(false, func(app *App) error {
				found := app.Repo.Search(query)
				if len(found) == 0 && !asJSON {
					fmt.Fprintf(cmd.OutOrStdout(), "No conversations match %q.\n", query)
					return nil
				}
				return writeSummaries(cmd.OutOrStdout(), summarize(app.Repo.List(), found, app.Repo.ActiveID()), asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

// =============================================================================
// SHOW
// =============================================================================

func newShowCommand(r *runner) *cobra.Command {
	var (
		asJSON bool
		render bool
	)
	cmd := &cobra.Command{
		Use:   "show <ref>",
		Short: "Print a conversation transcript",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(false, func(app *App) error {
				conv, err := commands.ResolveConversation(app.Repo.List(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case asJSON:
					return outputJSON(out, conv)
				case render && app.Config.UI.Markdown:
					return showRendered(out, conv)
				default:
					fmt.Fprintln(out, commands.FormatTranscript(conv))
					return nil
				}
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the stored JSON document")
	cmd.Flags().BoolVar(&render, "render", IsStdoutTTY(), "render replies as Markdown")
	return cmd
}

// showRendered prints the transcript with assistant replies rendered by
// glamour.
func showRendered(w io.Writer, conv model.Conversation) error {
	renderer, err := newMarkdownRenderer(GetTerminalWidth())
	if err != nil {
		return err
	}
	fmt.Fprintln(w, TitleStyle.Render(conv.GetTitle()))
	for _, msg := range conv.Messages {
		fmt.Fprintln(w)
		fmt.Fprintln(w, messageLabel(msg))
		if msg.Attachment != nil {
			fmt.Fprintln(w, DimStyle.Render("[image: "+msg.Attachment.MIMEType+"]"))
		}
		fmt.Fprintln(w, renderReply(renderer, msg))
	}
	return nil
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCommand(r *runner) *cobra.Command {
	var (
		format   string
		output   string
		toStdout bool
		diagrams bool
	)
	cmd := &cobra.Command{
		Use:   "export <ref>",
		Short: "Export a conversation to Markdown or JSON",
		Long: `Export a conversation to a file named after its title.

With --diagrams, mermaid blocks in assistant replies are also written next
to the export (rendered to SVG when mmdc is installed).`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(false, func(app *App) error {
				conv, err := commands.ResolveConversation(app.Repo.List(), args[0])
				if err != nil {
					return err
				}

				opts := export.DefaultOptions()
				opts.OutputDir = output
				opts.Model = app.Settings.Snapshot().Model
				exporter, err := export.ForFormat(format, opts)
				if err != nil {
					return &UsageError{Message: err.Error(), Usage: "--format " + strings.Join(export.Formats(), "|")}
				}

				out := cmd.OutOrStdout()
				if toStdout {
					data, err := exporter.Export(conv)
					if err != nil {
						return err
					}
					_, err = out.Write(data)
					return err
				}

				path, err := export.ExportToFile(conv, exporter, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Exported"), path)

				if diagrams {
					paths, err := export.WriteDiagrams(cmd.Context(), conv, app.Renderer, output)
					for _, p := range paths {
						fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Diagram"), p)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", export.FormatMarkdown, "export format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&output, "output", "o", ".", "output directory")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "write to stdout instead of a file")
	cmd.Flags().BoolVar(&diagrams, "diagrams", false, "also write mermaid diagrams")
	return cmd
}

// =============================================================================
// DELETE / RENAME
// =============================================================================

func newDeleteCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <ref>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(false, func(app *App) error {
				conv, err := commands.ResolveConversation(app.Repo.List(), args[0])
				if err != nil {
					return err
				}
				app.Repo.Delete(conv.ID)
				if err := app.Repo.LastPersistError(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q.\n", conv.GetTitle())
				return nil
			})
		},
	}
}

func newRenameCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <ref> <title>",
		Short: "Rename a conversation and stop automatic titling",
		Args:  minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return &UsageError{Message: "title must not be blank", Usage: cmd.UseLine()}
			}
			return r.withApp(false, func(app *App) error {
				conv, err := commands.ResolveConversation(app.Repo.List(), args[0])
				if err != nil {
					return err
				}
				app.Repo.Rename(conv.ID, title)
				if err := app.Repo.LastPersistError(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed to %q.\n", title)
				return nil
			})
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// newMarkdownRenderer returns a glamour renderer for the given width.
func newMarkdownRenderer(width int) (*glamour.TermRenderer, error) {
	style := glamour.WithAutoStyle()
	if !ColorsEnabled() {
		style = glamour.WithStandardStyle("notty")
	}
	return glamour.NewTermRenderer(style, glamour.WithWordWrap(width-4))
}

// renderReply renders assistant text as Markdown; user text and error
// notices are printed as-is.
func renderReply(renderer *glamour.TermRenderer, msg model.Message) string {
	if renderer == nil || msg.Role != model.RoleAssistant || msg.IsError {
		return msg.Text
	}
	out, err := renderer.Render(msg.Text)
	if err != nil {
		return msg.Text
	}
	return strings.TrimRight(out, "\n")
}

func messageLabel(msg model.Message) string {
	switch {
	case msg.IsError:
		return ErrorStyle.Render("[Error]")
	case msg.Role == model.RoleUser:
		return UserLabelStyle.Render(msg.Role.DisplayName())
	default:
		return AssistantLabelStyle.Render(msg.Role.DisplayName())
	}
}
