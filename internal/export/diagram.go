// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// DIAGRAM EXTRACTION
// =============================================================================

// mermaidFence matches ```mermaid fenced blocks in message text.
var mermaidFence = regexp.MustCompile("(?s)```mermaid[ \\t]*\\r?\\n(.*?)```")

// Diagram is one diagram block found in a conversation.
type Diagram struct {
	// MessageIndex is the position of the containing message.
	MessageIndex int
	// Markup is the diagram source without the surrounding fence.
	Markup string
}

// ExtractDiagrams returns the mermaid blocks of the assistant messages in
// conv, in conversation order. Error notices are skipped.
func ExtractDiagrams(conv model.Conversation) []Diagram {
	var out []Diagram
	for i, msg := range conv.Messages {
		if msg.Role != model.RoleAssistant || msg.IsError {
			continue
		}
		for _, m := range mermaidFence.FindAllStringSubmatch(msg.Text, -1) {
			markup := strings.TrimSpace(m[1])
			if markup == "" {
				continue
			}
			out = append(out, Diagram{MessageIndex: i, Markup: markup})
		}
	}
	return out
}

// =============================================================================
// RENDERERS
// =============================================================================

// DiagramRenderer turns diagram markup into a file artifact.
type DiagramRenderer interface {
	Render(ctx context.Context, markup string) ([]byte, error)
	FileExtension() string
}

// SourceRenderer writes the markup itself as a .mmd file that any mermaid
// tool can render later.
type SourceRenderer struct{}

// Render returns the markup with a trailing newline.
func (SourceRenderer) Render(ctx context.Context, markup string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(markup, "\n") + "\n"), nil
}

// FileExtension returns ".mmd".
func (SourceRenderer) FileExtension() string {
	return ".mmd"
}

// DefaultMermaidCommand is the mermaid-cli executable.
const DefaultMermaidCommand = "mmdc"

// CommandRenderer renders SVG images by running mermaid-cli
// ("mmdc -i in.mmd -o out.svg").
type CommandRenderer struct {
	command string
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewCommandRenderer creates a renderer around command. An empty command
// uses DefaultMermaidCommand.
func NewCommandRenderer(command string) *CommandRenderer {
	if command == "" {
		command = DefaultMermaidCommand
	}
	return &CommandRenderer{
		command: command,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Available reports whether the command is on PATH.
func (r *CommandRenderer) Available() bool {
	_, err := exec.LookPath(r.command)
	return err == nil
}

// Render writes the markup to a scratch directory, runs the command and
// returns the produced SVG.
func (r *CommandRenderer) Render(ctx context.Context, markup string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "parley-diagram-")
	if err != nil {
		return nil, errors.Wrap(err, "create scratch dir")
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "diagram.mmd")
	out := filepath.Join(dir, "diagram.svg")
	if err := os.WriteFile(in, []byte(markup), 0600); err != nil {
		return nil, errors.Wrap(err, "write diagram source")
	}
	if output, err := r.run(ctx, r.command, "-i", in, "-o", out); err != nil {
		return nil, errors.Wrapf(err, "%s: %s", r.command, strings.TrimSpace(string(output)))
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, errors.Wrap(err, "read rendered diagram")
	}
	return data, nil
}

// FileExtension returns ".svg".
func (r *CommandRenderer) FileExtension() string {
	return ".svg"
}

// =============================================================================
// WRITING
// =============================================================================

// WriteDiagrams renders every diagram in conv into dir and returns the
// written paths. A diagram that fails to render is logged and skipped; the
// first such error is returned alongside the paths that were written.
func WriteDiagrams(ctx context.Context, conv model.Conversation, renderer DiagramRenderer, dir string) ([]string, error) {
	return writeDiagrams(ctx, conv, renderer, dir, log.Logger)
}

func writeDiagrams(ctx context.Context, conv model.Conversation, renderer DiagramRenderer, dir string, logger zerolog.Logger) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	base := sanitizeFilename(conv.GetTitle())

	var (
		paths    []string
		firstErr error
	)
	for i, d := range ExtractDiagrams(conv) {
		data, err := renderer.Render(ctx, d.Markup)
		if err == nil {
			path := filepath.Join(dir, fmt.Sprintf("%s_diagram_%d%s", base, i+1, renderer.FileExtension()))
			if err = util.AtomicWriteFile(path, data, 0600); err == nil {
				paths = append(paths, path)
				continue
			}
		}
		logger.Warn().Err(err).Str("conversation", conv.ID).Int("diagram", i+1).Msg("diagram render failed")
		if firstErr == nil {
			firstErr = errors.Wrapf(err, "diagram %d", i+1)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return paths, firstErr
}
