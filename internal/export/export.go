// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(conv model.Conversation) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// ErrUnknownFormat is returned by ForFormat for unsupported format names.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrEmptyConversation is returned when exporting a conversation with no
// messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

// Format names accepted by ForFormat.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formats returns the supported format names.
func Formats() []string {
	return []string{FormatMarkdown, FormatJSON}
}

// ForFormat returns the exporter for a format name. "md" is accepted as an
// alias for markdown.
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatMarkdown, "md":
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q (supported: %s)", name, strings.Join(Formats(), ", "))
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	OutputDir string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool

	// IncludeMetadata includes a metadata header (dates, model, counts).
	IncludeMetadata bool

	// IncludeTimestamps includes per-message timestamps.
	IncludeTimestamps bool

	// Model is recorded in the metadata header when set.
	Model string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile exports a conversation to a file using the specified exporter
// and returns the output path. The file name is derived from the title and
// the current time.
func ExportToFile(conv model.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", errors.Wrap(err, "export failed")
	}

	filename := fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(conv.GetTitle()),
		time.Now().Format("20060102_150405"),
		exporter.FileExtension(),
	)

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	outputPath := filepath.Join(outputDir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0600); err != nil {
		return "", errors.Wrap(err, "write export")
	}

	if opts.OpenAfterExport {
		if err := openFile(outputPath); err != nil {
			// The file exists; failing to open it is not an export failure.
			log.Warn().Err(err).Str("path", outputPath).Msg("could not open exported file")
		}
	}

	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(strings.TrimRight(strings.TrimSpace(s), "."))
	if len(runes) > 50 {
		runes = runes[:50]
	}

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	var result []rune
	for _, r := range runes {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

// openFile opens a file in the default application for the OS.
func openFile(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return errors.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Local().Format("15:04:05")
}

// attachmentCounts tallies attachment MIME types across a conversation.
func attachmentCounts(conv model.Conversation) []string {
	counts := make(map[string]int)
	for _, msg := range conv.Messages {
		if msg.Attachment != nil {
			counts[msg.Attachment.MIMEType]++
		}
	}
	out := make([]string, 0, len(counts))
	for mime, n := range counts {
		out = append(out, fmt.Sprintf("%s x%d", mime, n))
	}
	sort.Strings(out)
	return out
}
