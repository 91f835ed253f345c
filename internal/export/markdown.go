// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
	now     func() time.Time
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts, now: time.Now}
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(conv model.Conversation) ([]byte, error) {
	if len(conv.Messages) == 0 {
		return nil, ErrEmptyConversation
	}

	var sb strings.Builder
	title := conv.GetTitle()

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title))
		fmt.Fprintf(&sb, "id: %s\n", conv.ID)
		if e.options.Model != "" {
			fmt.Fprintf(&sb, "model: %s\n", escapeYAML(e.options.Model))
		}
		if !conv.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "date: %s\n", conv.CreatedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(conv.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", e.now().Format(time.RFC3339))
		sb.WriteString("generator: parley\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(util.SingleLine(title)))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		if e.options.Model != "" {
			fmt.Fprintf(&sb, "- **Model**: %s\n", e.options.Model)
		}
		if !conv.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "- **Created**: %s\n", formatTimestamp(conv.CreatedAt))
		}
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(conv.Messages))
		if atts := attachmentCounts(conv); len(atts) > 0 {
			fmt.Fprintf(&sb, "- **Attachments**: %s\n", strings.Join(atts, ", "))
		}
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")

	for i, msg := range conv.Messages {
		roleLabel := formatRoleLabel(msg)
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", roleLabel, formatShortTimestamp(msg.Timestamp))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", roleLabel)
		}

		if msg.Attachment != nil {
			fmt.Fprintf(&sb, "*[image attachment: %s]*\n\n", msg.Attachment.MIMEType)
		}

		if content := strings.TrimSpace(msg.Text); content != "" {
			if msg.IsError {
				sb.WriteString("> ")
				sb.WriteString(strings.ReplaceAll(content, "\n", "\n> "))
			} else {
				sb.WriteString(content)
			}
			sb.WriteString("\n\n")
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from parley on %s*\n", e.now().Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatRoleLabel returns a heading label for the message.
func formatRoleLabel(msg model.Message) string {
	switch {
	case msg.IsError:
		return "[Error]"
	case msg.Role == model.RoleUser:
		return "[User]"
	case msg.Role == model.RoleAssistant:
		return "[Assistant]"
	case msg.Role == "":
		return "Unknown"
	default:
		runes := []rune(string(msg.Role))
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a frontmatter value when it contains special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
