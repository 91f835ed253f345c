// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/parley/internal/model"
)

// JSONExporter exports conversations to JSON. The conversation is written
// in full, attachments included, regardless of the metadata options, so the
// output matches the stored document for that conversation.
type JSONExporter struct {
	options *Options
	now     func() time.Time
}

// jsonDocument is the exported envelope.
type jsonDocument struct {
	Generator    string             `json:"generator"`
	ExportedAt   time.Time          `json:"exported_at"`
	Model        string             `json:"model,omitempty"`
	Conversation model.Conversation `json:"conversation"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts, now: time.Now}
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(conv model.Conversation) ([]byte, error) {
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	return json.MarshalIndent(jsonDocument{
		Generator:    "parley",
		ExportedAt:   e.now().UTC().Round(0),
		Model:        e.options.Model,
		Conversation: conv,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
