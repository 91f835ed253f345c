// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package request

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/settings"
)

// DefaultMaxOutputTokens caps multi-turn replies unless configured.
const DefaultMaxOutputTokens = 1500

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConfiguration is returned when settings cannot produce a request,
	// for example when no credential is present.
	ErrConfiguration = &BuildError{Message: "configuration error"}

	// ErrBadAttachment is returned when the attachment cannot be decoded.
	ErrBadAttachment = &BuildError{Message: "attachment could not be decoded"}
)

// BuildError represents a request construction error.
type BuildError struct {
	Message string
}

func (e *BuildError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing build errors.
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder turns a conversation snapshot plus a new submission into a
// TurnRequest. It is stateless apart from its options.
type Builder struct {
	maxOutputTokens int
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxOutputTokens sets the multi-turn output cap. Values below 1 keep
// the default.
func WithMaxOutputTokens(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxOutputTokens = n
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{maxOutputTokens: DefaultMaxOutputTokens}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MaxOutputTokens returns the configured output cap.
func (b *Builder) MaxOutputTokens() int {
	return b.maxOutputTokens
}

// Build creates the request for one turn. conv must be the conversation as
// it was before the new user message was appended.
//
// With an attachment the request is single-shot: only text and the decoded
// image are sent, with no history, system instruction or output cap.
// Without one the whole history is sent, in order, followed by text.
func (b *Builder) Build(conv model.Conversation, text string, attachment *model.Attachment, s settings.Settings) (*TurnRequest, error) {
	if !s.HasCredential() {
		return nil, errors.Wrap(ErrConfiguration, "no API key is set")
	}
	modelID := strings.TrimSpace(s.Model)
	if modelID == "" {
		return nil, errors.Wrap(ErrConfiguration, "no model is selected")
	}

	req := &TurnRequest{
		Model:      modelID,
		Credential: strings.TrimSpace(s.Credential),
		Text:       text,
	}

	if attachment != nil {
		data, err := attachment.Bytes()
		if err != nil {
			return nil, errors.Wrap(ErrBadAttachment, err.Error())
		}
		req.Kind = KindSingleShot
		req.Image = &Image{MIMEType: attachment.MIMEType, Data: data}
		return req, nil
	}

	turns := make([]Turn, 0, len(conv.Messages)+1)
	for _, msg := range conv.Messages {
		turns = append(turns, Turn{Role: RoleFor(msg.Role), Text: msg.Text})
	}
	turns = append(turns, Turn{Role: RoleUser, Text: text})

	req.Kind = KindMultiTurn
	req.Turns = turns
	req.SystemInstruction = s.SystemInstructions
	req.MaxOutputTokens = b.maxOutputTokens
	return req, nil
}
