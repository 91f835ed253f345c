// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single turn in a conversation. Messages are values and are
// never modified once appended to a conversation.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitzero"`

	// Attachment is only ever set on user messages.
	Attachment *Attachment `json:"attachment,omitempty"`

	// IsError marks an assistant message that records a failed turn.
	IsError bool `json:"is_error,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: now(),
	}
}

// NewUserMessage creates a user message. attachment may be nil.
func NewUserMessage(text string, attachment *Attachment) Message {
	msg := NewMessage(RoleUser, text)
	msg.Attachment = attachment
	return msg
}

// NewAssistantMessage creates an assistant reply.
func NewAssistantMessage(text string) Message {
	return NewMessage(RoleAssistant, text)
}

// NewErrorMessage creates an assistant message recording a failed turn.
func NewErrorMessage(notice string) Message {
	msg := NewMessage(RoleAssistant, notice)
	msg.IsError = true
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// HasAttachment reports whether the message carries an image.
func (m Message) HasAttachment() bool {
	return m.Attachment != nil
}

// Preview returns a single-line, rune-truncated preview of the message text.
func (m Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Text), " ")
	if content == "" && m.HasAttachment() {
		content = "[image]"
	}
	runes := []rune(content)
	if maxLen <= 3 || len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// now returns the current time without a monotonic reading so values survive
// a JSON round trip unchanged.
func now() time.Time {
	return time.Now().UTC().Round(0)
}
