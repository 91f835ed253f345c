// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultTitle is shown until a title is derived or set.
	DefaultTitle = "New Chat"

	// TitleLength is the number of characters kept from the first user
	// message when deriving a title.
	TitleLength = 20

	// TitleEllipsis is appended to derived titles.
	TitleEllipsis = "..."
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds one chat thread.
type Conversation struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	// TitleLocked is set once the user renames the conversation; automatic
	// titling never runs again afterwards.
	TitleLocked bool `json:"title_locked,omitempty"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	Messages  []Message `json:"messages"`
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation() Conversation {
	return Conversation{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: now(),
		Messages:  []Message{},
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// MessageCount returns the number of messages.
func (c Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// LastMessage returns the most recent message, if any.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// GetTitle returns the conversation title or the default.
func (c Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return DefaultTitle
}

// Contains reports whether the title or any message text contains query,
// case-insensitively.
func (c Conversation) Contains(query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(c.Title), q) {
		return true
	}
	for _, msg := range c.Messages {
		if strings.Contains(strings.ToLower(msg.Text), q) {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no message slice with c. Messages are
// values and attachments are never mutated, so a shallow element copy is
// enough.
func (c Conversation) Clone() Conversation {
	clone := c
	clone.Messages = make([]Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	return clone
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// DeriveTitle builds an automatic title from the text of a first user
// message: the first TitleLength characters followed by TitleEllipsis.
// Returns "" for blank text.
func DeriveTitle(text string) string {
	text = strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) > TitleLength {
		runes = runes[:TitleLength]
	}
	return string(runes) + TitleEllipsis
}
