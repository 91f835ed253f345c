// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// CONVERSATION COLLECTION CODEC
// =============================================================================

// ErrCorruptCollection is returned when the stored conversation document
// cannot be decoded.
var ErrCorruptCollection = &StoreError{Message: "conversation collection is corrupt"}

// EncodeConversations serializes the collection as a single JSON array of
// {id, title, messages:[{role, text, attachment?}]} objects, preserving order.
func EncodeConversations(convs []model.Conversation) (string, error) {
	if convs == nil {
		convs = []model.Conversation{}
	}
	data, err := json.Marshal(convs)
	if err != nil {
		return "", errors.Wrap(err, "encode conversations")
	}
	return string(data), nil
}

// DecodeConversations parses a document written by EncodeConversations.
// Missing optional fields take their zero values; a conversation without a
// message array gets an empty one.
func DecodeConversations(doc string) ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := json.Unmarshal([]byte(doc), &convs); err != nil {
		return nil, errors.Wrap(ErrCorruptCollection, err.Error())
	}

	for i := range convs {
		if convs[i].ID == "" {
			return nil, errors.Wrapf(ErrCorruptCollection, "conversation %d has no id", i)
		}
		if convs[i].Messages == nil {
			convs[i].Messages = []model.Message{}
		}
		for j, msg := range convs[i].Messages {
			if !msg.Role.Valid() {
				return nil, errors.Wrapf(ErrCorruptCollection,
					"conversation %s message %d has role %q", convs[i].ID, j, msg.Role)
			}
		}
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	return convs, nil
}
