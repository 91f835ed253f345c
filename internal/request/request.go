// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package request

import "github.com/jeranaias/parley/internal/model"

// =============================================================================
// TURN REQUEST
// =============================================================================

// Kind distinguishes the two request shapes a gateway must handle.
type Kind int

const (
	// KindMultiTurn carries the whole history, system instructions and an
	// output cap.
	KindMultiTurn Kind = iota

	// KindSingleShot carries only the new text and one image.
	KindSingleShot
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindMultiTurn:
		return "multi-turn"
	case KindSingleShot:
		return "single-shot"
	}
	return "unknown"
}

// Role is a provider-neutral speaker label.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// RoleFor maps a stored message role to its request role.
func RoleFor(r model.Role) Role {
	if r == model.RoleAssistant {
		return RoleModel
	}
	return RoleUser
}

// Turn is one entry of a multi-turn history.
type Turn struct {
	Role Role
	Text string
}

// Image is a decoded inline image.
type Image struct {
	MIMEType string
	Data     []byte
}

// TurnRequest is the transient description of one model call. It is built
// per turn and never stored.
type TurnRequest struct {
	Kind Kind

	// Model and Credential select and authorize the provider.
	Model      string
	Credential string

	// Text is the new user text. Always set.
	Text string

	// Turns is the prior history followed by the new user turn.
	// Only set for KindMultiTurn.
	Turns []Turn

	// SystemInstruction and MaxOutputTokens apply to KindMultiTurn only.
	SystemInstruction string
	MaxOutputTokens   int

	// Image is only set for KindSingleShot.
	Image *Image
}

// LastTurn returns the final turn of a multi-turn request.
func (r *TurnRequest) LastTurn() (Turn, bool) {
	if len(r.Turns) == 0 {
		return Turn{}, false
	}
	return r.Turns[len(r.Turns)-1], true
}
