// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConversationNotFound is returned when an id does not resolve.
	// Use errors.Is(err, ErrConversationNotFound) to check for this error.
	ErrConversationNotFound = &RepositoryError{Message: "conversation not found"}

	// ErrInvariantViolation reports that the active pointer did not resolve
	// and had to be repaired.
	ErrInvariantViolation = &RepositoryError{Message: "active conversation does not resolve"}

	// ErrPersistenceFailure wraps store read/write failures. They are logged
	// and swallowed; memory stays authoritative for the session.
	ErrPersistenceFailure = &RepositoryError{Message: "persistence failure"}
)

// RepositoryError represents a conversation-repository error.
// It implements the error interface and can be compared using errors.Is.
type RepositoryError struct {
	Message string
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing repository errors.
func (e *RepositoryError) Is(target error) bool {
	t, ok := target.(*RepositoryError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
