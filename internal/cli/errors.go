// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for parley commands.
//
// Commands always return errors; Execute prints them once, styled, and maps
// them to an exit code.

package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/gateway"
	"github.com/jeranaias/parley/internal/orchestrator"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess = 0

	// ExitGeneralError covers everything not listed below.
	ExitGeneralError = 1

	// ExitUsageError is returned for bad arguments or flags.
	ExitUsageError = 2

	// ExitConfigError is returned when the config file or a setting is bad.
	ExitConfigError = 3

	// ExitNotFoundError is returned when a conversation does not exist.
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a command invoked with bad arguments.
type UsageError struct {
	Message string
	Usage   string
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return fmt.Sprintf("%s\nUsage: %s", e.Message, e.Usage)
	}
	return e.Message
}

// NotFoundError reports an unknown conversation reference.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Is lets NotFoundError match conversation.ErrConversationNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == conversation.ErrConversationNotFound
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w as an "[Error]" line.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[Error]"), describeError(err))
}

// describeError adds a hint for errors the user can fix.
func describeError(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, orchestrator.ErrMissingCredential):
		return msg + " (run `parley key set` or set " + config.EnvAPIKey + ")"
	case errors.Is(err, gateway.ErrAuthFailed):
		return msg + " (check the API key with `parley key status`)"
	}
	return msg
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}
	var validationErr *commands.ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}
	var configErr config.ValidationError
	if errors.As(err, &configErr) {
		return ExitConfigError
	}
	var configErrs config.ValidateErrors
	if errors.As(err, &configErrs) {
		return ExitConfigError
	}
	if errors.Is(err, conversation.ErrConversationNotFound) || errors.Is(err, commands.ErrNoMatch) {
		return ExitNotFoundError
	}
	return ExitGeneralError
}
