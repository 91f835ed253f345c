// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/request"
)

// =============================================================================
// GATEWAY CONTRACT
// =============================================================================

// Gateway sends one turn request to a model and returns the reply text.
// Every failure matches ErrGatewayFailure.
type Gateway interface {
	Generate(ctx context.Context, req *request.TurnRequest) (string, error)
}

// Func adapts a function to the Gateway interface.
type Func func(ctx context.Context, req *request.TurnRequest) (string, error)

// Generate implements Gateway.
func (f Func) Generate(ctx context.Context, req *request.TurnRequest) (string, error) {
	return f(ctx, req)
}

// imagePlaceholder stands in for history turns with no text, such as a turn
// that only carried an image. Every provider rejects empty text parts.
const imagePlaceholder = "[image]"

// historyText returns the text to send for a prior turn.
func historyText(text string) string {
	if strings.TrimSpace(text) == "" {
		return imagePlaceholder
	}
	return text
}

// ProviderConfig is shared by the provider gateways.
type ProviderConfig struct {
	// BaseURL overrides the provider endpoint. Empty uses the SDK default.
	BaseURL string

	// HTTPClient overrides the transport. Nil uses the SDK default.
	HTTPClient *http.Client
}

// =============================================================================
// ERRORS
// =============================================================================

// Reason classifies a gateway failure.
type Reason string

const (
	ReasonAuth        Reason = "authentication failed"
	ReasonRateLimit   Reason = "rate limited"
	ReasonNotFound    Reason = "model not found"
	ReasonBadRequest  Reason = "request rejected"
	ReasonServer      Reason = "provider error"
	ReasonTimeout     Reason = "timed out"
	ReasonEmpty       Reason = "empty response"
	ReasonUnsupported Reason = "unsupported model"
	ReasonTransport   Reason = "transport error"
)

// Error is returned by every gateway. Sentinels below carry only a Reason;
// errors.Is matches an Error against a sentinel with the same Reason, and
// every Error matches ErrGatewayFailure.
type Error struct {
	Provider   string
	StatusCode int
	Reason     Reason
	Message    string
	Err        error
}

var (
	// ErrGatewayFailure matches any gateway error.
	ErrGatewayFailure = &Error{}

	ErrAuthFailed       = &Error{Reason: ReasonAuth}
	ErrRateLimited      = &Error{Reason: ReasonRateLimit}
	ErrModelNotFound    = &Error{Reason: ReasonNotFound}
	ErrTimeout          = &Error{Reason: ReasonTimeout}
	ErrEmptyResponse    = &Error{Reason: ReasonEmpty}
	ErrUnsupportedModel = &Error{Reason: ReasonUnsupported}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Reason == "" && e.Message == "" {
		return "gateway failure"
	}

	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	if e.Reason != "" {
		b.WriteString(string(e.Reason))
	} else {
		b.WriteString("request failed")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is implements errors.Is support for comparing gateway errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Unwrap returns the underlying SDK or transport error.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds a classified Error. Status 0 means no HTTP response.
func newError(provider string, status int, message string, cause error) *Error {
	e := &Error{
		Provider:   provider,
		StatusCode: status,
		Message:    strings.TrimSpace(message),
		Err:        cause,
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Reason = ReasonAuth
	case status == http.StatusTooManyRequests:
		e.Reason = ReasonRateLimit
	case status == http.StatusNotFound:
		e.Reason = ReasonNotFound
	case status >= 500:
		e.Reason = ReasonServer
	case status >= 400:
		e.Reason = ReasonBadRequest
	case cause != nil && errors.Is(cause, context.DeadlineExceeded):
		e.Reason = ReasonTimeout
	default:
		e.Reason = ReasonTransport
	}

	if e.Message == "" && cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// asError returns err unchanged if it already is a gateway Error and wraps
// it otherwise.
func asError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return err
	}
	return newError(provider, 0, "", err)
}
