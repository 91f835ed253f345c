// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"time"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the orchestrator's turn state.
type State int

const (
	StateIdle State = iota
	StatePending
	StateFulfilled
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFulfilled:
		return "fulfilled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome describes how a turn settled.
type Outcome struct {
	// ConversationID is the conversation the turn was submitted to. Replies
	// always land there, even if another conversation became active.
	ConversationID string

	// State is StateFulfilled or StateFailed.
	State State

	// Reply is the assistant message that was appended: the model's text or
	// an error notice.
	Reply model.Message

	// Err is the build or gateway failure for failed turns.
	Err error

	// Dropped is set when the conversation was deleted before the reply
	// arrived and the reply was discarded.
	Dropped bool

	Duration time.Duration
}

// Succeeded reports whether the model replied.
func (o Outcome) Succeeded() bool {
	return o.State == StateFulfilled
}

// =============================================================================
// TURN
// =============================================================================

// Turn is a handle to one in-flight request.
type Turn struct {
	conversationID string
	started        time.Time

	done    chan struct{}
	outcome Outcome
}

func newTurn(conversationID string) *Turn {
	return &Turn{
		conversationID: conversationID,
		started:        time.Now(),
		done:           make(chan struct{}),
	}
}

// ConversationID returns the conversation this turn belongs to.
func (t *Turn) ConversationID() string {
	return t.conversationID
}

// Done is closed when the turn settles.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Outcome returns the result once the turn has settled.
func (t *Turn) Outcome() (Outcome, bool) {
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the turn settles or ctx is done. Abandoning the wait
// does not cancel the request.
func (t *Turn) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// complete stamps the duration and stores the outcome without publishing
// it; settle publishes it.
func (t *Turn) complete(o Outcome) Outcome {
	o.Duration = time.Since(t.started)
	t.outcome = o
	return o
}

func (t *Turn) settle() {
	close(t.done)
}
