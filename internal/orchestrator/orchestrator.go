// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/gateway"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/request"
	"github.com/jeranaias/parley/internal/settings"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMissingCredential is returned by Submit when no API key is set.
var ErrMissingCredential = &TurnError{Message: "no API key is set"}

// TurnError represents an error rejecting a submission.
type TurnError struct {
	Message string
}

func (e *TurnError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing turn errors.
func (e *TurnError) Is(target error) bool {
	t, ok := target.(*TurnError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// FormatErrorNotice renders a failure as the text of an error-notice message.
func FormatErrorNotice(err error) string {
	return fmt.Sprintf("Error: %v", err)
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Repository is the part of conversation.Repository the orchestrator uses.
type Repository interface {
	Active() (model.Conversation, error)
	Append(id string, msg model.Message) error
}

// Orchestrator runs at most one turn at a time across all conversations:
//
//	Idle -> Pending -> {Fulfilled, Failed} -> Idle
//
// A submission made while a turn is pending is ignored, never queued.
// Replies are appended to the conversation the turn was submitted from,
// whichever conversation is active when they arrive.
type Orchestrator struct {
	repo    Repository
	gateway gateway.Gateway
	builder *request.Builder
	logger  zerolog.Logger

	mu       sync.Mutex
	state    State
	current  *Turn
	last     *Outcome
	onSettle func(Outcome)

	inflight sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithBuilder sets the request builder.
func WithBuilder(b *request.Builder) Option {
	return func(o *Orchestrator) { o.builder = b }
}

// WithSettleHook registers a function called after every turn settles.
// It runs on the turn's goroutine, after the reply has been appended.
func WithSettleHook(fn func(Outcome)) Option {
	return func(o *Orchestrator) { o.onSettle = fn }
}

// New creates an Orchestrator.
func New(repo Repository, gw gateway.Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:    repo,
		gateway: gw,
		builder: request.NewBuilder(),
		logger:  log.Logger.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetSettleHook replaces the settle hook.
func (o *Orchestrator) SetSettleHook(fn func(Outcome)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSettle = fn
}

// State returns StatePending while a turn is in flight and StateIdle
// otherwise. Terminal states are reported through Outcome.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pending returns the in-flight turn, or nil.
func (o *Orchestrator) Pending() *Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// LastOutcome returns the outcome of the most recently settled turn.
func (o *Orchestrator) LastOutcome() (Outcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Outcome{}, false
	}
	return *o.last, true
}

// Wait blocks until no turn is in flight.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

// Submit starts a turn on the active conversation.
//
// It returns (nil, nil) when text is blank and there is no attachment, or
// when another turn is pending; a pending turn takes precedence over the
// credential check. It returns ErrMissingCredential, without touching any
// conversation, when s has no credential. Otherwise the user
// message is appended immediately and the model call runs in the
// background; the returned Turn settles when the reply (or an error notice)
// has been appended.
//
// The model call is detached from ctx's cancellation.
func (o *Orchestrator) Submit(ctx context.Context, text string, attachment *model.Attachment, s settings.Settings) (*Turn, error) {
	if strings.TrimSpace(text) == "" && attachment == nil {
		return nil, nil
	}

	o.mu.Lock()
	if o.state == StatePending {
		o.mu.Unlock()
		o.logger.Debug().Msg("Submission ignored, a turn is already pending")
		return nil, nil
	}
	if !s.HasCredential() {
		o.mu.Unlock()
		return nil, ErrMissingCredential
	}

	conv, err := o.repo.Active()
	if err != nil {
		o.logger.Warn().Err(err).Msg("Active conversation was repaired")
	}

	// The request is built from the history as it was before this message.
	snapshot := conv
	if err := o.repo.Append(conv.ID, model.NewUserMessage(text, attachment)); err != nil {
		o.mu.Unlock()
		return nil, errors.Wrap(err, "record user message")
	}

	turn := newTurn(conv.ID)
	o.state = StatePending
	o.current = turn
	o.inflight.Add(1)
	o.mu.Unlock()

	o.logger.Debug().
		Str("conversation", conv.ID).
		Bool("attachment", attachment != nil).
		Msg("Turn submitted")

	go o.run(context.WithoutCancel(ctx), turn, snapshot, text, attachment, s)
	return turn, nil
}

func (o *Orchestrator) run(ctx context.Context, turn *Turn, snapshot model.Conversation, text string, attachment *model.Attachment, s settings.Settings) {
	defer o.inflight.Done()

	outcome := Outcome{ConversationID: turn.conversationID}

	reply, err := o.generate(ctx, snapshot, text, attachment, s)
	if err != nil {
		outcome.State = StateFailed
		outcome.Err = err
		outcome.Reply = model.NewErrorMessage(FormatErrorNotice(err))
	} else {
		outcome.State = StateFulfilled
		outcome.Reply = model.NewAssistantMessage(reply)
	}

	if err := o.repo.Append(turn.conversationID, outcome.Reply); err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			outcome.Dropped = true
			o.logger.Info().
				Str("conversation", turn.conversationID).
				Msg("Conversation deleted before the reply arrived, reply dropped")
		} else {
			o.logger.Error().Err(err).Msg("Could not record reply")
		}
	}

	o.finish(turn, outcome)
}

func (o *Orchestrator) generate(ctx context.Context, snapshot model.Conversation, text string, attachment *model.Attachment, s settings.Settings) (string, error) {
	req, err := o.builder.Build(snapshot, text, attachment, s)
	if err != nil {
		return "", err
	}
	return o.gateway.Generate(ctx, req)
}

func (o *Orchestrator) finish(turn *Turn, outcome Outcome) {
	outcome = turn.complete(outcome)

	o.mu.Lock()
	o.last = &outcome
	o.state = StateIdle
	o.current = nil
	hook := o.onSettle
	o.mu.Unlock()

	ev := o.logger.Info()
	if outcome.Err != nil {
		ev = o.logger.Warn().Err(outcome.Err)
	}
	ev.Str("conversation", outcome.ConversationID).
		Str("state", outcome.State.String()).
		Dur("duration", outcome.Duration).
		Msg("Turn settled")

	turn.settle()
	if hook != nil {
		hook(outcome)
	}
}
