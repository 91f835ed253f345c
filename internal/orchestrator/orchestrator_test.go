// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/gateway"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/request"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/storage"
)

// fakeGateway records requests and replies when released.
type fakeGateway struct {
	mu       sync.Mutex
	requests []*request.TurnRequest
	calls    int

	release chan struct{}
	reply   string
	err     error
}

func newFakeGateway(reply string) *fakeGateway {
	return &fakeGateway{reply: reply}
}

// gated makes Generate block until unblock is called.
func (f *fakeGateway) gated() *fakeGateway {
	f.release = make(chan struct{})
	return f
}

func (f *fakeGateway) unblock() {
	close(f.release)
}

func (f *fakeGateway) Generate(ctx context.Context, req *request.TurnRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	return f.reply, f.err
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGateway) lastRequest() *request.TurnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func withKey() settings.Settings {
	s := settings.Default()
	s.Credential = "sk-test-credential"
	return s
}

func setup(t *testing.T, gw gateway.Gateway, opts ...Option) (*Orchestrator, *conversation.Repository) {
	t.Helper()
	repo := conversation.New(storage.NewMemoryStore(), conversation.WithLogger(zerolog.Nop()))
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return New(repo, gw, opts...), repo
}

func waitTurn(t *testing.T, turn *Turn) Outcome {
	t.Helper()
	require.NotNil(t, turn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := turn.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestSubmit_Success(t *testing.T) {
	gw := newFakeGateway("Hello back")
	o, repo := setup(t, gw)
	id := repo.ActiveID()

	turn, err := o.Submit(context.Background(), "Hello", nil, withKey())
	require.NoError(t, err)
	out := waitTurn(t, turn)

	assert.Equal(t, StateFulfilled, out.State)
	assert.True(t, out.Succeeded())
	assert.Equal(t, id, out.ConversationID)
	assert.NoError(t, out.Err)
	assert.Equal(t, StateIdle, o.State())

	conv, err := repo.Get(id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "Hello", conv.Messages[0].Text)
	assert.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "Hello back", conv.Messages[1].Text)
	assert.False(t, conv.Messages[1].IsError)
	assert.Equal(t, "Hello...", conv.Title)

	last, ok := o.LastOutcome()
	require.True(t, ok)
	assert.Equal(t, out, last)
}

func TestSubmit_EmptyIsNoop(t *testing.T) {
	gw := newFakeGateway("x")
	o, repo := setup(t, gw)

	turn, err := o.Submit(context.Background(), "   \n", nil, withKey())
	assert.NoError(t, err)
	assert.Nil(t, turn)
	assert.Equal(t, StateIdle, o.State())

	conv, err := repo.Active()
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
	assert.Zero(t, gw.callCount())
}

func TestSubmit_MissingCredential(t *testing.T) {
	gw := newFakeGateway("x")
	o, repo := setup(t, gw)

	turn, err := o.Submit(context.Background(), "Hello", nil, settings.Default())
	assert.Nil(t, turn)
	assert.True(t, errors.Is(err, ErrMissingCredential))

	conv, err := repo.Active()
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
	assert.Zero(t, gw.callCount())
	assert.Equal(t, StateIdle, o.State())
}

func TestSubmit_SingleFlight(t *testing.T) {
	gw := newFakeGateway("first reply").gated()
	o, repo := setup(t, gw)
	id := repo.ActiveID()

	first, err := o.Submit(context.Background(), "one", nil, withKey())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, StatePending, o.State())
	assert.Same(t, first, o.Pending())

	second, err := o.Submit(context.Background(), "two", nil, withKey())
	assert.NoError(t, err)
	assert.Nil(t, second)

	// A different conversation does not get its own slot either.
	repo.Create()
	third, err := o.Submit(context.Background(), "three", nil, withKey())
	assert.NoError(t, err)
	assert.Nil(t, third)

	gw.unblock()
	waitTurn(t, first)
	o.Wait()

	assert.Equal(t, 1, gw.callCount())
	conv, err := repo.Get(id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "one", conv.Messages[0].Text)
	assert.Equal(t, "first reply", conv.Messages[1].Text)

	// Idle again: the next submission goes through.
	gw2 := newFakeGateway("ok")
	o.gateway = gw2
	next, err := o.Submit(context.Background(), "four", nil, withKey())
	require.NoError(t, err)
	waitTurn(t, next)
}

func TestSubmit_PendingTakesPrecedenceOverCredential(t *testing.T) {
	gw := newFakeGateway("reply").gated()
	o, repo := setup(t, gw)

	first, err := o.Submit(context.Background(), "one", nil, withKey())
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := o.Submit(context.Background(), "two", nil, settings.Default())
	assert.NoError(t, err)
	assert.Nil(t, second)

	gw.unblock()
	waitTurn(t, first)
	o.Wait()

	conv, err := repo.Active()
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
}

func TestSubmit_UnstorableAttachmentIsRejected(t *testing.T) {
	gw := newFakeGateway("x")
	o, repo := setup(t, gw)

	turn, err := o.Submit(context.Background(), "look", model.NewAttachment("", []byte{1, 2, 3}), withKey())
	assert.Nil(t, turn)
	assert.True(t, errors.Is(err, conversation.ErrInvalidMessage), "got %v", err)
	assert.Equal(t, StateIdle, o.State())

	conv, err := repo.Active()
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
	assert.Zero(t, gw.callCount())
}

func TestSubmit_ReplyLandsInOriginatingConversation(t *testing.T) {
	gw := newFakeGateway("answer for A").gated()
	o, repo := setup(t, gw)
	a := repo.ActiveID()

	turn, err := o.Submit(context.Background(), "question in A", nil, withKey())
	require.NoError(t, err)

	b := repo.Create()
	require.Equal(t, b, repo.ActiveID())

	gw.unblock()
	out := waitTurn(t, turn)
	assert.Equal(t, a, out.ConversationID)

	convA, err := repo.Get(a)
	require.NoError(t, err)
	require.Len(t, convA.Messages, 2)
	assert.Equal(t, "answer for A", convA.Messages[1].Text)

	convB, err := repo.Get(b)
	require.NoError(t, err)
	assert.Empty(t, convB.Messages)
	assert.Equal(t, b, repo.ActiveID())
}

func TestSubmit_GatewayFailureBecomesNotice(t *testing.T) {
	gw := newFakeGateway("")
	gw.err = &gateway.Error{Provider: "gemini", StatusCode: 401, Reason: gateway.ReasonAuth, Message: "API key not valid"}
	o, repo := setup(t, gw)

	turn, err := o.Submit(context.Background(), "Hello", nil, withKey())
	require.NoError(t, err)
	out := waitTurn(t, turn)

	assert.Equal(t, StateFailed, out.State)
	assert.True(t, errors.Is(out.Err, gateway.ErrGatewayFailure))

	conv, err := repo.Active()
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	notice := conv.Messages[1]
	assert.Equal(t, model.RoleAssistant, notice.Role)
	assert.True(t, notice.IsError)
	assert.Contains(t, notice.Text, "Error:")
	assert.Contains(t, notice.Text, "API key not valid")
	assert.Equal(t, StateIdle, o.State())
}

func TestSubmit_BuildFailureBecomesNotice(t *testing.T) {
	gw := newFakeGateway("never")
	o, repo := setup(t, gw)

	s := withKey()
	s.Model = ""
	turn, err := o.Submit(context.Background(), "Hello", nil, s)
	require.NoError(t, err)
	out := waitTurn(t, turn)

	assert.Equal(t, StateFailed, out.State)
	assert.True(t, errors.Is(out.Err, request.ErrConfiguration))
	assert.Zero(t, gw.callCount())

	conv, err := repo.Active()
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.True(t, conv.Messages[1].IsError)
}

func TestSubmit_RequestUsesPriorHistory(t *testing.T) {
	gw := newFakeGateway("reply")
	o, _ := setup(t, gw)

	s := withKey()
	s.SystemInstructions = "Be kind."

	first, err := o.Submit(context.Background(), "first", nil, s)
	require.NoError(t, err)
	waitTurn(t, first)

	second, err := o.Submit(context.Background(), "second", nil, s)
	require.NoError(t, err)
	waitTurn(t, second)

	req := gw.lastRequest()
	require.NotNil(t, req)
	assert.Equal(t, request.KindMultiTurn, req.Kind)
	assert.Equal(t, "Be kind.", req.SystemInstruction)
	assert.Equal(t, []request.Turn{
		{Role: request.RoleUser, Text: "first"},
		{Role: request.RoleModel, Text: "reply"},
		{Role: request.RoleUser, Text: "second"},
	}, req.Turns)
}

func TestSubmit_AttachmentTurn(t *testing.T) {
	gw := newFakeGateway("a cat")
	o, repo := setup(t, gw)

	warmup, err := o.Submit(context.Background(), "earlier context", nil, withKey())
	require.NoError(t, err)
	waitTurn(t, warmup)

	raw := []byte{0xff, 0xd8, 0xff}
	att := model.NewAttachment("image/jpeg", raw)
	turn, err := o.Submit(context.Background(), "", att, withKey())
	require.NoError(t, err)
	waitTurn(t, turn)

	req := gw.lastRequest()
	assert.Equal(t, request.KindSingleShot, req.Kind)
	assert.Empty(t, req.Turns)
	require.NotNil(t, req.Image)
	assert.Equal(t, raw, req.Image.Data)
	assert.Equal(t, "image/jpeg", req.Image.MIMEType)

	conv, err := repo.Active()
	require.NoError(t, err)
	require.Len(t, conv.Messages, 4)
	assert.True(t, conv.Messages[2].HasAttachment())
	assert.Equal(t, "a cat", conv.Messages[3].Text)
}

func TestSubmit_ConversationDeletedMidFlight(t *testing.T) {
	gw := newFakeGateway("orphan").gated()
	o, repo := setup(t, gw)
	doomed := repo.ActiveID()

	turn, err := o.Submit(context.Background(), "hello", nil, withKey())
	require.NoError(t, err)

	repo.Delete(doomed)
	gw.unblock()
	out := waitTurn(t, turn)

	assert.True(t, out.Dropped)
	assert.Equal(t, StateFulfilled, out.State)
	for _, conv := range repo.List() {
		assert.Empty(t, conv.Messages)
	}
	assert.Equal(t, StateIdle, o.State())
}

func TestSubmit_CallerCancellationDoesNotAbortTurn(t *testing.T) {
	gw := newFakeGateway("still here").gated()
	o, _ := setup(t, gw)

	ctx, cancel := context.WithCancel(context.Background())
	turn, err := o.Submit(ctx, "hello", nil, withKey())
	require.NoError(t, err)
	cancel()

	gw.unblock()
	out := waitTurn(t, turn)
	assert.Equal(t, StateFulfilled, out.State)
}

func TestSettleHook(t *testing.T) {
	var mu sync.Mutex
	var seen []Outcome
	hook := func(out Outcome) {
		mu.Lock()
		seen = append(seen, out)
		mu.Unlock()
	}

	gw := newFakeGateway("hi")
	o, _ := setup(t, gw, WithSettleHook(hook))

	turn, err := o.Submit(context.Background(), "hello", nil, withKey())
	require.NoError(t, err)
	waitTurn(t, turn)
	o.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "hi", seen[0].Reply.Text)
}

func TestTurn_OutcomeBeforeSettle(t *testing.T) {
	gw := newFakeGateway("late").gated()
	o, _ := setup(t, gw)

	turn, err := o.Submit(context.Background(), "hello", nil, withKey())
	require.NoError(t, err)

	_, ok := turn.Outcome()
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = turn.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	gw.unblock()
	waitTurn(t, turn)
	out, ok := turn.Outcome()
	assert.True(t, ok)
	assert.Equal(t, "late", out.Reply.Text)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "fulfilled", StateFulfilled.String())
	assert.Equal(t, "failed", StateFailed.String())
}
