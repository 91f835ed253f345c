// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package request

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/settings"
)

func testSettings() settings.Settings {
	s := settings.Default()
	s.Credential = "sk-test-credential"
	s.SystemInstructions = "Answer in haiku."
	return s
}

func conversationWith(msgs ...model.Message) model.Conversation {
	conv := model.NewConversation()
	conv.Messages = append(conv.Messages, msgs...)
	return conv
}

func TestBuild_MultiTurn(t *testing.T) {
	conv := conversationWith(
		model.NewUserMessage("Hello", nil),
		model.NewAssistantMessage("Hi there"),
		model.NewUserMessage("look", model.NewAttachment("image/png", []byte{1, 2})),
		model.NewErrorMessage("Error: request failed"),
	)

	req, err := NewBuilder().Build(conv, "What next?", nil, testSettings())
	require.NoError(t, err)

	assert.Equal(t, KindMultiTurn, req.Kind)
	assert.Equal(t, "What next?", req.Text)
	assert.Equal(t, model.DefaultModel, req.Model)
	assert.Equal(t, "sk-test-credential", req.Credential)
	assert.Equal(t, "Answer in haiku.", req.SystemInstruction)
	assert.Equal(t, DefaultMaxOutputTokens, req.MaxOutputTokens)
	assert.Nil(t, req.Image)

	want := []Turn{
		{Role: RoleUser, Text: "Hello"},
		{Role: RoleModel, Text: "Hi there"},
		{Role: RoleUser, Text: "look"},
		{Role: RoleModel, Text: "Error: request failed"},
		{Role: RoleUser, Text: "What next?"},
	}
	assert.Equal(t, want, req.Turns)

	last, ok := req.LastTurn()
	require.True(t, ok)
	assert.Equal(t, "What next?", last.Text)
}

func TestBuild_EmptyHistory(t *testing.T) {
	req, err := NewBuilder(WithMaxOutputTokens(42)).Build(model.NewConversation(), "first", nil, testSettings())
	require.NoError(t, err)

	assert.Equal(t, []Turn{{Role: RoleUser, Text: "first"}}, req.Turns)
	assert.Equal(t, 42, req.MaxOutputTokens)
}

func TestBuild_SingleShotIgnoresHistory(t *testing.T) {
	conv := conversationWith(
		model.NewUserMessage("earlier", nil),
		model.NewAssistantMessage("reply"),
	)
	raw := []byte{0x89, 'P', 'N', 'G'}

	req, err := NewBuilder().Build(conv, "what is this?", model.NewAttachment("image/png", raw), testSettings())
	require.NoError(t, err)

	assert.Equal(t, KindSingleShot, req.Kind)
	assert.Equal(t, "what is this?", req.Text)
	require.NotNil(t, req.Image)
	assert.Equal(t, "image/png", req.Image.MIMEType)
	assert.Equal(t, raw, req.Image.Data)

	assert.Empty(t, req.Turns)
	assert.Empty(t, req.SystemInstruction)
	assert.Zero(t, req.MaxOutputTokens)
}

func TestBuild_FromDataURI(t *testing.T) {
	att, err := model.ParseDataURI("data:image/jpeg;base64,/9j/")
	require.NoError(t, err)

	req, err := NewBuilder().Build(model.NewConversation(), "", att, testSettings())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", req.Image.MIMEType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, req.Image.Data)
}

func TestBuild_Errors(t *testing.T) {
	noKey := testSettings()
	noKey.Credential = "   "

	noModel := testSettings()
	noModel.Model = ""

	tests := []struct {
		name string
		s    settings.Settings
		att  *model.Attachment
		want error
	}{
		{"missing credential", noKey, nil, ErrConfiguration},
		{"missing model", noModel, nil, ErrConfiguration},
		{"corrupt attachment", testSettings(), &model.Attachment{MIMEType: "image/png", Data: "!!!"}, ErrBadAttachment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewBuilder().Build(model.NewConversation(), "hi", tt.att, tt.s)
			assert.Nil(t, req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRoleFor(t *testing.T) {
	assert.Equal(t, RoleUser, RoleFor(model.RoleUser))
	assert.Equal(t, RoleModel, RoleFor(model.RoleAssistant))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "multi-turn", KindMultiTurn.String())
	assert.Equal(t, "single-shot", KindSingleShot.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
