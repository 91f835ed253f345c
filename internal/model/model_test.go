// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"testing"
)

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"long text truncated", "Hello there, how are you today", "Hello there, how are..."},
		{"exactly twenty", "12345678901234567890", "12345678901234567890..."},
		{"short text", "hi", "hi..."},
		{"blank text", "   ", ""},
		{"newlines collapsed", "line one\nline two", "line one line two..."},
		{"multibyte kept whole", "こんにちは世界、今日はいい天気ですね。散歩に行きましょう", "こんにちは世界、今日はいい天気ですね。散..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.text); got != tc.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestNewConversation(t *testing.T) {
	a := NewConversation()
	b := NewConversation()

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct non-empty IDs, got %q and %q", a.ID, b.ID)
	}
	if a.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", a.Title, DefaultTitle)
	}
	if a.Messages == nil || !a.IsEmpty() {
		t.Errorf("expected empty non-nil message slice")
	}
}

func TestConversation_CloneDoesNotShareMessages(t *testing.T) {
	conv := NewConversation()
	conv.Messages = append(conv.Messages, NewUserMessage("one", nil))

	clone := conv.Clone()
	clone.Messages = append(clone.Messages, NewAssistantMessage("two"))
	clone.Messages[0].Text = "changed"

	if conv.MessageCount() != 1 {
		t.Errorf("original MessageCount() = %d, want 1", conv.MessageCount())
	}
	if conv.Messages[0].Text != "one" {
		t.Errorf("original message mutated to %q", conv.Messages[0].Text)
	}
}

func TestConversation_Contains(t *testing.T) {
	conv := NewConversation()
	conv.Title = "Trip planning"
	conv.Messages = append(conv.Messages, NewUserMessage("What about Lisbon?", nil))

	for _, q := range []string{"trip", "LISBON", "about"} {
		if !conv.Contains(q) {
			t.Errorf("Contains(%q) = false, want true", q)
		}
	}
	if conv.Contains("madrid") {
		t.Errorf("Contains(%q) = true, want false", "madrid")
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestRole(t *testing.T) {
	if !RoleUser.Valid() || !RoleAssistant.Valid() {
		t.Error("expected user and assistant roles to be valid")
	}
	if Role("system").Valid() {
		t.Error("expected system role to be invalid")
	}
	if got := RoleUser.DisplayName(); got != "You" {
		t.Errorf("DisplayName() = %q, want %q", got, "You")
	}
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage("a\nvery   long message body", nil)
	if got := msg.Preview(12); got != "a very lo..." {
		t.Errorf("Preview(12) = %q, want %q", got, "a very lo...")
	}

	img := NewUserMessage("", NewAttachment("image/png", []byte{1, 2, 3}))
	if got := img.Preview(20); got != "[image]" {
		t.Errorf("Preview() = %q, want %q", got, "[image]")
	}
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("Error: boom")
	if msg.Role != RoleAssistant || !msg.IsError {
		t.Errorf("got role %q IsError %v, want assistant error", msg.Role, msg.IsError)
	}
}

// =============================================================================
// ATTACHMENT TESTS
// =============================================================================

func TestParseDataURI(t *testing.T) {
	att, err := ParseDataURI("data:image/png;base64,AQID")
	if err != nil {
		t.Fatalf("ParseDataURI() error = %v", err)
	}
	if att.MIMEType != "image/png" || att.Data != "AQID" {
		t.Errorf("got %q/%q, want image/png/AQID", att.MIMEType, att.Data)
	}
	raw, err := att.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if len(raw) != 3 || raw[2] != 3 {
		t.Errorf("Bytes() = %v, want [1 2 3]", raw)
	}
	if got := att.DataURI(); got != "data:image/png;base64,AQID" {
		t.Errorf("DataURI() = %q", got)
	}
}

func TestParseDataURI_Invalid(t *testing.T) {
	inputs := []string{
		"AQID",
		"data:image/png;base64",
		"data:image/png,AQID",
		"data:;base64,AQID",
	}
	for _, in := range inputs {
		if _, err := ParseDataURI(in); !errors.Is(err, ErrInvalidAttachment) {
			t.Errorf("ParseDataURI(%q) error = %v, want ErrInvalidAttachment", in, err)
		}
	}
}

func TestAttachment_Validate(t *testing.T) {
	if err := NewAttachment("image/png", []byte{1}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	bad := []*Attachment{
		NewAttachment("", []byte{1}),
		NewAttachment("  ", []byte{1}),
		NewAttachment("image/png,evil", []byte{1}),
		NewAttachment("image/png", nil),
	}
	for _, a := range bad {
		if err := a.Validate(); !errors.Is(err, ErrInvalidAttachment) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidAttachment", a, err)
		}
	}
}

func TestMessage_JSONShape(t *testing.T) {
	msg := Message{
		Role:       RoleUser,
		Text:       "look",
		Attachment: &Attachment{MIMEType: "image/jpeg", Data: "AAAA"},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"role":"user","text":"look","attachment":"data:image/jpeg;base64,AAAA"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back.Attachment == nil || back.Attachment.MIMEType != "image/jpeg" {
		t.Errorf("attachment lost in round trip: %+v", back.Attachment)
	}

	var plain Message
	if err := json.Unmarshal([]byte(`{"role":"assistant","text":"hi"}`), &plain); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if plain.Attachment != nil || plain.IsError {
		t.Errorf("expected absent optional fields, got %+v", plain)
	}
}

// =============================================================================
// MODEL CATALOG TESTS
// =============================================================================

func TestResolveModelID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"flash", "gemini-2.0-flash"},
		{" sonnet ", "claude-sonnet-4-0"},
		{"gemini-1.5-pro", "gemini-1.5-pro"},
	}
	for _, tc := range tests {
		if got := ResolveModelID(tc.in); got != tc.want {
			t.Errorf("ResolveModelID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGetModelInfo(t *testing.T) {
	info, ok := GetModelInfo("gpt-4o-mini")
	if !ok || info.Provider != ProviderOpenAI {
		t.Fatalf("GetModelInfo(gpt-4o-mini) = %+v, %v", info, ok)
	}
	if _, ok := GetModelInfo("nope"); ok {
		t.Error("expected unknown model lookup to fail")
	}
	if got := info.ContextString(); got != "128K tokens" {
		t.Errorf("ContextString() = %q, want %q", got, "128K tokens")
	}
}

func TestGetModelsByProvider(t *testing.T) {
	models := GetModelsByProvider("Gemini")
	if len(models) != 3 {
		t.Fatalf("got %d gemini models, want 3", len(models))
	}
	for i := 1; i < len(models); i++ {
		if models[i-1].ID > models[i].ID {
			t.Errorf("models not sorted: %q before %q", models[i-1].ID, models[i].ID)
		}
	}
}
