// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech defines the voice input and output collaborators.
//
// A terminal has no microphone API, so recognition is reported as
// unsupported. Speech output shells out to an espeak-compatible command.
package speech

import (
	"context"

	"github.com/jeranaias/parley/internal/settings"
)

// ErrUnsupported is returned by recognizers that cannot capture audio.
var ErrUnsupported = &SpeechError{Message: "speech recognition is not supported in this environment"}

// ErrNoSpeech is returned when recognition ends without a transcript.
var ErrNoSpeech = &SpeechError{Message: "no speech detected"}

// SpeechError represents a speech collaborator error.
type SpeechError struct {
	Message string
}

func (e *SpeechError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing speech errors.
func (e *SpeechError) Is(target error) bool {
	t, ok := target.(*SpeechError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// Recognizer captures one utterance and returns its transcript.
type Recognizer interface {
	RecognizeOnce(ctx context.Context, language string) (string, error)
}

// Speaker reads text aloud. Speak returns immediately; failures are logged,
// never reported to the caller.
type Speaker interface {
	Speak(text string, voice settings.VoiceProfile)
}

// UnsupportedRecognizer always fails with ErrUnsupported.
type UnsupportedRecognizer struct{}

// RecognizeOnce implements Recognizer.
func (UnsupportedRecognizer) RecognizeOnce(ctx context.Context, language string) (string, error) {
	return "", ErrUnsupported
}

// NopSpeaker discards everything.
type NopSpeaker struct{}

// Speak implements Speaker.
func (NopSpeaker) Speak(string, settings.VoiceProfile) {}
