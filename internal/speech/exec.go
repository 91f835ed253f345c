// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/settings"
)

// espeak scales: pitch 0-99 (default 50), speed in words per minute
// (default 175).
const (
	espeakBasePitch = 50
	espeakMaxPitch  = 99
	espeakBaseSpeed = 175
)

// runFunc runs a command to completion.
type runFunc func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// ExecSpeaker speaks through an espeak-compatible command. A new utterance
// interrupts the previous one.
type ExecSpeaker struct {
	command string
	run     runFunc
	logger  zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExecSpeaker creates a speaker that runs command.
func NewExecSpeaker(command string) *ExecSpeaker {
	return &ExecSpeaker{
		command: command,
		run:     runCommand,
		logger:  log.Logger.With().Str("component", "speech").Logger(),
	}
}

// Available reports whether the command can be found on PATH.
func (s *ExecSpeaker) Available() bool {
	_, err := exec.LookPath(s.command)
	return err == nil
}

// Args returns the command-line arguments used for text and voice.
func Args(text string, voice settings.VoiceProfile) []string {
	voice = voice.Normalize()

	name := voice.Voice
	if name == "" {
		name = strings.ToLower(voice.Language)
	}
	pitch := int(espeakBasePitch * voice.Pitch)
	if pitch > espeakMaxPitch {
		pitch = espeakMaxPitch
	}
	speed := int(espeakBaseSpeed * voice.Rate)

	return []string{
		"-v", name,
		"-p", strconv.Itoa(pitch),
		"-s", strconv.Itoa(speed),
		"--", text,
	}
}

// Speak implements Speaker.
func (s *ExecSpeaker) Speak(text string, voice settings.VoiceProfile) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	args := Args(text, voice)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.run(ctx, s.command, args...); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Str("command", s.command).Msg("Speech output failed")
		}
	}()
}

// Stop interrupts the current utterance.
func (s *ExecSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Wait blocks until all utterances have finished.
func (s *ExecSpeaker) Wait() {
	s.wg.Wait()
}
