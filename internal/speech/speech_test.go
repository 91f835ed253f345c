// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/settings"
)

func TestArgs(t *testing.T) {
	tests := []struct {
		name  string
		voice settings.VoiceProfile
		want  []string
	}{
		{"defaults", settings.DefaultVoice(), []string{"-v", "en-us", "-p", "50", "-s", "175", "--", "hello"}},
		{"named voice", settings.VoiceProfile{Language: "de-DE", Pitch: 1.5, Rate: 0.5, Voice: "de+f3"}, []string{"-v", "de+f3", "-p", "75", "-s", "87", "--", "hello"}},
		{"pitch capped", settings.VoiceProfile{Language: "en-US", Pitch: 2, Rate: 2}, []string{"-v", "en-us", "-p", "99", "-s", "350", "--", "hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Args("hello", tt.voice))
		})
	}
}

func TestExecSpeaker_Speak(t *testing.T) {
	var mu sync.Mutex
	var got [][]string

	s := NewExecSpeaker("espeak")
	s.logger = zerolog.Nop()
	s.run = func(ctx context.Context, name string, args ...string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, append([]string{name}, args...))
		return errors.New("exit status 1")
	}

	s.Speak("  ", settings.DefaultVoice())
	s.Speak("Good morning", settings.DefaultVoice())
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "espeak", got[0][0])
	assert.Equal(t, "Good morning", got[0][len(got[0])-1])
}

func TestExecSpeaker_NewUtteranceInterrupts(t *testing.T) {
	started := make(chan struct{})
	var interrupted bool

	s := NewExecSpeaker("espeak")
	s.logger = zerolog.Nop()
	first := true
	var mu sync.Mutex
	s.run = func(ctx context.Context, name string, args ...string) error {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			close(started)
			<-ctx.Done()
			mu.Lock()
			interrupted = true
			mu.Unlock()
			return ctx.Err()
		}
		return nil
	}

	s.Speak("one", settings.DefaultVoice())
	<-started
	s.Speak("two", settings.DefaultVoice())
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, interrupted)
}

func TestUnsupportedRecognizer(t *testing.T) {
	_, err := UnsupportedRecognizer{}.RecognizeOnce(context.Background(), "en-US")
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestNopSpeaker(t *testing.T) {
	var sp Speaker = NopSpeaker{}
	sp.Speak("anything", settings.DefaultVoice())
}
