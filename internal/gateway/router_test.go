// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/request"
)

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		name     string
	}{
		{"gemini-2.0-flash", model.ProviderGemini, "gemini-2.0-flash"},
		{"gemma-3-27b-it", model.ProviderGemini, "gemma-3-27b-it"},
		{"gpt-4o", model.ProviderOpenAI, "gpt-4o"},
		{"o3-mini", model.ProviderOpenAI, "o3-mini"},
		{"chatgpt-4o-latest", model.ProviderOpenAI, "chatgpt-4o-latest"},
		{"claude-sonnet-4-0", model.ProviderAnthropic, "claude-sonnet-4-0"},
		{"openai:llama-3.1-8b", model.ProviderOpenAI, "llama-3.1-8b"},
		{"Anthropic:custom", model.ProviderAnthropic, "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			provider, name, err := ResolveProvider(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.name, name)
		})
	}

	for _, bad := range []string{"", "llama3", "openai:", "mistral:large"} {
		_, _, err := ResolveProvider(bad)
		assert.True(t, IsUnsupported(err), bad)
		assert.True(t, errors.Is(err, ErrGatewayFailure), bad)
	}
}

func TestRouter_Dispatch(t *testing.T) {
	var gotModel string
	r := &Router{}
	r.Register(model.ProviderOpenAI, Func(func(ctx context.Context, req *request.TurnRequest) (string, error) {
		gotModel = req.Model
		return "routed", nil
	}))

	req := &request.TurnRequest{Model: "openai:my-local-model"}
	text, err := r.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "routed", text)
	assert.Equal(t, "my-local-model", gotModel)
	assert.Equal(t, "openai:my-local-model", req.Model, "caller's request is not modified")

	_, err = r.Generate(context.Background(), &request.TurnRequest{Model: "claude-3-5-haiku-latest"})
	assert.True(t, IsUnsupported(err))
}

func TestRouter_WrapsForeignErrors(t *testing.T) {
	r := &Router{}
	r.Register(model.ProviderGemini, Func(func(ctx context.Context, req *request.TurnRequest) (string, error) {
		return "", errors.New("connection reset")
	}))

	_, err := r.Generate(context.Background(), &request.TurnRequest{Model: "gemini-2.0-flash"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGatewayFailure))

	var gerr *Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, model.ProviderGemini, gerr.Provider)
	assert.Equal(t, ReasonTransport, gerr.Reason)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestNewRouter_RegistersProviders(t *testing.T) {
	r := NewRouter(RouterConfig{})
	for _, p := range []string{model.ProviderGemini, model.ProviderOpenAI, model.ProviderAnthropic} {
		assert.Contains(t, r.providers, p)
	}
}

func TestError_Matching(t *testing.T) {
	err := newError("openai", 401, "bad key", nil)
	assert.True(t, errors.Is(err, ErrGatewayFailure))
	assert.True(t, errors.Is(err, ErrAuthFailed))
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, "openai: authentication failed (HTTP 401): bad key", err.Error())

	timeout := newError("gemini", 0, "", context.DeadlineExceeded)
	assert.True(t, errors.Is(timeout, ErrTimeout))
	assert.True(t, errors.Is(timeout, context.DeadlineExceeded))

	assert.Equal(t, ReasonServer, newError("x", 503, "", nil).Reason)
	assert.Equal(t, ReasonBadRequest, newError("x", 400, "", nil).Reason)
	assert.Equal(t, ReasonNotFound, newError("x", 404, "", nil).Reason)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func blocking() Gateway {
	return Func(func(ctx context.Context, req *request.TurnRequest) (string, error) {
		<-ctx.Done()
		return "", newError("test", 0, "", ctx.Err())
	})
}

func echo(reply string) Gateway {
	return Func(func(ctx context.Context, req *request.TurnRequest) (string, error) {
		return reply, nil
	})
}

func TestWithTimeout(t *testing.T) {
	g := Chain(blocking(), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := g.Generate(context.Background(), &request.TurnRequest{})
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)

	passthrough := Chain(echo("ok"), WithTimeout(0))
	text, err := passthrough.Generate(context.Background(), &request.TurnRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestWithRateLimit(t *testing.T) {
	g := Chain(echo("ok"), WithRateLimit(1))

	// The first call uses the burst.
	_, err := g.Generate(context.Background(), &request.TurnRequest{})
	require.NoError(t, err)

	// The second would wait a minute; a short deadline fails it locally.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, &request.TurnRequest{})
	assert.True(t, errors.Is(err, ErrRateLimited), "got %v", err)
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	g := Chain(echo("reply"), WithLogging(logger))
	_, err := g.Generate(context.Background(), &request.TurnRequest{Model: "gpt-4o", Credential: "sk-secret-value"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Model request finished")
	assert.Contains(t, out, "gpt-4o")
	assert.NotContains(t, out, "sk-secret-value")
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Gateway) Gateway {
			return Func(func(ctx context.Context, req *request.TurnRequest) (string, error) {
				order = append(order, name)
				return next.Generate(ctx, req)
			})
		}
	}

	_, err := Chain(echo(""), mark("outer"), mark("inner")).Generate(context.Background(), &request.TurnRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}
