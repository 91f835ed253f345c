// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/request"
)

// anthropicSingleShotMaxTokens is sent with single-shot requests because the
// Messages API requires max_tokens on every call.
const anthropicSingleShotMaxTokens = 4096

// Anthropic sends requests through the Anthropic Messages API.
type Anthropic struct {
	cfg ProviderConfig

	mu     sync.Mutex
	key    string
	client *anthropic.Client
}

// NewAnthropic creates an Anthropic gateway.
func NewAnthropic(cfg ProviderConfig) *Anthropic {
	return &Anthropic{cfg: cfg}
}

func (a *Anthropic) clientFor(key string) *anthropic.Client {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil && a.key == key {
		return a.client
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if a.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.cfg.BaseURL))
	}
	if a.cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(a.cfg.HTTPClient))
	}
	client := anthropic.NewClient(opts...)
	a.key, a.client = key, &client
	return a.client
}

// Generate implements Gateway.
func (a *Anthropic) Generate(ctx context.Context, req *request.TurnRequest) (string, error) {
	client := a.clientFor(req.Credential)

	msg, err := client.Messages.New(ctx, anthropicParams(req))
	if err != nil {
		return "", anthropicError(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &Error{Provider: model.ProviderAnthropic, Reason: ReasonEmpty, Message: "no text blocks returned"}
	}
	return text, nil
}

func anthropicParams(req *request.TurnRequest) anthropic.MessageNewParams {
	if req.Kind == request.KindSingleShot {
		var blocks []anthropic.ContentBlockParamUnion
		if req.Image != nil {
			blocks = append(blocks, anthropic.NewImageBlockBase64(
				req.Image.MIMEType, base64.StdEncoding.EncodeToString(req.Image.Data)))
		}
		if req.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(req.Text))
		}
		return anthropic.MessageNewParams{
			Model:     anthropic.Model(req.Model),
			MaxTokens: anthropicSingleShotMaxTokens,
			Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		}
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Turns))
	for _, turn := range req.Turns {
		text := historyText(turn.Text)
		if turn.Role == request.RoleModel {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxOutputTokens),
		Messages:  messages,
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemInstruction}}
	}
	return params
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return newError(model.ProviderAnthropic, apiErr.StatusCode, "", err)
	}
	return newError(model.ProviderAnthropic, 0, "", err)
}
