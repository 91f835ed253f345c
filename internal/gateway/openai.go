// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/request"
)

// OpenAI sends requests through the OpenAI chat completions API or any
// compatible endpoint.
type OpenAI struct {
	cfg ProviderConfig

	mu     sync.Mutex
	key    string
	client *openai.Client
}

// NewOpenAI creates an OpenAI gateway.
func NewOpenAI(cfg ProviderConfig) *OpenAI {
	return &OpenAI{cfg: cfg}
}

func (o *OpenAI) clientFor(key string) *openai.Client {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.client != nil && o.key == key {
		return o.client
	}
	config := openai.DefaultConfig(key)
	if o.cfg.BaseURL != "" {
		config.BaseURL = o.cfg.BaseURL
	}
	if o.cfg.HTTPClient != nil {
		config.HTTPClient = o.cfg.HTTPClient
	}
	o.key, o.client = key, openai.NewClientWithConfig(config)
	return o.client
}

// Generate implements Gateway.
func (o *OpenAI) Generate(ctx context.Context, req *request.TurnRequest) (string, error) {
	client := o.clientFor(req.Credential)

	resp, err := client.CreateChatCompletion(ctx, openAIRequest(req))
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: model.ProviderOpenAI, Reason: ReasonEmpty, Message: "no choices returned"}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &Error{Provider: model.ProviderOpenAI, Reason: ReasonEmpty, Message: "empty message content"}
	}
	return text, nil
}

func openAIRole(r request.Role) string {
	if r == request.RoleModel {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}

func openAIRequest(req *request.TurnRequest) openai.ChatCompletionRequest {
	if req.Kind == request.KindSingleShot {
		var parts []openai.ChatMessagePart
		if req.Text != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: req.Text,
			})
		}
		if req.Image != nil {
			uri := "data:" + req.Image.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Image.Data)
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: uri, Detail: openai.ImageURLDetailAuto},
			})
		}
		return openai.ChatCompletionRequest{
			Model: req.Model,
			Messages: []openai.ChatCompletionMessage{{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			}},
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if strings.TrimSpace(req.SystemInstruction) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	for _, turn := range req.Turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(turn.Role),
			Content: historyText(turn.Text),
		})
	}
	return openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxOutputTokens,
	}
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newError(model.ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newError(model.ProviderOpenAI, reqErr.HTTPStatusCode, "", err)
	}
	return newError(model.ProviderOpenAI, 0, "", err)
}
