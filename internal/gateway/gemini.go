// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/request"
)

// Gemini sends requests through the Gemini API.
type Gemini struct {
	cfg ProviderConfig

	mu     sync.Mutex
	key    string
	client *genai.Client
}

// NewGemini creates a Gemini gateway. The client is created lazily per
// credential because the key arrives with each request.
func NewGemini(cfg ProviderConfig) *Gemini {
	return &Gemini{cfg: cfg}
}

func (g *Gemini) clientFor(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.key == key {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.cfg.BaseURL},
	})
	if err != nil {
		return nil, err
	}
	g.key, g.client = key, client
	return client, nil
}

// Generate implements Gateway.
func (g *Gemini) Generate(ctx context.Context, req *request.TurnRequest) (string, error) {
	client, err := g.clientFor(ctx, req.Credential)
	if err != nil {
		return "", newError(model.ProviderGemini, 0, "create client", err)
	}

	contents, config := geminiContents(req)
	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", geminiError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &Error{Provider: model.ProviderGemini, Reason: ReasonEmpty, Message: "no text in candidates"}
	}
	return text, nil
}

func geminiRole(r request.Role) genai.Role {
	if r == request.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// geminiContents converts a TurnRequest into contents and generation config.
// Single-shot requests get no config at all.
func geminiContents(req *request.TurnRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	if req.Kind == request.KindSingleShot {
		var parts []*genai.Part
		if req.Text != "" {
			parts = append(parts, genai.NewPartFromText(req.Text))
		}
		if req.Image != nil {
			parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
		}
		return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
	}

	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		contents = append(contents, genai.NewContentFromText(historyText(turn.Text), geminiRole(turn.Role)))
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxOutputTokens),
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	return contents, config
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newError(model.ProviderGemini, apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return newError(model.ProviderGemini, apiErrPtr.Code, apiErrPtr.Message, err)
	}
	return newError(model.ProviderGemini, 0, "", err)
}
