package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pario-ai/conduit/pkg/models"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

// Anthropic adapts the Anthropic messages endpoint.
type Anthropic struct {
	endpoint
}

// BuildRequest implements Adapter.
func (a *Anthropic) BuildRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	var p models.GeneratePayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	msgs := make([]models.ChatMessage, 0, len(p.Messages)+1)
	system := p.System
	for _, m := range p.Messages {
		// Anthropic takes the system prompt as a top-level field.
		if m.Role == "system" {
			if system == "" {
				system = m.Content
			}
			continue
		}
		msgs = append(msgs, m)
	}
	if p.Prompt != "" {
		msgs = append(msgs, models.ChatMessage{Role: "user", Content: p.Prompt})
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}
	body, err := json.Marshal(models.AnthropicRequest{
		Model:     a.model(p.Model),
		Messages:  msgs,
		System:    system,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := a.newRequest(ctx, http.MethodPost, "/v1/messages", body, "x-api-key")
	if err != nil {
		return nil, err
	}
	if req.Header.Get("anthropic-version") == "" {
		req.Header.Set("anthropic-version", anthropicVersion)
	}
	return req, nil
}

// ParseResponse implements Adapter.
func (a *Anthropic) ParseResponse(body []byte) ([]byte, error) {
	var resp models.AnthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	out := models.Completion{
		Provider: a.Name(),
		Model:    resp.Model,
		Text:     text.String(),
	}
	if resp.Usage != nil {
		out.Usage = resp.Usage.ToUsage()
	}
	return json.Marshal(out)
}
