package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pario-ai/conduit/pkg/models"
)

// OpenAI adapts an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	endpoint
}

// BuildRequest implements Adapter.
func (o *OpenAI) BuildRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	var p models.GeneratePayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	req := models.ChatCompletionRequest{
		Model:    o.model(p.Model),
		Messages: chatMessages(p),
	}
	if p.MaxTokens > 0 {
		req.MaxTokens = &p.MaxTokens
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return o.newRequest(ctx, http.MethodPost, "/v1/chat/completions", body, "bearer")
}

// ParseResponse implements Adapter.
func (o *OpenAI) ParseResponse(body []byte) ([]byte, error) {
	var resp models.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("response has no choices")
	}
	return json.Marshal(models.Completion{
		Provider: o.Name(),
		Model:    resp.Model,
		Text:     resp.Choices[0].Message.Content,
		Usage:    resp.Usage,
	})
}

// chatMessages flattens a generate payload into chat messages, system first.
func chatMessages(p models.GeneratePayload) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, len(p.Messages)+2)
	if p.System != "" {
		msgs = append(msgs, models.ChatMessage{Role: "system", Content: p.System})
	}
	msgs = append(msgs, p.Messages...)
	if p.Prompt != "" {
		msgs = append(msgs, models.ChatMessage{Role: "user", Content: p.Prompt})
	}
	return msgs
}
