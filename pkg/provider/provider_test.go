package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/conduit/pkg/config"
	"github.com/pario-ai/conduit/pkg/models"
)

func mustAdapter(t *testing.T, pc config.ProviderConfig) Adapter {
	t.Helper()
	a, err := New(pc)
	require.NoError(t, err)
	return a
}

func TestOpenAIRequest(t *testing.T) {
	a := mustAdapter(t, config.ProviderConfig{
		Name: "primary", URL: "https://api.openai.com", APIKey: "sk-1", Model: "gpt-4o-mini",
	})

	req, err := a.BuildRequest(context.Background(), []byte(`{"system":"be brief","prompt":"hi","max_tokens":64}`))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", req.URL.String())
	assert.Equal(t, "Bearer sk-1", req.Header.Get("Authorization"))

	body, _ := io.ReadAll(req.Body)
	var sent models.ChatCompletionRequest
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "gpt-4o-mini", sent.Model)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, "system", sent.Messages[0].Role)
	assert.Equal(t, "hi", sent.Messages[1].Content)
	require.NotNil(t, sent.MaxTokens)
	assert.Equal(t, 64, *sent.MaxTokens)
}

func TestOpenAIResponse(t *testing.T) {
	a := mustAdapter(t, config.ProviderConfig{Name: "primary", URL: "https://api.openai.com"})

	out, err := a.ParseResponse([]byte(`{"model":"gpt-4o","choices":[{"message":{"role":"assistant","content":"Hello!"}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	require.NoError(t, err)

	var c models.Completion
	require.NoError(t, json.Unmarshal(out, &c))
	assert.Equal(t, "primary", c.Provider)
	assert.Equal(t, "Hello!", c.Text)
	assert.Equal(t, 5, c.Usage.TotalTokens)

	_, err = a.ParseResponse([]byte(`{"choices":[]}`))
	assert.Error(t, err)
}

func TestAnthropicRequestAndResponse(t *testing.T) {
	a := mustAdapter(t, config.ProviderConfig{
		Name: "secondary", Type: "anthropic", URL: "https://api.anthropic.com", APIKey: "sk-ant", Model: "claude-haiku-4-5",
	})

	req, err := a.BuildRequest(context.Background(), []byte(`{"messages":[{"role":"system","content":"sys"},{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "https://api.anthropic.com/v1/messages", req.URL.String())
	assert.Equal(t, "sk-ant", req.Header.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))

	body, _ := io.ReadAll(req.Body)
	var sent models.AnthropicRequest
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "sys", sent.System)
	assert.Equal(t, anthropicMaxTokens, sent.MaxTokens)
	require.Len(t, sent.Messages, 1)

	out, err := a.ParseResponse([]byte(`{"model":"claude-haiku-4-5","content":[{"type":"text","text":"Hel"},{"type":"text","text":"lo"}],"usage":{"input_tokens":4,"output_tokens":1}}`))
	require.NoError(t, err)
	var c models.Completion
	require.NoError(t, json.Unmarshal(out, &c))
	assert.Equal(t, "Hello", c.Text)
	assert.Equal(t, 5, c.Usage.TotalTokens)
}

func TestRESTGetWithQueryAuth(t *testing.T) {
	a := mustAdapter(t, config.ProviderConfig{
		Name: "affiliate", Type: "rest", URL: "https://aff.example.com/lookup?format=json",
		Method: "get", Auth: "query", AuthParam: "token", APIKey: "abc",
	})

	req, err := a.BuildRequest(context.Background(), []byte(`{"sku":"B00X","limit":5,"tags":["a","b"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/lookup", req.URL.Path)
	q := req.URL.Query()
	assert.Equal(t, "B00X", q.Get("sku"))
	assert.Equal(t, "5", q.Get("limit"))
	assert.Equal(t, `["a","b"]`, q.Get("tags"))
	assert.Equal(t, "abc", q.Get("token"))
	assert.Equal(t, "json", q.Get("format"))
	assert.Nil(t, req.Body)
}

func TestRESTPostWithHeaderAuth(t *testing.T) {
	a := mustAdapter(t, config.ProviderConfig{
		Name: "affiliate", Type: "rest", URL: "https://aff.example.com", Path: "/v2/offers",
		Auth: "header", AuthParam: "X-Partner-Key", APIKey: "k", Headers: map[string]string{"X-Client": "conduit"},
	})

	req, err := a.BuildRequest(context.Background(), []byte(`{"q":"shoes"}`))
	require.NoError(t, err)
	assert.Equal(t, "https://aff.example.com/v2/offers", req.URL.String())
	assert.Equal(t, "k", req.Header.Get("X-Partner-Key"))
	assert.Equal(t, "conduit", req.Header.Get("X-Client"))
	body, _ := io.ReadAll(req.Body)
	assert.JSONEq(t, `{"q":"shoes"}`, string(body))

	out, err := a.ParseResponse([]byte(`{"offers":[]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"offers":[]}`, string(out))
	_, err = a.ParseResponse([]byte(`<html>`))
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	adapters, err := FromConfig([]config.ProviderConfig{
		{Name: "primary", URL: "https://a"},
		{Name: "secondary", Type: "anthropic", URL: "https://b"},
	})
	require.NoError(t, err)
	assert.Len(t, adapters, 2)
	assert.IsType(t, &Anthropic{}, adapters["secondary"])

	_, err = New(config.ProviderConfig{Name: "x", Type: "soap", URL: "https://c"})
	assert.Error(t, err)
}

func TestBuildRequestRejectsEmptyPayload(t *testing.T) {
	a := mustAdapter(t, config.ProviderConfig{Name: "primary", URL: "https://a"})
	_, err := a.BuildRequest(context.Background(), nil)
	assert.Error(t, err)
}
