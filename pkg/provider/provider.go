// Package provider holds the outbound adapters that turn a logical payload
// into a provider-specific HTTP request and normalize the provider's
// response. Adapters carry no retry, timeout or rate-limit logic.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pario-ai/conduit/pkg/config"
)

// Adapter describes one provider endpoint.
type Adapter interface {
	// Name returns the provider identifier used for routing and rate limits.
	Name() string
	// BuildRequest creates the HTTP request for payload. ctx bounds the call.
	BuildRequest(ctx context.Context, payload []byte) (*http.Request, error)
	// ParseResponse converts a successful response body into the value
	// returned to callers.
	ParseResponse(body []byte) ([]byte, error)
}

// New builds the adapter for a provider config.
func New(pc config.ProviderConfig) (Adapter, error) {
	base, err := url.Parse(pc.URL)
	if err != nil {
		return nil, fmt.Errorf("provider %q: invalid url: %w", pc.Name, err)
	}
	ep := endpoint{cfg: pc, base: base}

	switch pc.Type {
	case "", "openai":
		return &OpenAI{endpoint: ep}, nil
	case "anthropic":
		return &Anthropic{endpoint: ep}, nil
	case "rest":
		return &REST{endpoint: ep}, nil
	default:
		return nil, fmt.Errorf("provider %q: unknown type %q", pc.Name, pc.Type)
	}
}

// FromConfig builds adapters for every configured provider, keyed by name.
func FromConfig(providers []config.ProviderConfig) (map[string]Adapter, error) {
	adapters := make(map[string]Adapter, len(providers))
	for _, pc := range providers {
		a, err := New(pc)
		if err != nil {
			return nil, err
		}
		adapters[pc.Name] = a
	}
	return adapters, nil
}

// endpoint is the part of an adapter shared by every provider type.
type endpoint struct {
	cfg  config.ProviderConfig
	base *url.URL
}

func (e endpoint) Name() string { return e.cfg.Name }

// newRequest builds a request against path, the configured path override,
// or the base URL itself when both are empty. Auth and static headers are
// applied.
func (e endpoint) newRequest(ctx context.Context, method, path string, body []byte, nativeAuth string) (*http.Request, error) {
	if e.cfg.Path != "" {
		path = e.cfg.Path
	}
	target := *e.base
	if path != "" {
		target = *e.base.JoinPath(path)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}

	scheme := e.cfg.Auth
	param := e.cfg.AuthParam
	if scheme == "" {
		scheme, param = nativeAuth, ""
		if scheme == "x-api-key" {
			scheme, param = "header", "x-api-key"
		}
	}
	applyAuth(req, scheme, param, e.cfg.APIKey)
	return req, nil
}

func applyAuth(req *http.Request, scheme, param, key string) {
	if key == "" {
		return
	}
	switch scheme {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+key)
	case "header":
		req.Header.Set(param, key)
	case "query":
		q := req.URL.Query()
		q.Set(param, key)
		req.URL.RawQuery = q.Encode()
	}
}

func (e endpoint) model(requested string) string {
	if requested != "" {
		return requested
	}
	return e.cfg.Model
}

func decodePayload(payload []byte, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func normalizeMethod(m string) string {
	if m == "" {
		return http.MethodPost
	}
	return strings.ToUpper(m)
}
