package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// REST adapts a generic JSON endpoint such as an affiliate-network lookup.
// For GET requests the payload's top-level members become query parameters;
// otherwise the payload is sent as the JSON body. The response body is
// returned unchanged once it is confirmed to be JSON.
type REST struct {
	endpoint
}

// BuildRequest implements Adapter.
func (r *REST) BuildRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	method := normalizeMethod(r.cfg.Method)
	if method != http.MethodGet {
		return r.newRequest(ctx, method, "", payload, "bearer")
	}

	req, err := r.newRequest(ctx, method, "", nil, "bearer")
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return req, nil
	}
	var params map[string]any
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, fmt.Errorf("decode query payload: %w", err)
	}
	q := req.URL.Query()
	for k, v := range params {
		switch val := v.(type) {
		case string:
			q.Set(k, val)
		case nil:
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encode query param %q: %w", k, err)
			}
			q.Set(k, string(b))
		}
	}
	req.URL.RawQuery = q.Encode()
	return req, nil
}

// ParseResponse implements Adapter.
func (r *REST) ParseResponse(body []byte) ([]byte, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return body, nil
}
