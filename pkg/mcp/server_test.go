package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/conduit/pkg/models"
	"github.com/pario-ai/conduit/pkg/orchestrator"
)

// fakeOrchestrator implements Orchestrator for testing.
type fakeOrchestrator struct {
	result      orchestrator.Result
	err         error
	gotOp       string
	gotChain    []string
	gotPayload  string
	invalidated string
	stats       models.CacheStats
}

func (f *fakeOrchestrator) Call(_ context.Context, op string, providers []string, payload any) (orchestrator.Result, error) {
	f.gotOp, f.gotChain = op, providers
	if raw, ok := payload.(json.RawMessage); ok {
		f.gotPayload = string(raw)
	}
	return f.result, f.err
}

func (f *fakeOrchestrator) CallOperation(ctx context.Context, op string, payload any) (orchestrator.Result, error) {
	return f.Call(ctx, op, nil, payload)
}

func (f *fakeOrchestrator) Invalidate(prefix string) int {
	f.invalidated = prefix
	return 3
}

func (f *fakeOrchestrator) CacheStats() models.CacheStats { return f.stats }

// fakeTracker implements tracker.Tracker for testing.
type fakeTracker struct {
	summaries []models.CallSummary
	records   []models.CallRecord
	gotSince  time.Time
	gotLimit  int
}

func (f *fakeTracker) Record(_ context.Context, _ models.CallRecord) error { return nil }
func (f *fakeTracker) Recent(_ context.Context, _ string, limit int) ([]models.CallRecord, error) {
	f.gotLimit = limit
	return f.records, nil
}
func (f *fakeTracker) Summary(_ context.Context, _ string, since time.Time) ([]models.CallSummary, error) {
	f.gotSince = since
	return f.summaries, nil
}
func (f *fakeTracker) Prune(_ context.Context, _ time.Time) (int64, error) { return 0, nil }
func (f *fakeTracker) Close() error                                       { return nil }

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	return resp
}

func callTool(t *testing.T, srv *Server, name, args string) ToolCallResult {
	t.Helper()
	params, _ := json.Marshal(ToolCallParams{Name: name, Arguments: json.RawMessage(args)})
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "tools/call",
		Params:  params,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content")
	}
	return result
}

func TestInitialize(t *testing.T) {
	srv := New(&fakeOrchestrator{}, nil, nil, "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	json.Unmarshal(data, &result)

	if result.ProtocolVersion != protocolVersion {
		t.Errorf("protocol version = %s, want %s", result.ProtocolVersion, protocolVersion)
	}
	if result.ServerInfo.Name != "conduit" {
		t.Errorf("server name = %s, want conduit", result.ServerInfo.Name)
	}
}

func TestToolsList(t *testing.T) {
	srv := New(&fakeOrchestrator{}, nil, nil, "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`2`),
		Method:  "tools/list",
	})

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	json.Unmarshal(data, &result)

	if len(result.Tools) != len(toolHandlers) {
		t.Errorf("got %d tools, want %d", len(result.Tools), len(toolHandlers))
	}
	for _, tool := range result.Tools {
		if _, ok := toolHandlers[tool.Name]; !ok {
			t.Errorf("tool %s has no handler", tool.Name)
		}
	}
}

func TestToolCallCall(t *testing.T) {
	orch := &fakeOrchestrator{result: orchestrator.Result{Value: []byte(`{"text":"hello"}`), Provider: "primary"}}
	srv := New(orch, nil, nil, "test")

	result := callTool(t, srv, "conduit_call",
		`{"operation":"generate","providers":["primary","secondary"],"payload":{"prompt":"hi"}}`)

	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content[0].Text)
	}
	if result.Content[0].Text != `{"text":"hello"}` {
		t.Errorf("text = %s", result.Content[0].Text)
	}
	if orch.gotOp != "generate" || len(orch.gotChain) != 2 {
		t.Errorf("got op %q chain %v", orch.gotOp, orch.gotChain)
	}
	if orch.gotPayload != `{"prompt":"hi"}` {
		t.Errorf("payload = %s", orch.gotPayload)
	}
}

func TestToolCallCallUsesRoute(t *testing.T) {
	orch := &fakeOrchestrator{result: orchestrator.Result{Value: []byte(`{}`)}}
	srv := New(orch, nil, nil, "test")

	callTool(t, srv, "conduit_call", `{"operation":"lookup"}`)
	if orch.gotChain != nil {
		t.Errorf("expected routed call, got chain %v", orch.gotChain)
	}
}

func TestToolCallCallErrors(t *testing.T) {
	srv := New(&fakeOrchestrator{err: errors.New("all providers exhausted")}, nil, nil, "test")

	result := callTool(t, srv, "conduit_call", `{"operation":"generate"}`)
	if !result.IsError || !strings.Contains(result.Content[0].Text, "exhausted") {
		t.Errorf("expected exhausted error, got: %+v", result)
	}

	result = callTool(t, srv, "conduit_call", `{}`)
	if !result.IsError {
		t.Error("expected isError=true for missing operation")
	}
}

func TestToolCallStats(t *testing.T) {
	tr := &fakeTracker{
		summaries: []models.CallSummary{
			{Operation: "generate", Provider: "primary", Outcome: models.OutcomeSuccess, Count: 12, AvgLatencyMs: 340, MaxAttempts: 2},
		},
	}
	srv := New(&fakeOrchestrator{}, tr, nil, "test")

	result := callTool(t, srv, "conduit_stats", `{"since":"1h"}`)
	if !strings.Contains(result.Content[0].Text, "generate") || !strings.Contains(result.Content[0].Text, "340ms") {
		t.Errorf("unexpected stats output: %s", result.Content[0].Text)
	}
	if d := time.Since(tr.gotSince); d < time.Hour || d > time.Hour+time.Minute {
		t.Errorf("since window = %v, want about 1h", d)
	}

	result = callTool(t, srv, "conduit_stats", `{"since":"yesterday"}`)
	if !result.IsError {
		t.Error("expected isError=true for invalid since")
	}
}

func TestToolCallRecent(t *testing.T) {
	tr := &fakeTracker{
		records: []models.CallRecord{
			{Operation: "lookup", Outcome: models.OutcomeTimeout, Attempts: 4, Error: "timeout", CreatedAt: time.Now()},
		},
	}
	srv := New(&fakeOrchestrator{}, tr, nil, "test")

	result := callTool(t, srv, "conduit_recent_calls", `{}`)
	if !strings.Contains(result.Content[0].Text, "error: timeout") {
		t.Errorf("unexpected output: %s", result.Content[0].Text)
	}
	if tr.gotLimit != 20 {
		t.Errorf("limit = %d, want 20", tr.gotLimit)
	}
}

func TestToolCallTrackingDisabled(t *testing.T) {
	srv := New(&fakeOrchestrator{}, nil, nil, "test")

	for _, name := range []string{"conduit_stats", "conduit_recent_calls"} {
		result := callTool(t, srv, name, `{}`)
		if !strings.Contains(result.Content[0].Text, "not enabled") {
			t.Errorf("%s: expected 'not enabled', got: %s", name, result.Content[0].Text)
		}
	}
}

func TestToolCallCacheStats(t *testing.T) {
	orch := &fakeOrchestrator{stats: models.CacheStats{Entries: 42, Hits: 10, Misses: 5}}
	srv := New(orch, nil, nil, "test")

	text := callTool(t, srv, "conduit_cache_stats", `{}`).Content[0].Text
	if !strings.Contains(text, "42") || !strings.Contains(text, "66.7%") {
		t.Errorf("unexpected cache stats output: %s", text)
	}
}

func TestToolCallCacheInvalidate(t *testing.T) {
	orch := &fakeOrchestrator{}
	srv := New(orch, nil, nil, "test")

	text := callTool(t, srv, "conduit_cache_invalidate", `{"prefix":"lookup:"}`).Content[0].Text
	if orch.invalidated != "lookup:" {
		t.Errorf("invalidated prefix = %q", orch.invalidated)
	}
	if !strings.Contains(text, "Removed 3") {
		t.Errorf("unexpected output: %s", text)
	}
}

func TestUnknownTool(t *testing.T) {
	srv := New(&fakeOrchestrator{}, nil, nil, "test")
	if result := callTool(t, srv, "nope", `{}`); !result.IsError {
		t.Error("expected isError=true for unknown tool")
	}
}

func TestNotificationNoResponse(t *testing.T) {
	srv := New(&fakeOrchestrator{}, nil, nil, "test")

	line, _ := json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})
	line = append(line, '\n')

	var out bytes.Buffer
	_ = srv.Run(context.Background(), bytes.NewReader(line), &out)

	if out.Len() != 0 {
		t.Errorf("expected no output for notification, got: %s", out.String())
	}
}

func TestParseError(t *testing.T) {
	srv := New(&fakeOrchestrator{}, nil, nil, "test")

	var out bytes.Buffer
	_ = srv.Run(context.Background(), strings.NewReader("{not json\n"), &out)

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Errorf("expected parse error, got %+v", resp)
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := New(&fakeOrchestrator{}, nil, nil, "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`9`),
		Method:  "unknown/method",
	})

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}
