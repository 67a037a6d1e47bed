package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pario-ai/conduit/pkg/orchestrator"
)

// Tool argument structs.

type callArgs struct {
	Operation string          `json:"operation"`
	Providers []string        `json:"providers"`
	Payload   json.RawMessage `json:"payload"`
}

type statsArgs struct {
	Operation string `json:"operation"`
	Since     string `json:"since"`
}

type recentArgs struct {
	Operation string `json:"operation"`
	Limit     int    `json:"limit"`
}

type invalidateArgs struct {
	Prefix string `json:"prefix"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"conduit_call":             handleCall,
	"conduit_stats":            handleStats,
	"conduit_recent_calls":     handleRecent,
	"conduit_cache_stats":      handleCacheStats,
	"conduit_cache_invalidate": handleInvalidate,
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "conduit_call",
		Description: "Call an external API operation through the orchestrator (cached, rate-limited, retried, with provider failover). Returns the provider's JSON response.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"operation"},
			"properties": map[string]any{
				"operation": map[string]any{
					"type":        "string",
					"description": "Logical operation name, e.g. generate or lookup",
				},
				"providers": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Provider chain in order (optional, defaults to the operation's route)",
				},
				"payload": map[string]any{
					"type":        "object",
					"description": "Operation parameters",
				},
			},
		},
	},
	{
		Name:        "conduit_stats",
		Description: "Summarize recorded call outcomes by operation, provider and outcome.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type":        "string",
					"description": "Filter by operation (optional)",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Look-back window as a Go duration, e.g. 1h (optional, defaults to 24h)",
				},
			},
		},
	},
	{
		Name:        "conduit_recent_calls",
		Description: "List the most recent recorded calls.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type":        "string",
					"description": "Filter by operation (optional)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of calls (optional, defaults to 20)",
				},
			},
		},
	},
	{
		Name:        "conduit_cache_stats",
		Description: "Show response cache statistics (entries, hits, misses, evictions, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "conduit_cache_invalidate",
		Description: "Drop cached responses whose key starts with prefix; an operation name followed by a colon clears that operation. An empty prefix clears everything.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prefix": map[string]any{
					"type":        "string",
					"description": "Key prefix, e.g. lookup:",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleCall(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args callArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}
	if args.Operation == "" {
		return errorResult("operation is required")
	}

	var (
		res orchestrator.Result
		err error
	)
	if len(args.Providers) > 0 {
		res, err = s.orch.Call(ctx, args.Operation, args.Providers, args.Payload)
	} else {
		res, err = s.orch.CallOperation(ctx, args.Operation, args.Payload)
	}
	if err != nil {
		return errorResult("Call failed: " + err.Error())
	}
	return textResult(string(res.Value))
}

func handleStats(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.tracker == nil {
		return textResult("Call tracking is not enabled.")
	}
	var args statsArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	window := 24 * time.Hour
	if args.Since != "" {
		d, err := time.ParseDuration(args.Since)
		if err != nil {
			return errorResult("Invalid since duration (use e.g. 1h): " + err.Error())
		}
		window = d
	}

	rows, err := s.tracker.Summary(ctx, args.Operation, time.Now().UTC().Add(-window))
	if err != nil {
		return errorResult("Error fetching stats: " + err.Error())
	}
	return textResult(formatSummary(rows))
}

func handleRecent(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.tracker == nil {
		return textResult("Call tracking is not enabled.")
	}
	var args recentArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}

	records, err := s.tracker.Recent(ctx, args.Operation, args.Limit)
	if err != nil {
		return errorResult("Error fetching calls: " + err.Error())
	}
	return textResult(formatRecords(records))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatCacheStats(s.orch.CacheStats()))
}

func handleInvalidate(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args invalidateArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	return textResult(formatInvalidated(args.Prefix, s.orch.Invalidate(args.Prefix)))
}
