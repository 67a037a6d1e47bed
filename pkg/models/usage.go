package models

import "time"

// CallOutcome classifies how a logical call finished.
type CallOutcome string

const (
	OutcomeSuccess     CallOutcome = "success"
	OutcomeCacheHit    CallOutcome = "cache_hit"
	OutcomeShared      CallOutcome = "shared"
	OutcomeRateLimited CallOutcome = "rate_limited"
	OutcomeTimeout     CallOutcome = "timeout"
	OutcomeHTTPError   CallOutcome = "http_error"
	OutcomeNetwork     CallOutcome = "network_error"
	OutcomeExhausted   CallOutcome = "exhausted"
	OutcomeError       CallOutcome = "error"
)

// CallRecord tracks the outcome of one logical call through the orchestrator.
type CallRecord struct {
	ID         int64       `json:"id"`
	RequestID  string      `json:"request_id,omitempty"`
	Operation  string      `json:"operation"`
	Provider   string      `json:"provider,omitempty"`
	Chain      []string    `json:"chain,omitempty"`
	Outcome    CallOutcome `json:"outcome"`
	Attempts   int         `json:"attempts"`
	StatusCode int         `json:"status_code,omitempty"`
	Error      string      `json:"error,omitempty"`
	LatencyMs  int64       `json:"latency_ms"`
	CreatedAt  time.Time   `json:"created_at"`
}

// CallSummary aggregates call records by operation, provider and outcome.
type CallSummary struct {
	Operation    string      `json:"operation"`
	Provider     string      `json:"provider"`
	Outcome      CallOutcome `json:"outcome"`
	Count        int         `json:"count"`
	AvgLatencyMs float64     `json:"avg_latency_ms"`
	MaxAttempts  int         `json:"max_attempts"`
}
