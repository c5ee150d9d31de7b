package model

import "time"

// RequestLog is one audited chat call: what was requested, how it was
// routed, and what actually served it. Rows are written for observability
// only; routing never reads them back.
type RequestLog struct {
	ID             string    `db:"id"`
	RequestedModel string    `db:"requested_model"`
	RoutedBackend  string    `db:"routed_backend"`
	RoutedModel    string    `db:"routed_model"`
	UsedBackend    string    `db:"used_backend"`
	UsedModel      string    `db:"used_model"`
	UsedTier       string    `db:"used_tier"`
	RouteReason    string    `db:"route_reason"`
	Score          int       `db:"score"`
	Attempts       int       `db:"attempts"`
	Succeeded      bool      `db:"succeeded"`
	InputTokens    int       `db:"input_tokens"`
	OutputTokens   int       `db:"output_tokens"`
	LatencyMS      int64     `db:"latency_ms"`
	CreatedAt      time.Time `db:"created_at"`
}

// DailyStats aggregates request logs per day for operator dashboards.
type DailyStats struct {
	Day          string `db:"day"`
	Requests     int    `db:"requests"`
	Failovers    int    `db:"failovers"`
	Failures     int    `db:"failures"`
	InputTokens  int64  `db:"input_tokens"`
	OutputTokens int64  `db:"output_tokens"`
}
