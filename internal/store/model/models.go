package model

import (
	"database/sql"
	"time"
)

// RequestLog is one model's outcome within a dispatch.
type RequestLog struct {
	ID              string        `db:"id" json:"id"`
	DispatchID      string        `db:"dispatch_id" json:"dispatch_id"`
	ModelID         string        `db:"model_id" json:"model_id"`
	ProviderType    string        `db:"provider_type" json:"provider_type"`
	UpstreamModelID string        `db:"upstream_model_id" json:"upstream_model_id"`
	Status          string        `db:"status" json:"status"`
	StatusCode      int           `db:"status_code" json:"status_code"`
	ErrorMessage    string        `db:"error_message" json:"error_message,omitempty"`
	LatencyMS       int64         `db:"latency_ms" json:"latency_ms"`
	TTFTMS          sql.NullInt64 `db:"ttft_ms" json:"ttft_ms,omitempty"`
	ChunkCount      int           `db:"chunk_count" json:"chunk_count"`
	IsStreamed      bool          `db:"is_streamed" json:"is_streamed"`
	IsCached        bool          `db:"is_cached" json:"is_cached"`
	PromptChars     int           `db:"prompt_chars" json:"prompt_chars"`
	ImageCount      int           `db:"image_count" json:"image_count"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// Failed reports whether the row records an error outcome.
func (l *RequestLog) Failed() bool {
	return l.Status != "ok"
}

// DailyStats represents aggregated usage data for a specific day.
type DailyStats struct {
	Date           string          `db:"date" json:"date"`
	TotalRequests  int             `db:"total_requests" json:"total_requests"`
	ErrorCount     int             `db:"error_count" json:"error_count"`
	StreamedCount  int             `db:"streamed_count" json:"streamed_count"`
	AverageLatency sql.NullFloat64 `db:"avg_latency" json:"avg_latency"`
	TotalChunks    int             `db:"total_chunks" json:"total_chunks"`
	DistinctModels int             `db:"distinct_models" json:"distinct_models"`
}
