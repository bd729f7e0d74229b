package api

// ModelInfo describes one entry of the provider registry.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
	Type string `json:"type"`

	// UpstreamModel is the vendor's own model name
	UpstreamModel string `json:"model"`

	// Configured is false when the credential variable is currently unset.
	Configured bool `json:"configured"`
}

// ModelList is the listing envelope.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// UsageDay is one row of the daily usage overview.
type UsageDay struct {
	Date           string  `json:"date"`
	TotalRequests  int     `json:"total_requests"`
	ErrorCount     int     `json:"error_count"`
	StreamedCount  int     `json:"streamed_count"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
	TotalChunks    int     `json:"total_chunks"`
	DistinctModels int     `json:"distinct_models"`
}
