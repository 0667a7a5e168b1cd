package types

import "enferd/pkg/tensor"

// InferRequest is the payload for POST /infer.
type InferRequest struct {
	// Model identifier to run against.
	Model string `json:"model"`
	// Input tensor, shaped per the model signature (no batch dimension).
	Input tensor.Tensor `json:"input"`
	// Optional per-request deadline in milliseconds. Zero means the server
	// relies on connection-level timeouts only.
	DeadlineMS int64 `json:"deadline_ms,omitempty"`
}

// InferResponse is the payload returned by POST /infer.
type InferResponse struct {
	Model  string        `json:"model"`
	Output tensor.Tensor `json:"output"`
	// BatchSize reports how many requests shared the native call.
	BatchSize int `json:"batch_size"`
	// QueueMS is the time the request spent waiting before dispatch.
	QueueMS int64 `json:"queue_ms"`
	// DurationMS is the native execution duration for the batch.
	DurationMS int64 `json:"duration_ms"`
}

// ModelsResponse wraps the list of registered models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// ModelStatus summarizes one registered model for GET /status.
type ModelStatus struct {
	ModelID string `json:"model_id"`
	// Pending requests currently queued for this model.
	QueueDepth int `json:"queue_depth"`
	// Queue depth at which admission starts rejecting.
	QueueCeiling int `json:"queue_ceiling"`
	// Estimated bytes reserved by queued requests.
	ReservedBytes int64 `json:"reserved_bytes"`
	// Sessions currently leased to in-flight batches.
	LeasedSessions int `json:"leased_sessions"`
	// Total sessions in the pool.
	PoolSize int `json:"pool_size"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Models []ModelStatus `json:"models"`
	// Global memory budget for queued request payloads.
	MemoryBudgetBytes int64 `json:"memory_budget_bytes"`
	// Bytes currently reserved against the budget.
	ReservedBytes int64 `json:"reserved_bytes"`
	// Totals since start.
	AdmittedTotal  uint64 `json:"admitted_total"`
	RejectedTotal  uint64 `json:"rejected_total"`
	BatchesTotal   uint64 `json:"batches_total"`
	FailuresTotal  uint64 `json:"failures_total"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	ServerTimeUnix int64  `json:"server_time_unix"`
}
