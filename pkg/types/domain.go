package types

// Model describes a servable model artifact on disk plus the serving limits
// attached to it. The shape signature excludes the batch dimension.
type Model struct {
	// Stable identifier for the model.
	ID string `json:"id"`
	// Human-friendly name.
	Name string `json:"name,omitempty"`
	// Absolute path to the model artifact on disk.
	Path string `json:"path"`
	// Backend selects the execution backend ("onnx" or "sim").
	Backend string `json:"backend,omitempty"`
	// InputShape is the per-request input signature, batch dimension excluded.
	InputShape []int64 `json:"input_shape"`
	// OutputShape is the per-request output signature, batch dimension excluded.
	OutputShape []int64 `json:"output_shape"`
	// InputName and OutputName are the graph tensor names used by the ONNX backend.
	InputName  string `json:"input_name,omitempty"`
	OutputName string `json:"output_name,omitempty"`
	// MaxBatchSize caps how many requests may be stacked into one execution.
	MaxBatchSize int `json:"max_batch_size,omitempty"`
	// SessionPoolSize caps concurrent native execution contexts for this model.
	SessionPoolSize int `json:"session_pool_size,omitempty"`
}
