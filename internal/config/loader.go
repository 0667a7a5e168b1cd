package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ModelConfig declares one model to register at startup, taking precedence
// over sidecar metadata discovered next to the artifact.
type ModelConfig struct {
	ID              string  `json:"id" yaml:"id" toml:"id"`
	Name            string  `json:"name" yaml:"name" toml:"name"`
	Path            string  `json:"path" yaml:"path" toml:"path"`
	Backend         string  `json:"backend" yaml:"backend" toml:"backend"`
	InputShape      []int64 `json:"input_shape" yaml:"input_shape" toml:"input_shape"`
	OutputShape     []int64 `json:"output_shape" yaml:"output_shape" toml:"output_shape"`
	InputName       string  `json:"input_name" yaml:"input_name" toml:"input_name"`
	OutputName      string  `json:"output_name" yaml:"output_name" toml:"output_name"`
	MaxBatchSize    int     `json:"max_batch_size" yaml:"max_batch_size" toml:"max_batch_size"`
	SessionPoolSize int     `json:"session_pool_size" yaml:"session_pool_size" toml:"session_pool_size"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr                    string        `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir               string        `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	MaxBatchWaitMS          int           `json:"max_batch_wait_ms" yaml:"max_batch_wait_ms" toml:"max_batch_wait_ms"`
	SessionAcquireTimeoutMS int           `json:"session_acquire_timeout_ms" yaml:"session_acquire_timeout_ms" toml:"session_acquire_timeout_ms"`
	QueueDepthCeiling       int           `json:"queue_depth_ceiling" yaml:"queue_depth_ceiling" toml:"queue_depth_ceiling"`
	MemoryBudgetBytes       int64         `json:"memory_budget_bytes" yaml:"memory_budget_bytes" toml:"memory_budget_bytes"`
	DefaultMaxBatchSize     int           `json:"max_batch_size" yaml:"max_batch_size" toml:"max_batch_size"`
	DefaultSessionPoolSize  int           `json:"session_pool_size" yaml:"session_pool_size" toml:"session_pool_size"`
	OnnxLibraryPath         string        `json:"onnx_library_path" yaml:"onnx_library_path" toml:"onnx_library_path"`
	ActivityDBPath          string        `json:"activity_db_path" yaml:"activity_db_path" toml:"activity_db_path"`
	Models                  []ModelConfig `json:"models" yaml:"models" toml:"models"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
