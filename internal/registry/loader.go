// Package registry discovers servable model artifacts on disk. Artifact
// parsing stays out of the serving core; this package only builds descriptors.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"enferd/pkg/types"
)

// sidecar is the optional <artifact>.json metadata file next to a model,
// carrying the tensor signature the serving core needs for shape checks.
type sidecar struct {
	Name            string  `json:"name"`
	Backend         string  `json:"backend"`
	InputShape      []int64 `json:"input_shape"`
	OutputShape     []int64 `json:"output_shape"`
	InputName       string  `json:"input_name"`
	OutputName      string  `json:"output_name"`
	MaxBatchSize    int     `json:"max_batch_size"`
	SessionPoolSize int     `json:"session_pool_size"`
}

// LoadDir scans a directory for *.onnx files and builds descriptors from
// filenames plus sidecar metadata. ID is the filename without extension;
// Path is the absolute file path. Artifacts without a sidecar are skipped
// because the serving core cannot validate shapes for them.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".onnx") {
			continue
		}
		p := filepath.Join(abs, name)
		sc, err := loadSidecar(p)
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		display := sc.Name
		if display == "" {
			display = id
		}
		models = append(models, types.Model{
			ID:              id,
			Name:            display,
			Path:            p,
			Backend:         sc.Backend,
			InputShape:      sc.InputShape,
			OutputShape:     sc.OutputShape,
			InputName:       sc.InputName,
			OutputName:      sc.OutputName,
			MaxBatchSize:    sc.MaxBatchSize,
			SessionPoolSize: sc.SessionPoolSize,
		})
	}
	return models, nil
}

func loadSidecar(artifactPath string) (sidecar, error) {
	var sc sidecar
	p := strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + ".json"
	b, err := os.ReadFile(p)
	if err != nil {
		return sc, err
	}
	if err := json.Unmarshal(b, &sc); err != nil {
		return sc, fmt.Errorf("sidecar %s: %w", p, err)
	}
	if len(sc.InputShape) == 0 || len(sc.OutputShape) == 0 {
		return sc, fmt.Errorf("sidecar %s: missing tensor shapes", p)
	}
	return sc, nil
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/onnx
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
