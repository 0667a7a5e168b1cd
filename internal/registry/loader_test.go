package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDirBuildsDescriptors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "resnet.onnx", "not a real artifact")
	writeFile(t, dir, "resnet.json", `{
		"name": "ResNet-50",
		"input_shape": [3, 224, 224],
		"output_shape": [1000],
		"input_name": "pixel_values",
		"max_batch_size": 8,
		"session_pool_size": 2
	}`)

	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	m := models[0]
	if m.ID != "resnet" || m.Name != "ResNet-50" {
		t.Fatalf("unexpected identity: %+v", m)
	}
	if m.Path != filepath.Join(dir, "resnet.onnx") {
		t.Fatalf("unexpected path: %s", m.Path)
	}
	if len(m.InputShape) != 3 || m.OutputShape[0] != 1000 {
		t.Fatalf("shapes not carried over: %+v", m)
	}
	if m.InputName != "pixel_values" || m.MaxBatchSize != 8 || m.SessionPoolSize != 2 {
		t.Fatalf("sidecar fields not carried over: %+v", m)
	}
}

func TestLoadDirSkipsArtifactsWithoutSidecar(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orphan.onnx", "x")
	writeFile(t, dir, "readme.txt", "not a model")

	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(models) != 0 {
		t.Fatalf("expected no models, got %+v", models)
	}
}

func TestLoadDirSkipsSidecarsWithoutShapes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "m.onnx", "x")
	writeFile(t, dir, "m.json", `{"name": "no shapes"}`)

	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(models) != 0 {
		t.Fatalf("shapeless sidecar must be skipped, got %+v", models)
	}
}

func TestLoadDirDefaultsNameToID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tiny.onnx", "x")
	writeFile(t, dir, "tiny.json", `{"input_shape": [2], "output_shape": [1]}`)

	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(models) != 1 || models[0].Name != "tiny" {
		t.Fatalf("expected name defaulted to id, got %+v", models)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
