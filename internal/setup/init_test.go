package setup

import (
	"os"
	"path/filepath"
	"testing"

	yamlv3 "gopkg.in/yaml.v3"
)

func TestRun_CreatesLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	if err := Run(dir); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, sub := range []string{"logs", "locks", "quarantine"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s: %v", sub, err)
		}
	}
	for _, name := range []string{"tasks.yaml", "settings.yaml", "config.yaml"} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("expected file %s: %v", name, err)
		}
		var data map[string]any
		if err := yamlv3.Unmarshal(content, &data); err != nil {
			t.Errorf("%s is not valid YAML: %v", name, err)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	if err := Run(dir); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// Put user content in place, re-run, and check it survives.
	marker := []byte("schema_version: 1\nfile_type: tasks\ntasks:\n  - id: keep\n    name: Keep\n    monitoring_signature: /bin/keep\n")
	path := filepath.Join(dir, "tasks.yaml")
	if err := os.WriteFile(path, marker, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := Run(dir); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != string(marker) {
		t.Error("existing tasks.yaml was overwritten by init")
	}
}
