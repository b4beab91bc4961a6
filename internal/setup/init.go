// Package setup handles dailyd data directory initialization.
package setup

import (
	"fmt"
	"os"
	"path/filepath"

	atomicyaml "dailyd/internal/yaml"
)

// Run creates the data directory layout and skeleton files. It is
// idempotent: existing files are left untouched.
func Run(dataDir string) error {
	absDir, err := filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}

	dirs := []string{
		"logs",
		"locks",
		"quarantine",
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(absDir, d), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	files := map[string]string{
		"tasks.yaml":    atomicyaml.FileTypeTasks,
		"settings.yaml": atomicyaml.FileTypeSettings,
		"config.yaml":   atomicyaml.FileTypeConfig,
	}
	for name, fileType := range files {
		path := filepath.Join(absDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := atomicyaml.GenerateSkeleton(path, fileType); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	return nil
}
