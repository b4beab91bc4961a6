package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"

	"dailyd/internal/model"
	atomicyaml "dailyd/internal/yaml"
)

const configFileName = "config.yaml"

type configFile struct {
	SchemaVersion int    `yaml:"schema_version"`
	FileType      string `yaml:"file_type"`
	model.Config  `yaml:",inline"`
}

// LoadConfig reads config.yaml from the data dir. A missing file yields
// defaults; a corrupt one is quarantined and replaced before falling back to
// defaults.
func LoadConfig(dataDir string) (model.Config, error) {
	path := filepath.Join(dataDir, configFileName)

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.DefaultConfig(), nil
	}
	if err != nil {
		return model.Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	f := configFile{Config: model.DefaultConfig()}
	err = yamlv3.Unmarshal(content, &f)
	if err == nil {
		err = atomicyaml.ValidateSchemaHeaderFromBytes(content, atomicyaml.FileTypeConfig)
	} else {
		err = fmt.Errorf("parse %s: %w", path, err)
	}
	if err != nil {
		if rerr := atomicyaml.RecoverCorruptedFile(dataDir, path, atomicyaml.FileTypeConfig); rerr != nil {
			return model.Config{}, fmt.Errorf("recover %s: %w", path, rerr)
		}
		return model.DefaultConfig(), nil
	}

	return f.Config, nil
}

// WriteDefaultConfig writes a fresh config.yaml; used by setup.
func WriteDefaultConfig(dataDir string) error {
	f := configFile{
		SchemaVersion: atomicyaml.CurrentSchemaVersion,
		FileType:      atomicyaml.FileTypeConfig,
		Config:        model.DefaultConfig(),
	}
	return atomicyaml.AtomicWrite(filepath.Join(dataDir, configFileName), f)
}
