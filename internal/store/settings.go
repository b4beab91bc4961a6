package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	yamlv3 "gopkg.in/yaml.v3"

	"dailyd/internal/model"
	atomicyaml "dailyd/internal/yaml"
)

const settingsFileName = "settings.yaml"

type settingsFile struct {
	SchemaVersion        int    `yaml:"schema_version"`
	FileType             string `yaml:"file_type"`
	model.GlobalSettings `yaml:",inline"`
}

// SettingsStore holds the single GlobalSettings record. Get hands out value
// copies, so each tick works against an immutable snapshot; Update persists
// first and swaps the in-memory copy only on success.
type SettingsStore struct {
	mu       sync.Mutex
	dataDir  string
	path     string
	settings model.GlobalSettings
}

// OpenSettings loads settings.yaml from dataDir, writing defaults when the
// file is absent and falling back to defaults when it cannot be recovered.
func OpenSettings(dataDir string) (*SettingsStore, error) {
	s := &SettingsStore{
		dataDir: dataDir,
		path:    filepath.Join(dataDir, settingsFileName),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SettingsStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.settings = model.DefaultSettings()
		return s.persistLocked()
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var f settingsFile
	err = yamlv3.Unmarshal(content, &f)
	if err == nil {
		err = atomicyaml.ValidateSchemaHeaderFromBytes(content, atomicyaml.FileTypeSettings)
	} else {
		err = fmt.Errorf("parse %s: %w", s.path, err)
	}
	if err != nil {
		if rerr := atomicyaml.RecoverCorruptedFile(s.dataDir, s.path, atomicyaml.FileTypeSettings); rerr != nil {
			return fmt.Errorf("recover %s: %w", s.path, rerr)
		}
		recovered, rerr := os.ReadFile(s.path)
		if rerr != nil {
			return fmt.Errorf("read recovered %s: %w", s.path, rerr)
		}
		f = settingsFile{GlobalSettings: model.DefaultSettings()}
		if rerr := yamlv3.Unmarshal(recovered, &f); rerr != nil {
			return fmt.Errorf("parse recovered %s: %w", s.path, rerr)
		}
	}

	s.settings = sanitize(f.GlobalSettings)
	return nil
}

// Get returns the current settings snapshot.
func (s *SettingsStore) Get() model.GlobalSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Update applies fn to a copy of the settings, persists the result, and
// swaps it in atomically.
func (s *SettingsStore) Update(fn func(*model.GlobalSettings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	fn(&next)
	next = sanitize(next)

	prev := s.settings
	s.settings = next
	if err := s.persistLocked(); err != nil {
		s.settings = prev
		return err
	}
	return nil
}

func (s *SettingsStore) persistLocked() error {
	f := settingsFile{
		SchemaVersion:  atomicyaml.CurrentSchemaVersion,
		FileType:       atomicyaml.FileTypeSettings,
		GlobalSettings: s.settings,
	}
	return atomicyaml.AtomicWrite(s.path, f)
}

// sanitize clamps negative advance-notice hours; both leads are defined as
// non-negative.
func sanitize(gs model.GlobalSettings) model.GlobalSettings {
	if gs.SleepCorrectionAdvanceHours < 0 {
		gs.SleepCorrectionAdvanceHours = 0
	}
	if gs.CycleDeadlineAdvanceHours < 0 {
		gs.CycleDeadlineAdvanceHours = 0
	}
	return gs
}
