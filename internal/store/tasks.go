// Package store persists tasks and global settings as YAML files in the
// dailyd data directory. All writes are atomic with backup; corrupt files
// are quarantined and recovered on load.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	yamlv3 "gopkg.in/yaml.v3"

	"dailyd/internal/model"
	atomicyaml "dailyd/internal/yaml"
)

// ErrNotFound is returned when an operation names a task id that is not in
// the store, e.g. after a concurrent delete.
var ErrNotFound = errors.New("task not found")

const tasksFileName = "tasks.yaml"

type tasksFile struct {
	SchemaVersion int          `yaml:"schema_version"`
	FileType      string       `yaml:"file_type"`
	Tasks         []model.Task `yaml:"tasks"`
}

// TaskStore keeps the task list in memory and mirrors every mutation to
// tasks.yaml.
type TaskStore struct {
	mu      sync.Mutex
	dataDir string
	path    string
	tasks   []model.Task
}

// OpenTasks loads tasks.yaml from dataDir, creating a skeleton when the file
// is absent and recovering it when corrupt.
func OpenTasks(dataDir string) (*TaskStore, error) {
	s := &TaskStore{
		dataDir: dataDir,
		path:    filepath.Join(dataDir, tasksFileName),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads tasks.yaml, replacing the in-memory list. Used at open and
// when the daemon sees the file change on disk.
func (s *TaskStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.tasks = nil
		return s.persistLocked()
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var f tasksFile
	err = yamlv3.Unmarshal(content, &f)
	if err == nil {
		err = atomicyaml.ValidateSchemaHeaderFromBytes(content, atomicyaml.FileTypeTasks)
	} else {
		err = fmt.Errorf("parse %s: %w", s.path, err)
	}
	if err != nil {
		if rerr := atomicyaml.RecoverCorruptedFile(s.dataDir, s.path, atomicyaml.FileTypeTasks); rerr != nil {
			return fmt.Errorf("recover %s: %w", s.path, rerr)
		}
		recovered, rerr := os.ReadFile(s.path)
		if rerr != nil {
			return fmt.Errorf("read recovered %s: %w", s.path, rerr)
		}
		f = tasksFile{}
		if rerr := yamlv3.Unmarshal(recovered, &f); rerr != nil {
			return fmt.Errorf("parse recovered %s: %w", s.path, rerr)
		}
	}

	for i := range f.Tasks {
		f.Tasks[i].Normalize()
	}
	s.tasks = f.Tasks
	return nil
}

// ListTasks returns a copy of the current task list.
func (s *TaskStore) ListTasks() ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

func (s *TaskStore) GetTask(id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Task{}, fmt.Errorf("get task %s: %w", id, ErrNotFound)
}

func (s *TaskStore) AddTask(task model.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == task.ID {
			return fmt.Errorf("task %s already exists", task.ID)
		}
	}
	s.tasks = append(s.tasks, task)
	return s.persistLocked()
}

func (s *TaskStore) RemoveTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return s.persistLocked()
		}
	}
	return fmt.Errorf("remove task %s: %w", id, ErrNotFound)
}

// UpdateTask replaces the stored record for task.ID and persists. The whole
// record is written in one atomic rename, so a task update is never partial.
func (s *TaskStore) UpdateTask(task model.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == task.ID {
			s.tasks[i] = task
			return s.persistLocked()
		}
	}
	return fmt.Errorf("update task %s: %w", task.ID, ErrNotFound)
}

func (s *TaskStore) persistLocked() error {
	f := tasksFile{
		SchemaVersion: atomicyaml.CurrentSchemaVersion,
		FileType:      atomicyaml.FileTypeTasks,
		Tasks:         s.tasks,
	}
	if f.Tasks == nil {
		f.Tasks = []model.Task{}
	}
	return atomicyaml.AtomicWrite(s.path, f)
}
