package toml

import "fmt"

const currentTasksSchemaVersion = 1

type tasksFileSchema struct {
	Version int          `toml:"version"`
	Tasks   []taskSchema `toml:"tasks"`
}

func (s *tasksFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentTasksSchemaVersion
	}
}

func (s tasksFileSchema) validateVersion() error {
	if s.Version > currentTasksSchemaVersion {
		return fmt.Errorf("unsupported tasks schema version %d (current %d)", s.Version, currentTasksSchemaVersion)
	}

	return nil
}

type taskSchema struct {
	TaskID      string `toml:"task_id"`
	Profile     string `toml:"profile"`
	Label       string `toml:"label,omitempty"`
	Status      string `toml:"status"`
	SubmittedAt string `toml:"submitted_at"`
	UpdatedAt   string `toml:"updated_at"`
}
