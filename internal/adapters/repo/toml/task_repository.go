package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

const (
	TasksPathKey     = "tasks.path"
	tasksFile        = "tasks.toml"
	tasksTempPattern = ".tasks-*.toml.tmp"
)

// TaskRepository is the local history of submitted transfer tasks.
type TaskRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.TaskRepository = (*TaskRepository)(nil)

func NewTaskRepository(cfg *viper.Viper) (*TaskRepository, error) {
	path, err := resolveStorePath(cfg, TasksPathKey, tasksFile)
	if err != nil {
		return nil, err
	}

	return &TaskRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *TaskRepository) Save(ctx context.Context, record domain.TaskRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.TaskID == "" {
		return errors.New("task id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toTaskSchema(record)
	updated := false
	for i := range file.Tasks {
		if file.Tasks[i].TaskID == encoded.TaskID {
			file.Tasks[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Tasks = append(file.Tasks, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (domain.TaskRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.TaskRecord{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.TaskRecord{}, err
	}

	for _, entry := range file.Tasks {
		if entry.TaskID == taskID {
			return fromTaskSchema(entry), nil
		}
	}

	return domain.TaskRecord{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
}

// List returns records newest first.
func (r *TaskRepository) List(ctx context.Context) ([]domain.TaskRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	records := make([]domain.TaskRecord, 0, len(file.Tasks))
	for _, entry := range file.Tasks {
		records = append(records, fromTaskSchema(entry))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SubmittedAt.After(records[j].SubmittedAt)
	})

	return records, nil
}

func (r *TaskRepository) readSchema() (tasksFileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := tasksFileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return tasksFileSchema{}, fmt.Errorf("read tasks file: %w", err)
	}

	var file tasksFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return tasksFileSchema{}, fmt.Errorf("decode tasks file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return tasksFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (r *TaskRepository) writeSchema(file tasksFileSchema) error {
	file.applyDefaults()

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode tasks file: %w", err)
	}

	if err := writeFileAtomic(r.path, data, tasksTempPattern); err != nil {
		return fmt.Errorf("write tasks file: %w", err)
	}

	return nil
}

func toTaskSchema(record domain.TaskRecord) taskSchema {
	return taskSchema{
		TaskID:      record.TaskID,
		Profile:     record.Profile,
		Label:       record.Label,
		Status:      string(record.Status),
		SubmittedAt: formatTime(record.SubmittedAt),
		UpdatedAt:   formatTime(record.UpdatedAt),
	}
}

func fromTaskSchema(entry taskSchema) domain.TaskRecord {
	return domain.TaskRecord{
		TaskID:      entry.TaskID,
		Profile:     entry.Profile,
		Label:       entry.Label,
		Status:      domain.TaskStatus(entry.Status),
		SubmittedAt: parseTime(entry.SubmittedAt),
		UpdatedAt:   parseTime(entry.UpdatedAt),
	}
}
