package ports

import (
	"context"

	"github.com/psu-rc/rcops/internal/domain"
)

type TransferClient interface {
	GetEndpoint(ctx context.Context, endpointID string) (domain.Endpoint, error)
	Submit(ctx context.Context, req domain.TransferRequest) (string, error)
	GetTask(ctx context.Context, taskID string) (domain.TransferTask, error)
	List(ctx context.Context, endpointID string, path string) ([]domain.DirEntry, error)
}

type TaskRepository interface {
	GetByID(ctx context.Context, taskID string) (domain.TaskRecord, error)
	List(ctx context.Context) ([]domain.TaskRecord, error)
	Save(ctx context.Context, record domain.TaskRecord) error
}

type ProfileRepository interface {
	GetByName(ctx context.Context, name string) (domain.TransferProfile, error)
	List(ctx context.Context) ([]domain.TransferProfile, error)
	Save(ctx context.Context, profile domain.TransferProfile) error
}
