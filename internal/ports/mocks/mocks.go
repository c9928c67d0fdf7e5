// Package mocks holds testify mocks for the ports interfaces.
package mocks

import (
	"context"
	"io"
	"testing"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
	"github.com/stretchr/testify/mock"
)

type SecretStore struct {
	mock.Mock
}

var _ ports.SecretStore = (*SecretStore)(nil)

func NewSecretStore(t *testing.T) *SecretStore {
	m := &SecretStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *SecretStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *SecretStore) Put(ctx context.Context, key string, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *SecretStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type TransferClient struct {
	mock.Mock
}

var _ ports.TransferClient = (*TransferClient)(nil)

func NewTransferClient(t *testing.T) *TransferClient {
	m := &TransferClient{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *TransferClient) GetEndpoint(ctx context.Context, endpointID string) (domain.Endpoint, error) {
	args := m.Called(ctx, endpointID)
	return args.Get(0).(domain.Endpoint), args.Error(1)
}

func (m *TransferClient) Submit(ctx context.Context, req domain.TransferRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *TransferClient) GetTask(ctx context.Context, taskID string) (domain.TransferTask, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(domain.TransferTask), args.Error(1)
}

func (m *TransferClient) List(ctx context.Context, endpointID string, path string) ([]domain.DirEntry, error) {
	args := m.Called(ctx, endpointID, path)
	entries, _ := args.Get(0).([]domain.DirEntry)
	return entries, args.Error(1)
}

type Scheduler struct {
	mock.Mock
}

var _ ports.Scheduler = (*Scheduler)(nil)

func NewScheduler(t *testing.T) *Scheduler {
	m := &Scheduler{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Scheduler) AccountExists(ctx context.Context, account string) (bool, error) {
	args := m.Called(ctx, account)
	return args.Bool(0), args.Error(1)
}

func (m *Scheduler) ExportRecords(ctx context.Context, query domain.AccountingQuery, w io.Writer) (int, error) {
	args := m.Called(ctx, query, w)
	return args.Int(0), args.Error(1)
}
