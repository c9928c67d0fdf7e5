package application

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

func mockAnyContext() any {
	return mock.Anything
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type countingSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (s *countingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return s.err
}

type memoryTaskRepository struct {
	records map[string]domain.TaskRecord
	saves   int
}

func newMemoryTaskRepository() *memoryTaskRepository {
	return &memoryTaskRepository{records: map[string]domain.TaskRecord{}}
}

func (r *memoryTaskRepository) GetByID(_ context.Context, taskID string) (domain.TaskRecord, error) {
	record, ok := r.records[taskID]
	if !ok {
		return domain.TaskRecord{}, domain.ErrTaskNotFound
	}
	return record, nil
}

func (r *memoryTaskRepository) List(_ context.Context) ([]domain.TaskRecord, error) {
	out := make([]domain.TaskRecord, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, record)
	}
	return out, nil
}

func (r *memoryTaskRepository) Save(_ context.Context, record domain.TaskRecord) error {
	r.saves++
	r.records[record.TaskID] = record
	return nil
}

type memoryCredentialStore struct {
	cred    *domain.StoredCredential
	saves   int
	deletes int
}

func (s *memoryCredentialStore) Load(context.Context) (domain.StoredCredential, error) {
	if s.cred == nil {
		return domain.StoredCredential{}, domain.ErrCredentialNotFound
	}
	return *s.cred, nil
}

func (s *memoryCredentialStore) Save(_ context.Context, cred domain.StoredCredential) error {
	s.saves++
	s.cred = &cred
	return nil
}

func (s *memoryCredentialStore) Delete(context.Context) error {
	s.deletes++
	s.cred = nil
	return nil
}

type stubCodeSource struct {
	code  string
	calls int
}

func (s *stubCodeSource) RedirectURL() string {
	return "https://auth.example.test/code"
}

func (s *stubCodeSource) AwaitCode(context.Context, domain.AuthorizationRequest) (string, error) {
	s.calls++
	return s.code, nil
}

// stubFlow exchanges any code for a fixed credential and returns token
// sources that refresh once on first use.
type stubFlow struct {
	issued    domain.StoredCredential
	refreshed domain.StoredCredential
	starts    int
	exchanged []string
}

func (f *stubFlow) Start(redirectURL string, scopes []string) (domain.AuthorizationRequest, error) {
	f.starts++
	return domain.AuthorizationRequest{
		URL:         "https://auth.example.test/authorize?state=s",
		State:       "s",
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}, nil
}

func (f *stubFlow) Exchange(_ context.Context, _ domain.AuthorizationRequest, code string) (domain.StoredCredential, error) {
	f.exchanged = append(f.exchanged, code)
	return f.issued, nil
}

func (f *stubFlow) TokenSource(_ context.Context, cred domain.StoredCredential, onRefresh ports.RefreshFunc) ports.TokenSource {
	return &stubTokenSource{cred: cred, refreshed: f.refreshed, onRefresh: onRefresh}
}

type stubTokenSource struct {
	cred      domain.StoredCredential
	refreshed domain.StoredCredential
	onRefresh ports.RefreshFunc
}

func (s *stubTokenSource) AccessToken(ctx context.Context) (string, error) {
	if s.refreshed.AccessToken != "" && s.cred.AccessToken != s.refreshed.AccessToken {
		s.cred = s.refreshed
		if err := s.onRefresh(ctx, s.cred); err != nil {
			return "", err
		}
	}
	return s.cred.AccessToken, nil
}
