package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

const DefaultPollInterval = 5 * time.Second

// ConsentHandler receives a consent-required outcome. It is called at most
// once per submission.
type ConsentHandler func(ctx context.Context, consent *domain.ConsentRequiredError)

type TransferService struct {
	client    ports.TransferClient
	tasks     ports.TaskRepository
	clock     ports.Clock
	sleeper   ports.Sleeper
	onConsent ConsentHandler
	logger    *slog.Logger
}

type TransferOption func(*TransferService)

func WithConsentHandler(handler ConsentHandler) TransferOption {
	return func(s *TransferService) {
		s.onConsent = handler
	}
}

func WithSleeper(sleeper ports.Sleeper) TransferOption {
	return func(s *TransferService) {
		s.sleeper = sleeper
	}
}

func WithClock(clock ports.Clock) TransferOption {
	return func(s *TransferService) {
		s.clock = clock
	}
}

func WithLogger(logger *slog.Logger) TransferOption {
	return func(s *TransferService) {
		s.logger = logger
	}
}

func NewTransferService(client ports.TransferClient, tasks ports.TaskRepository, opts ...TransferOption) *TransferService {
	s := &TransferService{
		client:  client,
		tasks:   tasks,
		clock:   ports.SystemClock{},
		sleeper: ports.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = loggerOrDiscard(s.logger)
	return s
}

// SubmitResult holds exactly one of TaskID or Consent.
type SubmitResult struct {
	TaskID  string
	Consent *domain.ConsentRequiredError
}

func (r SubmitResult) Submitted() bool {
	return r.TaskID != ""
}

func (s *TransferService) VerifyEndpoints(ctx context.Context, req domain.TransferRequest) error {
	for _, id := range []string{req.SourceEndpointID, req.DestEndpointID} {
		endpoint, err := s.client.GetEndpoint(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrEndpointNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrEndpointNotFound, id)
			}
			return fmt.Errorf("lookup endpoint %s: %w", id, err)
		}
		s.logger.Debug("endpoint found", "id", endpoint.ID, "name", endpoint.DisplayName)
	}
	return nil
}

// Submit sends the transfer request. A consent-required refusal is reported
// through the consent handler and carried in the result; every other
// failure is returned as is.
func (s *TransferService) Submit(ctx context.Context, profile string, req domain.TransferRequest) (SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return SubmitResult{}, err
	}

	taskID, err := s.client.Submit(ctx, req)
	if err != nil {
		var consent *domain.ConsentRequiredError
		if errors.As(err, &consent) {
			s.logger.Warn("transfer requires additional consent", "scopes", strings.Join(consent.RequiredScopes, " "))
			if s.onConsent != nil {
				s.onConsent(ctx, consent)
			}
			return SubmitResult{Consent: consent}, nil
		}
		return SubmitResult{}, err
	}

	now := s.clock.Now().UTC()
	record := domain.TaskRecord{
		TaskID:      taskID,
		Profile:     profile,
		Label:       req.Label,
		Status:      domain.TaskActive,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if s.tasks != nil {
		if err := s.tasks.Save(ctx, record); err != nil {
			s.logger.Warn("record task history", "task_id", taskID, "error", err)
		}
	}

	s.logger.Info("transfer submitted", "task_id", taskID, "label", req.Label)
	return SubmitResult{TaskID: taskID}, nil
}

type PollOptions struct {
	Interval time.Duration
	// Timeout bounds the whole wait. Zero means no deadline beyond ctx.
	Timeout  time.Duration
	MaxPolls int
	OnPoll   func(task domain.TransferTask)
}

// AwaitCompletion polls the task until it reaches a terminal status. It
// sleeps only between non-terminal polls.
func (s *TransferService) AwaitCompletion(ctx context.Context, taskID string, opts PollOptions) (domain.TransferTask, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	for polls := 1; ; polls++ {
		task, err := s.client.GetTask(ctx, taskID)
		if err != nil {
			return domain.TransferTask{}, fmt.Errorf("poll task %s: %w", taskID, err)
		}
		if opts.OnPoll != nil {
			opts.OnPoll(task)
		}
		s.logger.Debug("task polled", "task_id", taskID, "status", task.Status, "poll", polls)

		if task.Status.Terminal() {
			s.recordStatus(ctx, taskID, task.Status)
			return task, nil
		}
		if opts.MaxPolls > 0 && polls >= opts.MaxPolls {
			return task, fmt.Errorf("%w: %s after %d polls", domain.ErrPollLimitReached, taskID, polls)
		}
		if err := s.sleeper.Sleep(ctx, interval); err != nil {
			return task, fmt.Errorf("wait for task %s: %w", taskID, err)
		}
	}
}

func (s *TransferService) Status(ctx context.Context, taskID string) (domain.TransferTask, error) {
	task, err := s.client.GetTask(ctx, taskID)
	if err != nil {
		return domain.TransferTask{}, err
	}
	if task.Status.Terminal() {
		s.recordStatus(ctx, taskID, task.Status)
	}
	return task, nil
}

func (s *TransferService) List(ctx context.Context, endpointID string, dir string) ([]domain.DirEntry, error) {
	return s.client.List(ctx, endpointID, dir)
}

func (s *TransferService) History(ctx context.Context) ([]domain.TaskRecord, error) {
	if s.tasks == nil {
		return nil, nil
	}
	return s.tasks.List(ctx)
}

type FilterDecision struct {
	Item   domain.TransferItem
	Path   string
	IsDir  bool
	Method domain.FilterMethod
}

// PreviewFilters lists the top level of each recursive item's source and
// reports which entries the filter rules would keep.
func (s *TransferService) PreviewFilters(ctx context.Context, req domain.TransferRequest) ([]FilterDecision, error) {
	var decisions []FilterDecision
	for _, item := range req.Items {
		if !item.Recursive {
			decisions = append(decisions, FilterDecision{
				Item:   item,
				Path:   item.SourcePath,
				Method: domain.FilterInclude,
			})
			continue
		}

		entries, err := s.client.List(ctx, req.SourceEndpointID, item.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", item.SourcePath, err)
		}
		for _, entry := range entries {
			decisions = append(decisions, FilterDecision{
				Item:   item,
				Path:   path.Join(item.SourcePath, entry.Name),
				IsDir:  entry.IsDir(),
				Method: domain.EvaluateFilters(req.FilterRules, entry.Name, entry.IsDir()),
			})
		}
	}
	return decisions, nil
}

func (s *TransferService) recordStatus(ctx context.Context, taskID string, status domain.TaskStatus) {
	if s.tasks == nil {
		return
	}
	record, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if !errors.Is(err, domain.ErrTaskNotFound) {
			s.logger.Warn("load task history", "task_id", taskID, "error", err)
		}
		return
	}
	if record.Status == status {
		return
	}
	record.Status = status
	record.UpdatedAt = s.clock.Now().UTC()
	if err := s.tasks.Save(ctx, record); err != nil {
		s.logger.Warn("update task history", "task_id", taskID, "error", err)
	}
}
