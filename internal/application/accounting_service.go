package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

const (
	reportFileMode    = 0o644
	reportTempPattern = ".usage-*.csv.tmp"
)

type AccountingRequest struct {
	Account string
	// Reference defaults to the service clock when zero.
	Reference time.Time
	OutputDir string
	Fields    []string
}

type AccountingReport struct {
	Account    string
	Window     domain.DateWindow
	OutputPath string
	Records    int
}

type AccountingService struct {
	scheduler ports.Scheduler
	clock     ports.Clock
	logger    *slog.Logger
}

func NewAccountingService(scheduler ports.Scheduler, clock ports.Clock, logger *slog.Logger) *AccountingService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &AccountingService{
		scheduler: scheduler,
		clock:     clock,
		logger:    loggerOrDiscard(logger),
	}
}

// PullPriorMonth exports last month's accounting records for one account.
func (s *AccountingService) PullPriorMonth(ctx context.Context, req AccountingRequest) (AccountingReport, error) {
	account := strings.TrimSpace(req.Account)
	if account == "" {
		return AccountingReport{}, errors.New("account is required")
	}

	reference := req.Reference
	if reference.IsZero() {
		reference = s.clock.Now()
	}
	window := domain.ResolvePriorMonth(reference)

	exists, err := s.scheduler.AccountExists(ctx, account)
	if err != nil {
		return AccountingReport{}, fmt.Errorf("verify account %s: %w", account, err)
	}
	if !exists {
		return AccountingReport{}, fmt.Errorf("account %s: %w", account, domain.ErrAccountNotFound)
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return AccountingReport{}, fmt.Errorf("resolve output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, domain.AccountingFileName(account, window))

	s.logger.Info("pulling accounting records",
		"account", account,
		"period", window.Label(),
		"start", window.StartString(),
		"end", window.EndString(),
		"output", outputPath,
	)

	query := domain.AccountingQuery{Account: account, Window: window, Fields: req.Fields}
	records, err := s.writeReport(ctx, outputPath, query)
	if err != nil {
		return AccountingReport{}, err
	}

	s.logger.Info("accounting records written", "records", records, "output", outputPath)

	return AccountingReport{
		Account:    account,
		Window:     window,
		OutputPath: outputPath,
		Records:    records,
	}, nil
}

func (s *AccountingService) writeReport(ctx context.Context, outputPath string, query domain.AccountingQuery) (int, error) {
	tempFile, err := os.CreateTemp(filepath.Dir(outputPath), reportTempPattern)
	if err != nil {
		return 0, fmt.Errorf("create temp report file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	records, err := s.scheduler.ExportRecords(ctx, query, tempFile)
	if err != nil {
		_ = tempFile.Close()
		return 0, fmt.Errorf("export accounting records: %w", err)
	}

	if err := tempFile.Chmod(reportFileMode); err != nil {
		_ = tempFile.Close()
		return 0, fmt.Errorf("chmod temp report file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return 0, fmt.Errorf("close temp report file: %w", err)
	}

	if err := os.Rename(tempName, outputPath); err != nil {
		return 0, fmt.Errorf("replace report file: %w", err)
	}
	cleanup = false

	return records, nil
}
