package slurm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

const (
	sacctBinary    = "sacct"
	sacctmgrBinary = "sacctmgr"
	fieldSeparator = "|"
	userField      = "user"
)

var (
	ErrUnavailable = errors.New("slurm accounting command unavailable")
	wordCharacter  = regexp.MustCompile(`\w`)
)

type runFunc func(ctx context.Context, name string, args ...string) (stdout []byte, stderr string, err error)

// Scheduler reads job accounting from the Slurm database through sacct and
// sacctmgr.
type Scheduler struct {
	run runFunc
}

var _ ports.Scheduler = (*Scheduler)(nil)

func NewScheduler() *Scheduler {
	return &Scheduler{run: runCommand}
}

func (s *Scheduler) AccountExists(ctx context.Context, account string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	stdout, stderr, err := s.run(ctx, sacctmgrBinary, "-n", "-P", "show", "account", account, "format=account%30")
	if err != nil {
		return false, formatError(sacctmgrBinary, err, stderr)
	}

	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == account {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read sacctmgr output: %w", err)
	}

	return false, nil
}

// ExportRecords writes the header and every row with a non-blank user. The
// parsable pipe output is re-encoded as CSV so commas in node lists stay
// inside one field.
func (s *Scheduler) ExportRecords(ctx context.Context, query domain.AccountingQuery, w io.Writer) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	args := []string{
		"--allusers",
		"--starttime", query.Window.StartString(),
		"--endtime", query.Window.EndString() + "T23:59:59",
		"--account", query.Account,
		"--format=" + query.FieldList(),
		"-P",
	}
	stdout, stderr, err := s.run(ctx, sacctBinary, args...)
	if err != nil {
		return 0, formatError(sacctBinary, err, stderr)
	}

	return writeCSV(stdout, w)
}

func writeCSV(raw []byte, w io.Writer) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	out := csv.NewWriter(w)
	userIndex := -1
	records := 0
	for lineNo := 0; scanner.Scan(); lineNo++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, fieldSeparator)

		if userIndex < 0 {
			userIndex = 0
			for i, name := range fields {
				if strings.EqualFold(name, userField) {
					userIndex = i
					break
				}
			}
			if err := out.Write(fields); err != nil {
				return 0, fmt.Errorf("write csv header: %w", err)
			}
			continue
		}

		if userIndex >= len(fields) || !wordCharacter.MatchString(fields[userIndex]) {
			continue
		}
		if err := out.Write(fields); err != nil {
			return 0, fmt.Errorf("write csv row %d: %w", lineNo, err)
		}
		records++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read sacct output: %w", err)
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}

	return records, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: %s", ErrUnavailable, name)
		}
		return nil, "", fmt.Errorf("locate %s: %w", name, err)
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.Bytes(), strings.TrimSpace(stderr.String()), err
}

func formatError(name string, err error, stderr string) error {
	if stderr == "" {
		return fmt.Errorf("%s: %w", name, err)
	}

	return fmt.Errorf("%s: %w: %s", name, err, stderr)
}
