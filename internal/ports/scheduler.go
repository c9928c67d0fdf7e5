package ports

import (
	"context"
	"io"

	"github.com/psu-rc/rcops/internal/domain"
)

type Scheduler interface {
	AccountExists(ctx context.Context, account string) (bool, error)
	// ExportRecords writes the query result as CSV and returns the number
	// of job records written, header excluded.
	ExportRecords(ctx context.Context, query domain.AccountingQuery, w io.Writer) (int, error)
}
