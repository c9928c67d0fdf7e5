package domain

import (
	"fmt"
	"strings"
)

var DefaultAccountingFields = []string{
	"User", "Account", "JobID", "Jobname", "partition", "state", "time",
	"start", "end", "elapsed", "MaxRss", "MaxVMSize", "nnodes", "ncpus", "nodelist",
}

type AccountingQuery struct {
	Account string
	Window  DateWindow
	Fields  []string
}

func (q AccountingQuery) FieldList() string {
	fields := q.Fields
	if len(fields) == 0 {
		fields = DefaultAccountingFields
	}
	return strings.Join(fields, ",")
}

func AccountingFileName(account string, window DateWindow) string {
	return fmt.Sprintf("%s_usage_%s_%s.csv", account, window.StartString(), window.EndString())
}
