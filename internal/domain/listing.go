package domain

import (
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

type DirEntry struct {
	Type         string
	Name         string
	Size         int64
	Permissions  string
	User         string
	Group        string
	LastModified time.Time
}

func (e DirEntry) IsDir() bool {
	return e.Type == "dir"
}

// EvaluateFilters mirrors how the transfer service applies filter rules:
// the first rule whose type and pattern match decides, and entries no rule
// matches are included.
func EvaluateFilters(rules []FilterRule, name string, isDir bool) FilterMethod {
	for _, rule := range rules {
		if rule.Type == FilterTypeDir && !isDir {
			continue
		}
		if rule.Type == FilterTypeFile && isDir {
			continue
		}
		ok, err := doublestar.Match(rule.Name, name)
		if err != nil || !ok {
			continue
		}
		return rule.Method
	}
	return FilterInclude
}

type Endpoint struct {
	ID          string
	DisplayName string
	Owner       string
}
