package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type FilterMethod string

const (
	FilterInclude FilterMethod = "include"
	FilterExclude FilterMethod = "exclude"
)

type FilterType string

const (
	FilterTypeFile FilterType = "file"
	FilterTypeDir  FilterType = "dir"
)

type TransferItem struct {
	SourcePath string
	DestPath   string
	Recursive  bool
}

// FilterRule is applied by the transfer service, in order, to every
// recursive item of the task.
type FilterRule struct {
	Name   string
	Method FilterMethod
	Type   FilterType
}

type TransferRequest struct {
	SourceEndpointID string
	DestEndpointID   string
	Label            string
	SyncLevel        string
	Items            []TransferItem
	FilterRules      []FilterRule
}

func (r TransferRequest) Validate() error {
	if _, err := uuid.Parse(r.SourceEndpointID); err != nil {
		return fmt.Errorf("source endpoint id %q is not a uuid", r.SourceEndpointID)
	}
	if _, err := uuid.Parse(r.DestEndpointID); err != nil {
		return fmt.Errorf("destination endpoint id %q is not a uuid", r.DestEndpointID)
	}
	if len(r.Items) == 0 {
		return errors.New("transfer request has no items")
	}
	for _, rule := range r.FilterRules {
		if rule.Method != FilterInclude && rule.Method != FilterExclude {
			return fmt.Errorf("filter rule %q: unsupported method %q", rule.Name, rule.Method)
		}
		if rule.Type != FilterTypeFile && rule.Type != FilterTypeDir {
			return fmt.Errorf("filter rule %q: unsupported type %q", rule.Name, rule.Type)
		}
	}
	return nil
}

type TaskStatus string

const (
	TaskActive    TaskStatus = "ACTIVE"
	TaskInactive  TaskStatus = "INACTIVE"
	TaskSucceeded TaskStatus = "SUCCEEDED"
	TaskFailed    TaskStatus = "FAILED"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

type TransferTask struct {
	TaskID           string
	Status           TaskStatus
	NiceStatus       string
	Label            string
	SourceEndpointID string
	DestEndpointID   string
	BytesTransferred int64
	Files            int
	FilesTransferred int
	Faults           int
	RequestTime      time.Time
	CompletionTime   time.Time
}

// TaskRecord is the local history entry for a submitted task.
type TaskRecord struct {
	TaskID      string
	Profile     string
	Label       string
	Status      TaskStatus
	SubmittedAt time.Time
	UpdatedAt   time.Time
}
