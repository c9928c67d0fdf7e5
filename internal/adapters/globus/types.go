package globus

import (
	"strings"
	"time"

	"github.com/psu-rc/rcops/internal/domain"
)

type endpointDocument struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	OwnerString string `json:"owner_string"`
}

type submissionIDDocument struct {
	Value string `json:"value"`
}

type transferDocument struct {
	DataType            string               `json:"DATA_TYPE"`
	SubmissionID        string               `json:"submission_id"`
	SourceEndpoint      string               `json:"source_endpoint"`
	DestinationEndpoint string               `json:"destination_endpoint"`
	Label               string               `json:"label,omitempty"`
	SyncLevel           string               `json:"sync_level,omitempty"`
	Data                []transferItemDoc    `json:"DATA"`
	FilterRules         []filterRuleDocument `json:"filter_rules,omitempty"`
}

type transferItemDoc struct {
	DataType        string `json:"DATA_TYPE"`
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path"`
	Recursive       bool   `json:"recursive"`
}

type filterRuleDocument struct {
	DataType string `json:"DATA_TYPE"`
	Method   string `json:"method"`
	Type     string `json:"type"`
	Name     string `json:"name"`
}

type transferResultDocument struct {
	TaskID       string `json:"task_id"`
	SubmissionID string `json:"submission_id"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

type taskDocument struct {
	TaskID                string `json:"task_id"`
	Status                string `json:"status"`
	NiceStatus            string `json:"nice_status"`
	Label                 string `json:"label"`
	SourceEndpointID      string `json:"source_endpoint_id"`
	DestinationEndpointID string `json:"destination_endpoint_id"`
	BytesTransferred      int64  `json:"bytes_transferred"`
	Files                 int    `json:"files"`
	FilesTransferred      int    `json:"files_transferred"`
	Faults                int    `json:"faults"`
	RequestTime           string `json:"request_time"`
	CompletionTime        string `json:"completion_time"`
}

type fileListDocument struct {
	Path string              `json:"path"`
	Data []fileEntryDocument `json:"DATA"`
}

type fileEntryDocument struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Permissions  string `json:"permissions"`
	User         string `json:"user"`
	Group        string `json:"group"`
	LastModified string `json:"last_modified"`
}

func toTransferDocument(submissionID string, r domain.TransferRequest) transferDocument {
	doc := transferDocument{
		DataType:            "transfer",
		SubmissionID:        submissionID,
		SourceEndpoint:      r.SourceEndpointID,
		DestinationEndpoint: r.DestEndpointID,
		Label:               r.Label,
		SyncLevel:           r.SyncLevel,
		Data:                make([]transferItemDoc, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		doc.Data = append(doc.Data, transferItemDoc{
			DataType:        "transfer_item",
			SourcePath:      item.SourcePath,
			DestinationPath: item.DestPath,
			Recursive:       item.Recursive,
		})
	}
	for _, rule := range r.FilterRules {
		doc.FilterRules = append(doc.FilterRules, filterRuleDocument{
			DataType: "filter_rule",
			Method:   string(rule.Method),
			Type:     string(rule.Type),
			Name:     rule.Name,
		})
	}
	return doc
}

func (d taskDocument) toDomain() domain.TransferTask {
	return domain.TransferTask{
		TaskID:           d.TaskID,
		Status:           domain.TaskStatus(d.Status),
		NiceStatus:       d.NiceStatus,
		Label:            d.Label,
		SourceEndpointID: d.SourceEndpointID,
		DestEndpointID:   d.DestinationEndpointID,
		BytesTransferred: d.BytesTransferred,
		Files:            d.Files,
		FilesTransferred: d.FilesTransferred,
		Faults:           d.Faults,
		RequestTime:      parseTimestamp(d.RequestTime),
		CompletionTime:   parseTimestamp(d.CompletionTime),
	}
}

func (d fileEntryDocument) toDomain() domain.DirEntry {
	return domain.DirEntry{
		Type:         d.Type,
		Name:         d.Name,
		Size:         d.Size,
		Permissions:  d.Permissions,
		User:         d.User,
		Group:        d.Group,
		LastModified: parseTimestamp(d.LastModified),
	}
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
