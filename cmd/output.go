package cmd

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/psu-rc/rcops/internal/domain"
)

type taskOutput struct {
	TaskID           string     `json:"task_id"`
	Status           string     `json:"status"`
	NiceStatus       string     `json:"nice_status,omitempty"`
	Label            string     `json:"label,omitempty"`
	SourceEndpointID string     `json:"source_endpoint_id,omitempty"`
	DestEndpointID   string     `json:"destination_endpoint_id,omitempty"`
	BytesTransferred int64      `json:"bytes_transferred"`
	Files            int        `json:"files"`
	FilesTransferred int        `json:"files_transferred"`
	Faults           int        `json:"faults"`
	RequestTime      *time.Time `json:"request_time,omitempty"`
	CompletionTime   *time.Time `json:"completion_time,omitempty"`
}

type recordOutput struct {
	TaskID      string     `json:"task_id"`
	Profile     string     `json:"profile"`
	Label       string     `json:"label,omitempty"`
	Status      string     `json:"status"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type entryOutput struct {
	Type         string     `json:"type"`
	Name         string     `json:"name"`
	Size         int64      `json:"size"`
	Permissions  string     `json:"permissions,omitempty"`
	User         string     `json:"user,omitempty"`
	Group        string     `json:"group,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toTaskOutput(task domain.TransferTask) taskOutput {
	return taskOutput{
		TaskID:           task.TaskID,
		Status:           string(task.Status),
		NiceStatus:       task.NiceStatus,
		Label:            task.Label,
		SourceEndpointID: task.SourceEndpointID,
		DestEndpointID:   task.DestEndpointID,
		BytesTransferred: task.BytesTransferred,
		Files:            task.Files,
		FilesTransferred: task.FilesTransferred,
		Faults:           task.Faults,
		RequestTime:      optionalTime(task.RequestTime),
		CompletionTime:   optionalTime(task.CompletionTime),
	}
}

func toRecordOutputs(records []domain.TaskRecord) []recordOutput {
	out := make([]recordOutput, 0, len(records))
	for _, record := range records {
		out = append(out, recordOutput{
			TaskID:      record.TaskID,
			Profile:     record.Profile,
			Label:       record.Label,
			Status:      string(record.Status),
			SubmittedAt: optionalTime(record.SubmittedAt),
			UpdatedAt:   optionalTime(record.UpdatedAt),
		})
	}
	return out
}

func toEntryOutputs(entries []domain.DirEntry) []entryOutput {
	out := make([]entryOutput, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entryOutput{
			Type:         entry.Type,
			Name:         entry.Name,
			Size:         entry.Size,
			Permissions:  entry.Permissions,
			User:         entry.User,
			Group:        entry.Group,
			LastModified: optionalTime(entry.LastModified),
		})
	}
	return out
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
