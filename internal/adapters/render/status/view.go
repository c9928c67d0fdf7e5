package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/psu-rc/rcops/internal/application"
	"github.com/psu-rc/rcops/internal/domain"
)

type RenderOptions struct {
	Now time.Time
}

func RenderTask(task domain.TransferTask, opts RenderOptions) (string, error) {
	return render(func(s styles) string { return taskView(task, opts, s) })
}

func RenderHistory(records []domain.TaskRecord, opts RenderOptions) (string, error) {
	return render(func(s styles) string { return historyView(records, opts, s) })
}

func RenderListing(endpointID string, path string, entries []domain.DirEntry, opts RenderOptions) (string, error) {
	return render(func(s styles) string { return listingView(endpointID, path, entries, opts, s) })
}

func RenderFilterPreview(decisions []application.FilterDecision) (string, error) {
	return render(func(s styles) string { return previewView(decisions, s) })
}

func taskView(task domain.TransferTask, opts RenderOptions, s styles) string {
	title := task.Label
	if title == "" {
		title = task.TaskID
	}

	lines := []string{
		s.label.Render(title),
		s.header.Render("task: " + task.TaskID),
		lipgloss.JoinHorizontal(lipgloss.Top, s.detail.Render("status: "), statusStyle(task.Status, s).Render(statusText(task))),
	}

	percent := 0.0
	if task.Files > 0 {
		percent = float64(task.FilesTransferred) / float64(task.Files) * 100
	} else if task.Status == domain.TaskSucceeded {
		percent = 100
	}
	lines = append(lines, lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.detail.Render("files:  "),
		renderProgressBar(percent, 24, s),
		" ",
		s.meta.Render(fmt.Sprintf("%d/%d, %s", task.FilesTransferred, task.Files, humanize.Bytes(uint64(max(task.BytesTransferred, 0))))),
	))

	if task.Faults > 0 {
		lines = append(lines, s.warning.Render(fmt.Sprintf("faults: %d", task.Faults)))
	}
	if !task.RequestTime.IsZero() {
		lines = append(lines, s.meta.Render("requested "+relativeTime(task.RequestTime, opts.Now)))
	}
	if !task.CompletionTime.IsZero() {
		lines = append(lines, s.meta.Render("completed "+relativeTime(task.CompletionTime, opts.Now)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func historyView(records []domain.TaskRecord, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Transfer Tasks"),
		s.header.Render(fmt.Sprintf("tasks: %d", len(records))),
	}

	if len(records) == 0 {
		lines = append(lines, s.empty.Render("No transfer tasks recorded."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, record := range records {
		title := record.Profile
		if record.Label != "" {
			title += " · " + record.Label
		}
		block := lipgloss.JoinVertical(
			lipgloss.Left,
			s.label.Render(title),
			lipgloss.JoinHorizontal(
				lipgloss.Top,
				s.detail.Render(record.TaskID+" "),
				statusStyle(record.Status, s).Render(string(record.Status)),
			),
			s.meta.Render("submitted "+relativeTime(record.SubmittedAt, opts.Now)),
		)
		lines = append(lines, s.section.Render(block))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func listingView(endpointID string, path string, entries []domain.DirEntry, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(path),
		s.header.Render(fmt.Sprintf("endpoint: %s  entries: %d", endpointID, len(entries))),
	}

	if len(entries) == 0 {
		lines = append(lines, s.empty.Render("Directory is empty."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	nameWidth := 0
	for _, entry := range entries {
		nameWidth = max(nameWidth, lipgloss.Width(entry.Name))
	}

	for _, entry := range entries {
		name := entry.Name
		nameStyle := s.detail
		if entry.IsDir() {
			name += "/"
			nameStyle = s.dir
		}
		lines = append(lines, lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.meta.Render(fmt.Sprintf("%-4s ", entry.Type)),
			nameStyle.Width(nameWidth+2).Render(name),
			s.meta.Render(fmt.Sprintf("%9s  %s  %s:%s  %s",
				humanize.Bytes(uint64(max(entry.Size, 0))),
				entry.Permissions,
				entry.User,
				entry.Group,
				relativeTime(entry.LastModified, opts.Now),
			)),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func previewView(decisions []application.FilterDecision, s styles) string {
	included := 0
	for _, d := range decisions {
		if d.Method == domain.FilterInclude {
			included++
		}
	}

	lines := []string{
		s.title.Render("Filter Preview"),
		s.header.Render(fmt.Sprintf("included: %d  excluded: %d", included, len(decisions)-included)),
	}

	for _, d := range decisions {
		path := d.Path
		if d.IsDir {
			path += "/"
		}
		if d.Method == domain.FilterExclude {
			lines = append(lines, s.excluded.Render("- "+path))
			continue
		}
		lines = append(lines, s.detail.Render("+ "+path))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statusText(task domain.TransferTask) string {
	if task.NiceStatus != "" && !strings.EqualFold(task.NiceStatus, string(task.Status)) {
		return fmt.Sprintf("%s (%s)", task.Status, task.NiceStatus)
	}
	return string(task.Status)
}

func statusStyle(status domain.TaskStatus, s styles) lipgloss.Style {
	switch status {
	case domain.TaskSucceeded:
		return s.succeeded
	case domain.TaskFailed:
		return s.failed
	default:
		return s.active
	}
}

func relativeTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	if now.IsZero() {
		return t.Format(time.RFC3339)
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func renderProgressBar(donePercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	done := clampPercent(donePercent)
	filled := int(math.Round(float64(width) * done / 100.0))
	filled = min(max(filled, 0), width)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
