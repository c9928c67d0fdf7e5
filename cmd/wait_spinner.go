package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/psu-rc/rcops/internal/domain"
)

type waitDoneMsg struct {
	task domain.TransferTask
	err  error
}

type waitPollMsg struct {
	task domain.TransferTask
}

type waitSpinnerModel struct {
	spinner spinner.Model
	taskID  string
	status  string
	wait    tea.Cmd
	task    domain.TransferTask
	err     error
	done    bool
}

func newWaitSpinnerModel(taskID string, wait tea.Cmd) waitSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return waitSpinnerModel{
		spinner: s,
		taskID:  taskID,
		wait:    wait,
	}
}

func (m waitSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wait)
}

func (m waitSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case waitPollMsg:
		m.status = string(msg.task.Status)
		if msg.task.NiceStatus != "" {
			m.status += " (" + msg.task.NiceStatus + ")"
		}
		return m, nil
	case waitDoneMsg:
		m.done = true
		m.task = msg.task
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m waitSpinnerModel) View() string {
	if m.done {
		return ""
	}

	label := fmt.Sprintf("Waiting for transfer to complete with task_id: %s", m.taskID)
	if m.status != "" {
		label += " [" + m.status + "]"
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), label)
}

// runWaitSpinner shows a spinner while wait polls the task. Poll updates
// reach the model through the program so the label tracks the live status.
func runWaitSpinner(
	ctx context.Context,
	output io.Writer,
	taskID string,
	wait func(ctx context.Context, onPoll func(domain.TransferTask)) (domain.TransferTask, error),
) (domain.TransferTask, error) {
	var p *tea.Program
	waitCmd := func() tea.Msg {
		task, err := wait(ctx, func(task domain.TransferTask) {
			p.Send(waitPollMsg{task: task})
		})
		return waitDoneMsg{task: task, err: err}
	}

	p = tea.NewProgram(
		newWaitSpinnerModel(taskID, waitCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return domain.TransferTask{}, err
	}

	result, ok := finalModel.(waitSpinnerModel)
	if !ok {
		return domain.TransferTask{}, fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.task, result.err
}
