package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// callProgressMsg reports that command index (1-based) of total has been
// answered. code is set when the answer was an error response.
type callProgressMsg struct {
	index int
	total int
	name  string
	code  domain.ErrorCode
}

func (m callProgressMsg) String() string {
	return fmt.Sprintf("%d/%d %s", m.index, m.total, m.name)
}

type callDoneMsg struct {
	err error
}

// reportFunc is handed to the session runner so each answered command can
// move the spinner label along.
type reportFunc func(callProgressMsg)

type callSpinnerModel struct {
	spinner  spinner.Model
	label    string
	last     callProgressMsg
	failures []callProgressMsg
	run      tea.Cmd
	err      error
	done     bool
}

func newCallSpinnerModel(total int, run tea.Cmd) callSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return callSpinnerModel{
		spinner: s,
		label:   fmt.Sprintf("0/%d starting", total),
		last:    callProgressMsg{total: total},
		run:     run,
	}
}

func (m callSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m callSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case callProgressMsg:
		m.last = msg
		m.label = msg.String()
		if msg.code != "" {
			m.failures = append(m.failures, msg)
			m.label += " " + failureStyle.Render(string(msg.code))
		}
		return m, nil
	case callDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m callSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// summary lists failed commands, and the point where the session stopped
// when the run itself returned an error.
func (m callSpinnerModel) summary() []string {
	lines := make([]string, 0, len(m.failures)+1)
	for _, failure := range m.failures {
		lines = append(lines, fmt.Sprintf("%s %s: %s", failureStyle.Render("failed"), failure, failure.code))
	}
	if m.err != nil {
		lines = append(lines, fmt.Sprintf("%s after %d/%d: %s", failureStyle.Render("stopped"), m.last.index, m.last.total, domain.CodeOf(m.err)))
	}
	return lines
}

var failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))

func runCallSpinner(ctx context.Context, output io.Writer, total int, run func(context.Context, reportFunc) error) error {
	var p *tea.Program
	report := func(msg callProgressMsg) {
		p.Send(msg)
	}
	runCmd := func() tea.Msg {
		return callDoneMsg{err: run(ctx, report)}
	}

	p = tea.NewProgram(
		newCallSpinnerModel(total, runCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(callSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	for _, line := range result.summary() {
		if _, err := fmt.Fprintln(output, line); err != nil {
			return err
		}
	}

	return result.err
}
