// Package tui renders a live pipeline run in the terminal. It follows The
// Elm Architecture: the model polls the run logbook and the checkpoint gate
// on a tick, and pending checkpoints are resolved with a single keypress.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rowanhale/conveyor/internal/checkpoint"
	"github.com/rowanhale/conveyor/internal/logbook"
	"github.com/rowanhale/conveyor/internal/pipeline/executor"
)

const (
	refreshInterval = 500 * time.Millisecond
	logWindow       = 12
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	logStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	artifactStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	doneStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

type refreshMsg struct {
	lines   []string
	pending []checkpoint.Request
}

// RunFinishedMsg is sent by the driver once the executor returns.
type RunFinishedMsg struct {
	Outcome executor.Outcome
	Err     error
}

// RunView is the bubbletea model for one pipeline run.
type RunView struct {
	pipelineName string
	gate         *checkpoint.Gate
	log          *logbook.Logbook

	spinner  spinner.Model
	lines    []string
	pending  []checkpoint.Request
	finished bool
	outcome  executor.Outcome
	runErr   error
}

// NewRunView builds the model. The gate must be the same instance the
// executor's decider blocks on.
func NewRunView(pipelineName string, gate *checkpoint.Gate, log *logbook.Logbook) *RunView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &RunView{
		pipelineName: pipelineName,
		gate:         gate,
		log:          log,
		spinner:      sp,
	}
}

// Init implements tea.Model.
func (v *RunView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, v.refresh())
}

func (v *RunView) refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{
			lines:   v.log.Tail(logWindow),
			pending: v.gate.Pending(),
		}
	})
}

// Update implements tea.Model.
func (v *RunView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)
	case refreshMsg:
		v.lines = msg.lines
		v.pending = msg.pending
		if v.finished {
			return v, nil
		}
		return v, v.refresh()
	case RunFinishedMsg:
		v.finished = true
		v.outcome = msg.Outcome
		v.runErr = msg.Err
		v.pending = nil
		return v, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *RunView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if v.finished {
		if key == "q" || key == "enter" || key == "ctrl+c" {
			return v, tea.Quit
		}
		return v, nil
	}
	if key == "ctrl+c" {
		return v, tea.Quit
	}
	if len(v.pending) == 0 {
		return v, nil
	}
	current := v.pending[0]
	switch key {
	case "y", "a":
		_ = v.gate.Approve(current.CheckpointID, "approved in terminal")
	case "n", "r":
		_ = v.gate.Reject(current.CheckpointID, "rejected in terminal")
	}
	return v, nil
}

// View implements tea.Model.
func (v *RunView) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("conveyor · "+v.pipelineName) + "\n\n")

	if v.finished {
		b.WriteString(v.renderOutcome())
	} else if len(v.pending) > 0 {
		b.WriteString(v.renderCheckpoint(v.pending[0]))
	} else {
		b.WriteString(v.spinner.View() + " running\n")
	}

	if len(v.lines) > 0 {
		b.WriteString("\n")
		for _, line := range v.lines {
			b.WriteString(logStyle.Render(line) + "\n")
		}
	}

	if v.finished {
		b.WriteString("\n" + helpStyle.Render("q quit"))
	} else if len(v.pending) > 0 {
		b.WriteString("\n" + helpStyle.Render("y approve · n reject"))
	}
	return b.String()
}

func (v *RunView) renderCheckpoint(req checkpoint.Request) string {
	var b strings.Builder
	title := req.Title
	if title == "" {
		title = req.CheckpointID
	}
	b.WriteString(questionStyle.Render(fmt.Sprintf("checkpoint: %s", title)) + "\n")
	b.WriteString(req.Question + "\n")
	if len(req.Context.Artifacts) > 0 {
		b.WriteString("\nartifacts so far:\n")
		for _, a := range req.Context.Artifacts {
			b.WriteString(artifactStyle.Render(fmt.Sprintf("  %-10s %s (%s)", a.Format, a.Path, a.Label)) + "\n")
		}
	}
	return b.String()
}

func (v *RunView) renderOutcome() string {
	if v.runErr != nil {
		return failStyle.Render(fmt.Sprintf("run failed: %v", v.runErr)) + "\n"
	}
	switch v.outcome.Status {
	case executor.StatusRejected:
		note := ""
		if v.outcome.Rejection != nil {
			note = fmt.Sprintf(" at %s", v.outcome.Rejection.CheckpointID)
		}
		return failStyle.Render("run rejected"+note) + "\n"
	default:
		return doneStyle.Render(fmt.Sprintf("run %s completed · %d artifacts in %s",
			v.outcome.RunID, len(v.outcome.Artifacts), v.outcome.Duration().Round(time.Millisecond))) + "\n"
	}
}

// Finished reports whether the run has terminated.
func (v *RunView) Finished() bool {
	return v.finished
}
