// Package watch renders a live view of one optimization job for
// plannerctl watch.
package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/forgo/planner/api/internal/model"
)

const maxEvents = 8

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(12)
	valueStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F44336")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
)

// Frame is one server frame as read off the wire
type Frame struct {
	Type    model.ServerMessageType `json:"type"`
	Data    json.RawMessage         `json:"data,omitempty"`
	Message string                  `json:"message,omitempty"`
}

// Terminal reports whether the frame announces that the job reached a final
// state
func (f Frame) Terminal() bool {
	switch f.Type {
	case model.ServerMessageJobCompleted, model.ServerMessageJobError:
		return true
	case model.ServerMessageCurrentStatus, model.ServerMessageStatusChange:
		var s struct {
			Status model.JobStatus `json:"status"`
		}
		return json.Unmarshal(f.Data, &s) == nil && s.Status.IsTerminal()
	}
	return false
}

// FrameMsg delivers a frame to the model
type FrameMsg Frame

// ClosedMsg reports that the connection ended
type ClosedMsg struct {
	Err error
}

// Sender writes a client request to the server
type Sender func(kind model.ClientMessageType) error

// Model is the bubbletea model for a watched job
type Model struct {
	jobID   string
	send    Sender
	spinner spinner.Model

	status    model.JobStatus
	iteration int
	updatedAt time.Time
	notice    string
	failure   string
	events    []string

	closed   bool
	closeErr error
}

// New creates a model for jobID. send may be nil, which disables the
// refresh and cancel keys.
func New(jobID string, send Sender) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	return Model{jobID: jobID, send: send, spinner: s}
}

// Status returns the last known job status
func (m Model) Status() model.JobStatus { return m.status }

// Iteration returns the last known iteration
func (m Model) Iteration() int { return m.iteration }

// Err returns the error that ended the connection, if any
func (m Model) Err() error { return m.closeErr }

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.request(model.ClientMessageGetStatus)
		case "c":
			return m, m.request(model.ClientMessageCancelJob)
		}
		return m, nil

	case FrameMsg:
		m.apply(Frame(msg))
		return m, nil

	case ClosedMsg:
		m.closed = true
		m.closeErr = msg.Err
		return m, tea.Quit

	case requestFailedMsg:
		m.failure = msg.err.Error()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

type requestFailedMsg struct{ err error }

func (m Model) request(kind model.ClientMessageType) tea.Cmd {
	if m.send == nil {
		return nil
	}
	send := m.send
	return func() tea.Msg {
		if err := send(kind); err != nil {
			return requestFailedMsg{err: fmt.Errorf("send %s: %w", kind, err)}
		}
		return nil
	}
}

func (m *Model) apply(f Frame) {
	switch f.Type {
	case model.ServerMessageCurrentStatus:
		var snap model.JobSnapshot
		if json.Unmarshal(f.Data, &snap) == nil {
			m.status = snap.Status
			m.iteration = snap.CurrentIteration
			if snap.LatestProgress != nil && snap.LatestProgress.Iteration > m.iteration {
				m.iteration = snap.LatestProgress.Iteration
			}
			m.updatedAt = snap.UpdatedAt
			if snap.ErrorMessage != nil {
				m.failure = *snap.ErrorMessage
			}
		}
		m.record("snapshot: " + string(m.status))

	case model.ServerMessageProgressUpdate:
		var p model.ProgressUpdate
		if json.Unmarshal(f.Data, &p) == nil {
			if p.Iteration > m.iteration {
				m.iteration = p.Iteration
			}
			m.updatedAt = p.Timestamp
			m.record(fmt.Sprintf("iteration %d", p.Iteration))
		}

	case model.ServerMessageStatusChange:
		var s model.StatusChange
		if json.Unmarshal(f.Data, &s) == nil {
			m.status = s.Status
			m.updatedAt = s.Timestamp
			m.record("status: " + string(s.Status))
		}

	case model.ServerMessageJobCompleted:
		var c model.JobCompleted
		if json.Unmarshal(f.Data, &c) == nil {
			m.status = model.JobStatusCompleted
			if c.CurrentIteration > m.iteration {
				m.iteration = c.CurrentIteration
			}
			m.updatedAt = c.Timestamp
		}
		m.record("completed")

	case model.ServerMessageJobError:
		var e model.JobError
		if json.Unmarshal(f.Data, &e) == nil {
			m.status = model.JobStatusFailed
			m.failure = e.ErrorMessage
			m.updatedAt = e.Timestamp
		}
		m.record("failed")

	case model.ServerMessageCancellationRequested:
		m.notice = f.Message
		m.record("cancellation requested")

	case model.ServerMessageError:
		m.notice = f.Message
		m.record("error: " + f.Message)
	}
}

func (m *Model) record(event string) {
	m.events = append(m.events, event)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render("job " + m.jobID)
	if !m.status.IsTerminal() && !m.closed {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(header + "\n\n")

	b.WriteString(row("status", m.renderStatus()))
	b.WriteString(row("iteration", valueStyle.Render(fmt.Sprintf("%d", m.iteration))))
	if !m.updatedAt.IsZero() {
		b.WriteString(row("updated", m.updatedAt.Local().Format(time.TimeOnly)))
	}
	if m.failure != "" {
		b.WriteString(row("error", errStyle.Render(m.failure)))
	}
	if m.notice != "" {
		b.WriteString(row("notice", m.notice))
	}

	if len(m.events) > 0 {
		b.WriteString("\n" + boxStyle.Render(mutedStyle.Render(strings.Join(m.events, "\n"))))
	}

	footer := "q quit"
	if m.send != nil {
		footer = "r refresh  c cancel  " + footer
	}
	b.WriteString("\n" + footerStyle.Render(footer) + "\n")
	return b.String()
}

func (m Model) renderStatus() string {
	if m.status == "" {
		return mutedStyle.Render("connecting")
	}
	switch m.status {
	case model.JobStatusCompleted:
		return okStyle.Render(string(m.status))
	case model.JobStatusFailed, model.JobStatusCancelled:
		return errStyle.Render(string(m.status))
	}
	return valueStyle.Render(string(m.status))
}

func row(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}
