// loom-tui is a terminal dashboard for a running loom-d: the session's
// workflows on top, the operation log streaming below.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loomlab/loom/pkg/client"
)

const (
	pollRate       = time.Second
	fetchTimeout   = 800 * time.Millisecond
	maxLogEntries  = 100
	viewportHeight = 14
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	logTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
	logOpStyle   = lipgloss.NewStyle().Width(28).Bold(true)
	logWfStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	levelErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	levelWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	levelInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

type tickMsg time.Time

type dataMsg struct {
	workflows []client.WorkflowSummary
	logs      []client.LogEntry
	err       error
}

type model struct {
	client    *client.Client
	spinner   spinner.Model
	viewport  viewport.Model
	workflows []client.WorkflowSummary
	logs      []client.LogEntry
	backoff   client.Backoff
	attempts  int
	err       error
	ready     bool
}

func initialModel(c *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(100, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return model{
		client:   c,
		spinner:  s,
		viewport: vp,
		backoff:  *client.DefaultBackoff(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.client),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.client))

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
			m.attempts++
		} else {
			m.err = nil
			m.attempts = 0
			m.workflows = msg.workflows
			m.logs = msg.logs
			m.updateViewportContent()
		}
		m.ready = true

		// Back off while the daemon is unreachable so a dead endpoint
		// is not hammered once a second.
		delay := pollRate
		if m.attempts > 0 {
			delay = m.backoff.Next(m.attempts)
		}
		cmds = append(cmds, tick(delay))

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.viewport.Style = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				PaddingRight(2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder

	for _, e := range m.logs {
		var levelStr string
		switch e.Level {
		case "error":
			levelStr = levelErrorStyle.Render(e.Op)
		case "warn":
			levelStr = levelWarnStyle.Render(e.Op)
		default:
			levelStr = levelInfoStyle.Render(e.Op)
		}

		wf := ""
		if e.WorkflowID != "" {
			wf = logWfStyle.Render(e.WorkflowID)
		}
		line := fmt.Sprintf("%s %s %s %s\n",
			logTimeStyle.Render(e.Time.Local().Format("15:04:05")),
			logOpStyle.Render(levelStr),
			e.Message,
			wf,
		)
		sb.WriteString(line)
	}

	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting to loom-d...", m.spinner.View())
	}

	// Top pane: session workflows.
	var list strings.Builder
	list.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Workflows") + "\n\n")

	if len(m.workflows) == 0 {
		list.WriteString(subtleStyle.Render("No workflows in the session."))
	} else {
		for _, w := range m.workflows {
			line := fmt.Sprintf("• %s  (%d nodes, %d links)", w.Name, w.Nodes, w.Links)
			if w.Active {
				line = activeStyle.Render(line + "  *active*")
			}
			list.WriteString(line + "\n")
			list.WriteString(subtleStyle.Render("  "+w.ID) + "\n")
		}
	}
	topPane := paneStyle.Render(list.String())

	// Bottom pane: operation stream.
	header := headerStyle.Render(fmt.Sprintf("%s Operation Log", m.spinner.View()))
	bottomPane := m.viewport.View()

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v (retry %d)", m.err, m.attempts))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Workflows • %d Log Entries", len(m.workflows), len(m.logs)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", statusStyle.Render(status)))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

// Commands

func fetchData(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		workflows, err := c.ListWorkflows(ctx)
		if err != nil {
			return dataMsg{err: err}
		}

		logs, err := c.GetLogs(ctx, client.LogOptions{Limit: maxLogEntries})
		if err != nil {
			return dataMsg{err: err}
		}

		return dataMsg{workflows: workflows, logs: logs}
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	c := client.NewClient(os.Getenv("LOOM_ENDPOINT"), os.Getenv("LOOM_API_TOKEN"))

	p := tea.NewProgram(initialModel(c), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
