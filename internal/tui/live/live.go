package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"burstq/internal/runner"
	"burstq/internal/tui/components"
	"burstq/internal/tui/result"
	"burstq/internal/tui/styles"
)

const tickInterval = 200 * time.Millisecond

// StatusSource is polled on every tick.
type StatusSource interface {
	Status() runner.Status
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model follows one run until it completes, then shows the result panel.
type Model struct {
	Source   StatusSource
	Progress progress.Model
	Rps      components.Sparkline

	Status    runner.Status
	Done      bool
	Quitting  bool
	StartTime time.Time

	lastTick      time.Time
	lastCompleted int

	Width  int
	Height int
}

func NewModel(src StatusSource) Model {
	now := time.Now()
	return Model{
		Source: src,
		Progress: progress.New(
			progress.WithGradient("#E4572E", "#29BF12"),
			progress.WithWidth(60),
		),
		Rps:       components.NewSparkline(40, "Completions / s", styles.Accent),
		StartTime: now,
		lastTick:  now,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.Quitting = true
			return m, tea.Quit
		case "q", "esc", "enter":
			if m.Done {
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-8, 10)
		m.Rps.Width = max(msg.Width/2-4, 10)
		return m, nil

	case tickMsg:
		return m.poll(time.Time(msg))

	case progress.FrameMsg:
		p, cmd := m.Progress.Update(msg)
		m.Progress = p.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m Model) poll(now time.Time) (tea.Model, tea.Cmd) {
	st := m.Source.Status()
	m.Status = st
	if st.Results == nil {
		return m, tick()
	}
	res := st.Results

	dt := now.Sub(m.lastTick).Seconds()
	if dt < 0.01 {
		dt = 0.01
	}
	m.Rps.Add(float64(res.Completed-m.lastCompleted) / dt)
	m.lastCompleted = res.Completed
	m.lastTick = now

	pct := 0.0
	if res.NumRequests > 0 {
		pct = float64(res.Completed) / float64(res.NumRequests)
	}
	cmd := m.Progress.SetPercent(pct)

	if !st.Running && res.Done() {
		m.Done = true
		return m, cmd
	}
	return m, tea.Batch(cmd, tick())
}

func (m Model) View() string {
	if m.Status.Results == nil {
		return styles.Subtle.Render("Waiting for run to start...")
	}
	res := *m.Status.Results
	if m.Done {
		return result.NewModel(res).View()
	}

	s := strings.Builder{}
	s.WriteString(styles.Title.Render("🚀 " + res.URL))
	s.WriteString("\n\n")

	inflight := min(res.Concurrency, res.NumRequests-res.Completed)
	col1 := fmt.Sprintf("DONE: %d/%d\nWORKERS: %d", res.Completed, res.NumRequests, inflight)
	col2 := styles.OK.Render(fmt.Sprintf("OK: %d", res.Successful)) + "\n" +
		styles.Fail.Render(fmt.Sprintf("FAIL: %d", res.Failed))
	col3 := fmt.Sprintf("ELAPSED: %s\nERRORS: %d", time.Since(m.StartTime).Round(100*time.Millisecond), len(res.Errors))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")
	s.WriteString(styles.Box.Render(m.Rps.View()))
	s.WriteString("\n\n")
	s.WriteString(m.Progress.View())
	s.WriteString("\n\n")
	s.WriteString(styles.Subtle.Render("ctrl+c to detach (the run keeps going until every request finishes)"))
	return s.String()
}
