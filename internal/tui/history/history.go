package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"burstq/internal/runner"
	"burstq/internal/tui/styles"
)

// Lister is the read side of the run archive.
type Lister interface {
	List(limit int) ([]runner.RunResult, error)
}

type Model struct {
	Store Lister
	Limit int
	Table table.Model
	Err   error

	Width  int
	Height int
}

func NewModel(store Lister, limit int) Model {
	columns := []table.Column{
		{Title: "Finished", Width: 20},
		{Title: "URL", Width: 34},
		{Title: "Reqs", Width: 6},
		{Title: "Conc", Width: 6},
		{Title: "Success", Width: 9},
		{Title: "RPS", Width: 9},
		{Title: "P99 ms", Width: 9},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorBorder).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(styles.ColorPrimary).
		Bold(false)
	t.SetStyles(s)

	m := Model{
		Store: store,
		Limit: limit,
		Table: t,
	}
	m.Refresh()
	return m
}

func (m *Model) Refresh() {
	runs, err := m.Store.List(m.Limit)
	m.Err = err
	m.Table.SetRows(Rows(runs))
}

// Rows formats archived runs for the table, one row per run.
func Rows(runs []runner.RunResult) []table.Row {
	rows := make([]table.Row, len(runs))
	for i, r := range runs {
		success, rps, p99 := "-", "-", "-"
		if r.Stats != nil {
			success = fmt.Sprintf("%.2f%%", r.Stats.SuccessRatePercent)
			rps = fmt.Sprintf("%.2f", r.Stats.RequestsPerSecond)
			p99 = fmt.Sprintf("%.2f", r.Stats.P99ResponseTimeMs)
		}
		rows[i] = table.Row{
			r.EndTime.Local().Format(time.DateTime),
			r.URL,
			fmt.Sprintf("%d", r.NumRequests),
			fmt.Sprintf("%d", r.Concurrency),
			success,
			rps,
			p99,
		}
	}
	return rows
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
		m.Table.SetHeight(max(msg.Height-6, 3))

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.Refresh()
			return m, nil
		}
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Err != nil {
		return styles.Fail.Render("history: " + m.Err.Error())
	}
	if len(m.Table.Rows()) == 0 {
		return styles.Subtle.Render("No archived runs yet.")
	}
	return styles.Title.Render("Run History") + "\n" +
		styles.Box.Render(m.Table.View()) + "\n" +
		styles.Subtle.Render("↑/↓ move • r refresh • q quit")
}
