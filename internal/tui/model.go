// Package tui provides the interactive dashboard over stored study runs.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quantfold/insider-flow/internal/aggregate"
	"github.com/quantfold/insider-flow/internal/model"
	"github.com/quantfold/insider-flow/internal/service"
)

// View represents the current view mode.
type View int

const (
	ViewSummary View = iota
	ViewEvents
	ViewCurve
)

// viewCount is the number of cycling views.
const viewCount = 3

// Model holds the dashboard state for one study run.
type Model struct {
	run      *service.RunRecord
	curve    *aggregate.CalendarCurve
	strategy aggregate.StrategyStats
	buckets  []aggregate.BucketStats
	events   []model.Event
	keymap   KeyMap
	table    table.Model
	width    int
	height   int
	view     View
	showHelp bool
	quitting bool
}

// newModel creates a dashboard model from a stored run.
func newModel(run *service.RunRecord, events []model.Event, curve *aggregate.CalendarCurve) Model {
	m := Model{
		run:      run,
		events:   events,
		curve:    curve,
		buckets:  aggregate.Distribution(events),
		strategy: aggregate.Strategy(events, run.Horizon),
		keymap:   DefaultKeyMap(),
		view:     ViewSummary,
		width:    80,
		height:   24,
	}
	m.table = newEventTable(events)
	return m
}

// newEventTable builds the events table component.
func newEventTable(events []model.Event) table.Model {
	columns := []table.Column{
		{Title: "Trade Date", Width: 10},
		{Title: "Ticker", Width: 7},
		{Title: "Insider", Width: 22},
		{Title: "Value", Width: 12},
		{Title: "Bucket", Width: 11},
		{Title: "Fwd Return", Width: 10},
	}

	rows := make([]table.Row, 0, len(events))
	for _, ev := range events {
		rows = append(rows, table.Row{
			ev.Transaction.TradeDate.Format("2006-01-02"),
			ev.Transaction.Ticker,
			truncate(ev.Transaction.InsiderName, 22),
			fmt.Sprintf("$%.0f", ev.Transaction.ValueUSD),
			string(ev.Bucket),
			fmt.Sprintf("%+.2f%%", ev.ForwardReturn*100),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		BorderBottom(true).
		Bold(false)
	s.Selected = selectedStyle
	t.SetStyles(s)

	return t
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.EnterAltScreen
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			m.view = (m.view + 1) % viewCount
			return m, nil
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		case "ctrl+l":
			return m, tea.ClearScreen
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(1, m.height-8))
	}

	if m.view == ViewEvents {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.showHelp {
		return m.renderHelp()
	}

	var body string
	switch m.view {
	case ViewSummary:
		body = m.renderSummary()
	case ViewEvents:
		body = m.renderEvents()
	case ViewCurve:
		body = m.renderCurve()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderTabs(),
		body,
		m.renderFooter(),
	)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
