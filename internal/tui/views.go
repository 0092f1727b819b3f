package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quantfold/insider-flow/internal/aggregate"
	"github.com/quantfold/insider-flow/internal/cli"
	"github.com/quantfold/insider-flow/internal/model"
)

var (
	borderColor = lipgloss.Color("#333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cli.PrimaryColor)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(cli.SubtleColor)

	activeTabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Bold(true).
			Foreground(cli.PrimaryColor).
			Underline(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(cli.PrimaryColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(cli.SubtleColor)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2)
)

var tabNames = []string{"Summary", "Events", "Equity Curve"}

// sparkline glyphs from lowest to highest.
var sparks = []rune("▁▂▃▄▅▆▇█")

// renderTabs renders the view switcher bar.
func (m Model) renderTabs() string {
	parts := make([]string, 0, len(tabNames))
	for i, name := range tabNames {
		if View(i) == m.view {
			parts = append(parts, activeTabStyle.Render(name))
		} else {
			parts = append(parts, tabStyle.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// renderSummary renders the run parameters and headline statistics.
func (m Model) renderSummary() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Insider Purchase Event Study"))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Window:     %s to %s\n",
		m.run.StartDate.Format("2006-01-02"),
		m.run.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Horizon:    %d trading days\n", m.run.Horizon)
	fmt.Fprintf(&b, "Threshold:  %s\n", m.run.Threshold)
	fmt.Fprintf(&b, "Min value:  $%.0f\n", m.run.MinValueUSD)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Transactions in:    %d\n", m.run.TotalIn)
	fmt.Fprintf(&b, "Events constructed: %d\n", m.run.Constructed)
	fmt.Fprintf(&b, "Events included:    %d\n", m.run.Included)
	if len(m.run.Excluded) > 0 {
		b.WriteString(mutedStyle.Render(m.renderExclusions()))
	}
	b.WriteString("\n")

	for _, bucket := range m.buckets {
		line := fmt.Sprintf("%-11s n=%-5d mean=%7.2f%%  median=%7.2f%%  skew=%+.2f",
			string(bucket.Bucket), bucket.Count,
			bucket.Mean*100, bucket.Median*100, bucket.Skewness)
		b.WriteString(cli.FormatReturn(line, bucket.Mean))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Total return:  %s\n",
		cli.FormatReturn(fmt.Sprintf("%.2f%%", m.strategy.TotalReturn*100), m.strategy.TotalReturn))
	fmt.Fprintf(&b, "Hit rate:      %.1f%%\n", m.strategy.HitRate*100)
	fmt.Fprintf(&b, "Sharpe (ann.): %.2f\n", m.strategy.Sharpe)
	if m.curve != nil {
		fmt.Fprintf(&b, "Max drawdown:  %s\n",
			cli.FormatReturn(fmt.Sprintf("%.2f%%", m.curve.MaxDrawdown*100), m.curve.MaxDrawdown))
		fmt.Fprintf(&b, "Final equity:  %.4f", m.curve.FinalEquity())
	}

	return panelStyle.Render(b.String())
}

func (m Model) renderExclusions() string {
	reasons := make([]model.ExclusionReason, 0, len(m.run.Excluded))
	for r := range m.run.Excluded {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	var b strings.Builder
	for _, reason := range reasons {
		fmt.Fprintf(&b, "  %-30s %d\n", string(reason), m.run.Excluded[reason])
	}
	return b.String()
}

// renderEvents renders the scrollable event table.
func (m Model) renderEvents() string {
	header := titleStyle.Render(fmt.Sprintf("Events (%d)", len(m.events)))
	return lipgloss.JoinVertical(lipgloss.Left, header, m.table.View())
}

// renderCurve renders the calendar-time equity curve as a sparkline
// with headline drawdown figures.
func (m Model) renderCurve() string {
	if m.curve == nil || len(m.curve.Points) == 0 {
		return panelStyle.Render(mutedStyle.Render("No equity curve available for this run."))
	}

	width := max(20, m.width-8)
	line := sparkline(m.curve, width)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Calendar-Time Equity"))
	b.WriteString("\n\n")
	b.WriteString(line)
	b.WriteString("\n\n")

	first := m.curve.Points[0]
	last := m.curve.Points[len(m.curve.Points)-1]
	fmt.Fprintf(&b, "%s", mutedStyle.Render(fmt.Sprintf("%s to %s  (%d sessions)",
		first.Date.Format("2006-01-02"), last.Date.Format("2006-01-02"), len(m.curve.Points)-1)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Final equity: %.4f   Max drawdown: %s",
		m.curve.FinalEquity(),
		cli.FormatReturn(fmt.Sprintf("%.2f%%", m.curve.MaxDrawdown*100), m.curve.MaxDrawdown))

	return panelStyle.Render(b.String())
}

// sparkline downsamples the equity series into one row of block glyphs.
func sparkline(curve *aggregate.CalendarCurve, width int) string {
	points := curve.Points
	if len(points) == 0 || width <= 0 {
		return ""
	}

	lo, hi := points[0].Equity, points[0].Equity
	for _, p := range points {
		if p.Equity < lo {
			lo = p.Equity
		}
		if p.Equity > hi {
			hi = p.Equity
		}
	}

	if width > len(points) {
		width = len(points)
	}

	var b strings.Builder
	for i := 0; i < width; i++ {
		// Sample the point nearest to this column.
		idx := i * (len(points) - 1) / max(1, width-1)
		level := 0
		if hi > lo {
			level = int((points[idx].Equity - lo) / (hi - lo) * float64(len(sparks)-1))
		}
		b.WriteRune(sparks[level])
	}
	return b.String()
}

// renderFooter renders the key hint bar.
func (m Model) renderFooter() string {
	hints := []string{
		"[Tab] Switch view",
		"[↑↓] Navigate",
		"[?] Help",
		"[q] Quit",
	}
	return mutedStyle.Render(strings.Join(hints, "  "))
}

// renderHelp renders the full help overlay.
func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")
	for _, group := range m.keymap.FullHelp() {
		for _, binding := range group {
			fmt.Fprintf(&b, "  %-14s %s\n", binding.Help().Key, binding.Help().Desc)
		}
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("Press ? to close"))

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		panelStyle.Render(b.String()),
	)
}
