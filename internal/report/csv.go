// Package report renders study output: CSV files for downstream tooling
// and a styled terminal summary of the run.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/quantfold/insider-flow/internal/aggregate"
	"github.com/quantfold/insider-flow/internal/model"
	"github.com/quantfold/insider-flow/internal/service"
)

// CSVWriter writes study output files into a directory.
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates a writer rooted at dir, creating it if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &CSVWriter{dir: dir}, nil
}

// WriteResults writes the per-event results file and returns its path.
func (w *CSVWriter) WriteResults(events []model.Event) (string, error) {
	path := filepath.Join(w.dir, "results.csv")

	header := []string{
		"ticker", "company_name", "insider_name", "trade_date",
		"entry_date", "entry_price", "exit_date", "exit_price",
		"value_usd", "size_bucket", "forward_return",
	}

	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{
			ev.Transaction.Ticker,
			ev.Transaction.CompanyName,
			ev.Transaction.InsiderName,
			ev.Transaction.TradeDate.Format("2006-01-02"),
			ev.EntryDate.Format("2006-01-02"),
			formatFloat(ev.EntryPrice),
			ev.ExitDate.Format("2006-01-02"),
			formatFloat(ev.ExitPrice),
			formatFloat(ev.Transaction.ValueUSD),
			string(ev.Bucket),
			formatFloat(ev.ForwardReturn),
		})
	}

	return path, writeCSV(path, header, rows)
}

// WriteSummary writes bucket statistics plus headline strategy stats.
func (w *CSVWriter) WriteSummary(run *service.RunRecord, buckets []aggregate.BucketStats, strategy aggregate.StrategyStats) (string, error) {
	path := filepath.Join(w.dir, "summary.csv")

	header := []string{"metric", "bucket", "value"}
	var rows [][]string

	for _, b := range buckets {
		rows = append(rows,
			[]string{"count", string(b.Bucket), strconv.Itoa(b.Count)},
			[]string{"mean_return", string(b.Bucket), formatFloat(b.Mean)},
			[]string{"median_return", string(b.Bucket), formatFloat(b.Median)},
			[]string{"std_dev", string(b.Bucket), formatFloat(b.StdDev)},
			[]string{"skewness", string(b.Bucket), formatFloat(b.Skewness)},
		)
	}

	rows = append(rows,
		[]string{"num_trades", "all", strconv.Itoa(strategy.NumTrades)},
		[]string{"total_return", "all", formatFloat(strategy.TotalReturn)},
		[]string{"avg_trade_return", "all", formatFloat(strategy.AvgTradeReturn)},
		[]string{"hit_rate", "all", formatFloat(strategy.HitRate)},
		[]string{"approx_annualized_sharpe", "all", formatFloat(strategy.Sharpe)},
		[]string{"max_drawdown", "all", formatFloat(run.MaxDrawdown)},
		[]string{"transactions_in", "all", strconv.Itoa(run.TotalIn)},
		[]string{"events_constructed", "all", strconv.Itoa(run.Constructed)},
		[]string{"events_included", "all", strconv.Itoa(run.Included)},
	)

	for reason, count := range run.Excluded {
		rows = append(rows, []string{"excluded_" + string(reason), "all", strconv.Itoa(count)})
	}

	return path, writeCSV(path, header, rows)
}

// WriteEquityCurve writes the calendar-time series.
func (w *CSVWriter) WriteEquityCurve(curve *aggregate.CalendarCurve) (string, error) {
	path := filepath.Join(w.dir, "equity_curve.csv")

	header := []string{"date", "portfolio_return", "equity", "drawdown", "active_positions"}
	rows := make([][]string, 0, len(curve.Points))
	for _, p := range curve.Points {
		rows = append(rows, []string{
			p.Date.Format("2006-01-02"),
			formatFloat(p.PortfolioReturn),
			formatFloat(p.Equity),
			formatFloat(p.Drawdown),
			strconv.Itoa(p.Active),
		})
	}

	return path, writeCSV(path, header, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()

	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
