package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quantfold/insider-flow/internal/aggregate"
	"github.com/quantfold/insider-flow/internal/model"
	"github.com/quantfold/insider-flow/internal/service"
)

// DashboardConfig holds the configuration for running the dashboard.
type DashboardConfig struct {
	Storage service.Storage
	Logger  *slog.Logger
}

// RunDashboard loads the most recent study run and presents it interactively.
func RunDashboard(ctx context.Context, cfg DashboardConfig) error {
	if cfg.Storage == nil {
		return fmt.Errorf("storage is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Restore terminal to normal state on any exit. Best-effort cleanup,
	// errors are ignored.
	cleanupTerminal := func() {
		_, _ = os.Stdout.Write([]byte("\033[?1049l")) // Exit alternate screen
		_, _ = os.Stdout.Write([]byte("\033[?25h"))   // Show cursor
		_, _ = os.Stdout.Write([]byte("\033[m"))      // Reset colors
	}
	defer cleanupTerminal()

	run, events, err := cfg.Storage.GetLatestRun(ctx)
	if err != nil {
		return fmt.Errorf("failed to load latest run: %w", err)
	}

	curve, err := rebuildCurve(ctx, cfg.Storage, run, events)
	if err != nil {
		// The curve is a nicety; the summary and event views still work.
		logger.Warn("could not rebuild equity curve", "error", err)
		curve = nil
	}

	program := tea.NewProgram(newModel(run, events, curve), tea.WithAltScreen())

	go func() {
		select {
		case <-sigChan:
			program.Quit()
		case <-ctx.Done():
			program.Quit()
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

// rebuildCurve reconstructs the calendar-time equity curve from the
// cached prices the run was built against.
func rebuildCurve(ctx context.Context, storage service.Storage, run *service.RunRecord, events []model.Event) (*aggregate.CalendarCurve, error) {
	if len(events) == 0 {
		return &aggregate.CalendarCurve{}, nil
	}

	seen := make(map[string]bool)
	tickers := make([]string, 0)
	maxExit := events[0].ExitDate
	for _, ev := range events {
		if !seen[ev.Transaction.Ticker] {
			seen[ev.Transaction.Ticker] = true
			tickers = append(tickers, ev.Transaction.Ticker)
		}
		if ev.ExitDate.After(maxExit) {
			maxExit = ev.ExitDate
		}
	}

	prices, err := storage.GetPriceSeriesBulk(ctx, tickers, run.StartDate, maxExit.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	return aggregate.Calendar(events, prices, run.Horizon)
}
