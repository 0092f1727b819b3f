package main

import (
	"errors"
	"fmt"

	"github.com/quantfold/insider-flow/internal/common"
	"github.com/quantfold/insider-flow/internal/tui"
	"github.com/spf13/cobra"
)

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Browse the most recent study run interactively",
		Long: `Open a terminal dashboard over the most recent stored study run:
summary statistics, the per-event table, and the calendar-time
equity curve.`,
		RunE: runDashboard,
	}
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	err = tui.RunDashboard(ctx, tui.DashboardConfig{Storage: store})
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("no study runs found - run 'insider study' first")
	}
	return err
}
