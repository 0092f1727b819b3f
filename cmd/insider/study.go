package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfold/insider-flow/internal/aggregate"
	"github.com/quantfold/insider-flow/internal/classify"
	"github.com/quantfold/insider-flow/internal/config"
	"github.com/quantfold/insider-flow/internal/report"
	"github.com/quantfold/insider-flow/internal/service"
	"github.com/quantfold/insider-flow/internal/sheets"
	"github.com/quantfold/insider-flow/internal/study"
	"github.com/spf13/cobra"
)

func studyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "study",
		Short: "Run the insider purchase event study",
		Long: `Build events from cached insider purchases, classify each purchase as
large or normal relative to the insider's own history, and compare
forward returns between the two groups.

Results are stored in the database and written as CSV files.

Examples:
  # Mean threshold over 2023
  insider study --start 2023-01-01 --end 2024-01-01

  # 75th-percentile threshold, 20-session horizon
  insider study --start 2023-01-01 --end 2024-01-01 \
    --threshold percentile --percentile 0.75 --horizon 20`,
		RunE: runStudy,
	}

	defaults := study.DefaultConfig()
	cmd.Flags().String("start", "", "Study window start date (YYYY-MM-DD, required)")
	cmd.Flags().String("end", "", "Study window end date (YYYY-MM-DD, exclusive, required)")
	cmd.Flags().Float64("min-value", defaults.MinValueUSD, "Minimum purchase value in USD")
	cmd.Flags().Int("horizon", defaults.Horizon, "Holding period in trading sessions")
	cmd.Flags().String("threshold", "mean", "Classification strategy (mean, percentile)")
	cmd.Flags().Float64("percentile", 0.75, "Percentile for the percentile strategy (0..1)")
	cmd.Flags().String("output", "results", "Directory for CSV output")
	cmd.Flags().Bool("export", false, "Export results to Google Sheets")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runStudy(cmd *cobra.Command, _ []string) error {
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")
	minValue, _ := cmd.Flags().GetFloat64("min-value")
	horizon, _ := cmd.Flags().GetInt("horizon")
	thresholdName, _ := cmd.Flags().GetString("threshold")
	percentile, _ := cmd.Flags().GetFloat64("percentile")
	outputDir, _ := cmd.Flags().GetString("output")
	export, _ := cmd.Flags().GetBool("export")

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("end date must be after start date")
	}
	if horizon <= 0 {
		return fmt.Errorf("horizon must be positive")
	}

	threshold, err := classify.NewThresholder(thresholdName, percentile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Build events with forward returns
	builder := study.NewBuilder(store, study.Config{
		StartDate:          start,
		EndDate:            end,
		MinValueUSD:        minValue,
		Horizon:            horizon,
		EntryToleranceDays: study.DefaultConfig().EntryToleranceDays,
	})
	result, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	// Classify against each insider's own history
	classifier := classify.NewClassifier(store, threshold)
	if err := classifier.Classify(ctx, result.Events); err != nil {
		return err
	}

	// Aggregate
	buckets := aggregate.Distribution(result.Events)
	strategy := aggregate.Strategy(result.Events, horizon)
	curve, err := aggregate.Calendar(result.Events, result.Prices, horizon)
	if err != nil {
		return fmt.Errorf("failed to build equity curve: %w", err)
	}

	run := &service.RunRecord{
		CreatedAt:   time.Now(),
		StartDate:   start,
		EndDate:     end,
		Threshold:   threshold.Name(),
		Percentile:  percentile,
		MinValueUSD: minValue,
		Horizon:     horizon,
		TotalIn:     result.TotalIn,
		Constructed: result.Included(),
		Included:    result.Included(),
		Excluded:    result.Exclusions,
		TotalReturn: strategy.TotalReturn,
		HitRate:     strategy.HitRate,
		Sharpe:      strategy.Sharpe,
		MaxDrawdown: curve.MaxDrawdown,
	}

	runID, err := store.SaveRun(ctx, run, result.Events)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	run.ID = runID

	// Write CSV output
	writer, err := report.NewCSVWriter(config.ExpandPath(outputDir))
	if err != nil {
		return err
	}
	resultsPath, err := writer.WriteResults(result.Events)
	if err != nil {
		return err
	}
	summaryPath, err := writer.WriteSummary(run, buckets, strategy)
	if err != nil {
		return err
	}
	curvePath, err := writer.WriteEquityCurve(curve)
	if err != nil {
		return err
	}

	slog.Info("Wrote study output",
		"run_id", runID,
		"results", resultsPath,
		"summary", summaryPath,
		"equity_curve", curvePath)

	fmt.Println(report.RenderRunSummary(run, buckets, strategy, curve))

	if export {
		if err := exportToSheets(ctx, run, result); err != nil {
			return fmt.Errorf("sheets export failed: %w", err)
		}
	}

	return nil
}

func exportToSheets(ctx context.Context, run *service.RunRecord, result *study.Result) error {
	sheetsCfg, err := config.LoadSheetsConfig()
	if err != nil {
		return err
	}

	writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
	if err != nil {
		return err
	}

	return writer.Write(ctx, run, result.Events)
}
