package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/quantfold/insider-flow/internal/cli"
	"github.com/quantfold/insider-flow/internal/common"
	"github.com/quantfold/insider-flow/internal/model"
	"github.com/quantfold/insider-flow/internal/service"
	"github.com/quantfold/insider-flow/internal/yahoo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func pricesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Fetch and cache daily prices for all imported tickers",
		Long: `Download adjusted daily closing prices from Yahoo Finance for every
ticker present in the transaction database and cache them locally.

The study command reads exclusively from this cache, so fetch prices
covering your study window plus the holding horizon before running it.`,
		RunE: runPrices,
	}

	cmd.Flags().String("start", "", "Start date (YYYY-MM-DD, required)")
	cmd.Flags().String("end", "", "End date (YYYY-MM-DD, default: today)")
	cmd.Flags().Duration("pause", 300*time.Millisecond, "Pause between tickers to stay under rate limits")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func runPrices(cmd *cobra.Command, _ []string) error {
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")
	pause, _ := cmd.Flags().GetDuration("pause")

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end := time.Now()
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}
	if !end.After(start) {
		return fmt.Errorf("end date must be after start date")
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	tickers, err := store.GetDistinctTickers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tickers: %w", err)
	}
	if len(tickers) == 0 {
		return fmt.Errorf("%w - run 'insider import' first", common.ErrNoTransactions)
	}

	slog.Info("📈 Fetching daily prices...",
		"tickers", len(tickers),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"))

	bar := progressbar.NewOptions(len(tickers),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Fetching prices...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	client := yahoo.NewClient()
	retryOpts := service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	fetched := 0
	points := 0
	failures := make(model.ExclusionCounts)
	var failedTickers []string

	for _, ticker := range tickers {
		var history []model.PricePoint
		err := common.WithRetry(ctx, func() error {
			var fetchErr error
			history, fetchErr = client.DailyHistory(ctx, ticker, start, end)
			return fetchErr
		}, retryOpts)

		if err != nil {
			failures.Add(model.ExcludedSourceFailure)
			failedTickers = append(failedTickers, ticker)
			slog.Debug("Price fetch failed", "ticker", ticker, "error", err)
			_ = bar.Add(1)
			continue
		}

		if len(history) > 0 {
			if err := store.SavePrices(ctx, history); err != nil {
				return fmt.Errorf("failed to save prices for %s: %w", ticker, err)
			}
			fetched++
			points += len(history)
		} else {
			failures.Add(model.ExcludedNoPriceSeries)
			failedTickers = append(failedTickers, ticker)
		}

		_ = bar.Add(1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}

	slog.Info("Price fetch complete",
		"tickers_ok", fetched,
		"tickers_failed", failures.Total(),
		"points_cached", points)

	if len(failedTickers) > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("No prices for %d tickers: %v", len(failedTickers), failedTickers)))
	} else {
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("Cached %d price points for %d tickers", points, fetched)))
	}

	return nil
}
