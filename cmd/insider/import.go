package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/quantfold/insider-flow/internal/form4"
	"github.com/quantfold/insider-flow/internal/model"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [directories...]",
		Short: "Import Form 4 transactions from SEC bulk TSV directories",
		Long: `Import insider transactions from quarterly SEC insider transaction
data sets. Each directory must contain SUBMISSION.TSV and
NONDERIV_TRANS.TSV as extracted from the SEC archive.

Examples:
  # Import a single quarter
  insider import ~/data/2024q1_form345

  # Import several quarters at once
  insider import ~/data/2023q*_form345 ~/data/2024q1_form345`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	// Expand globs and collect all directories
	var allDirs []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct directory
			if info, statErr := os.Stat(pattern); statErr == nil && info.IsDir() {
				allDirs = append(allDirs, pattern)
			} else {
				slog.Warn("No directories found matching pattern", "pattern", pattern)
			}
		} else {
			allDirs = append(allDirs, matches...)
		}
	}

	if len(allDirs) == 0 {
		return fmt.Errorf("no directories found to import")
	}

	slog.Info("📥 Importing Form 4 filings...",
		"directory_count", len(allDirs),
		"dry_run", dryRun)

	ctx := cmd.Context()
	parser := form4.NewParser()

	// Track all transactions across quarters
	var allTransactions []model.Transaction
	seen := make(map[string]bool) // For deduplication across quarters
	totalDropped := 0

	for _, dir := range allDirs {
		slog.Info("Processing directory", "dir", filepath.Base(dir))

		result, err := parser.ParseDir(ctx, dir)
		if err != nil {
			slog.Error("Failed to parse directory",
				"dir", dir,
				"error", err)
			continue
		}

		added := 0
		for _, txn := range result.Transactions {
			if !seen[txn.Hash] {
				seen[txn.Hash] = true
				allTransactions = append(allTransactions, txn)
				added++
			}
		}
		totalDropped += result.Dropped

		slog.Info("Processed directory",
			"dir", filepath.Base(dir),
			"transactions_found", len(result.Transactions),
			"added", added,
			"duplicates", len(result.Transactions)-added,
			"dropped_rows", result.Dropped)
	}

	if len(allTransactions) == 0 {
		slog.Warn("No transactions found in any directory")
		return nil
	}

	purchases := 0
	for _, txn := range allTransactions {
		if txn.IsOpenMarketPurchase() {
			purchases++
		}
	}

	slog.Info("Import summary",
		"total", len(allTransactions),
		"open_market_purchases", purchases,
		"dropped_rows", totalDropped)

	if dryRun {
		slog.Info("🔍 DRY RUN - No data was saved",
			"would_save", len(allTransactions))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveTransactions(ctx, allTransactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	count, err := store.GetTransactionCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count transactions: %w", err)
	}

	slog.Info("💾 Saved transactions",
		"imported", len(allTransactions),
		"total_in_database", count)

	return nil
}
