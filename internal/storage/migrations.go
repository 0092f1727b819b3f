package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial insider transactions schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS insider_transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					accession_number TEXT NOT NULL,
					issuer_cik TEXT,
					ticker TEXT NOT NULL,
					company_name TEXT,
					filing_date DATETIME,
					trade_date DATETIME NOT NULL,
					insider_cik TEXT,
					insider_name TEXT,
					insider_role TEXT,
					transaction_type TEXT NOT NULL,
					shares REAL NOT NULL,
					price REAL NOT NULL,
					value_usd REAL NOT NULL,
					shares_after REAL,
					direct_or_indirect TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_insider_transactions_trade_date ON insider_transactions(trade_date)`,
				`CREATE INDEX idx_insider_transactions_ticker ON insider_transactions(ticker)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add daily prices cache",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS daily_prices (
					ticker TEXT NOT NULL,
					trade_date DATETIME NOT NULL,
					adj_close REAL,
					PRIMARY KEY (ticker, trade_date)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add study runs and per-event results",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS study_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					start_date DATETIME NOT NULL,
					end_date DATETIME NOT NULL,
					min_value_usd REAL NOT NULL,
					horizon INTEGER NOT NULL,
					threshold TEXT NOT NULL,
					percentile REAL,
					total_in INTEGER NOT NULL,
					constructed INTEGER NOT NULL,
					included INTEGER NOT NULL,
					exclusions TEXT,
					total_return REAL,
					hit_rate REAL,
					sharpe REAL,
					max_drawdown REAL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS study_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id INTEGER NOT NULL,
					transaction_id TEXT NOT NULL,
					accession_number TEXT,
					ticker TEXT NOT NULL,
					insider_cik TEXT,
					insider_name TEXT,
					trade_date DATETIME NOT NULL,
					entry_date DATETIME NOT NULL,
					entry_price REAL NOT NULL,
					exit_date DATETIME NOT NULL,
					exit_price REAL NOT NULL,
					forward_return REAL NOT NULL,
					size_bucket TEXT NOT NULL,
					value_usd REAL NOT NULL,
					FOREIGN KEY (run_id) REFERENCES study_runs(id)
				)`,
				`CREATE INDEX idx_study_events_run_id ON study_events(run_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Optimize classification history lookups",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				// Insider history queries filter by CIK and strictly-prior trade date
				`CREATE INDEX IF NOT EXISTS idx_insider_transactions_insider_date ON insider_transactions(insider_cik, trade_date)`,
				// Drop redundant index (UNIQUE constraint already creates an index)
				`DROP INDEX IF EXISTS idx_insider_transactions_hash`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
