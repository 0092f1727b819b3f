package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quantfold/insider-flow/internal/common"
	"github.com/quantfold/insider-flow/internal/model"
	"github.com/quantfold/insider-flow/internal/service"
)

// SaveRun persists a study run and its per-event results atomically,
// returning the new run ID.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *service.RunRecord, events []model.Event) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if run == nil {
		return 0, fmt.Errorf("%w: run", ErrNilParameter)
	}
	if run.Horizon <= 0 {
		return 0, fmt.Errorf("%w: horizon must be positive", ErrInvalidRun)
	}

	exclusionsJSON := ""
	if len(run.Excluded) > 0 {
		b, err := json.Marshal(run.Excluded)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal exclusions: %w", err)
		}
		exclusionsJSON = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO study_runs (
			start_date, end_date, min_value_usd, horizon, threshold, percentile,
			total_in, constructed, included, exclusions,
			total_return, hit_rate, sharpe, max_drawdown
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		model.Midnight(run.StartDate),
		model.Midnight(run.EndDate),
		run.MinValueUSD,
		run.Horizon,
		run.Threshold,
		run.Percentile,
		run.TotalIn,
		run.Constructed,
		run.Included,
		exclusionsJSON,
		run.TotalReturn,
		run.HitRate,
		run.Sharpe,
		run.MaxDrawdown,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO study_events (
			run_id, transaction_id, accession_number, ticker, insider_cik,
			insider_name, trade_date, entry_date, entry_price, exit_date,
			exit_price, forward_return, size_bucket, value_usd
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ev := range events {
		_, err = stmt.ExecContext(ctx,
			runID,
			ev.Transaction.ID,
			ev.Transaction.Accession,
			ev.Transaction.Ticker,
			ev.Transaction.InsiderCIK,
			ev.Transaction.InsiderName,
			model.Midnight(ev.Transaction.TradeDate),
			ev.EntryDate,
			ev.EntryPrice,
			ev.ExitDate,
			ev.ExitPrice,
			ev.ForwardReturn,
			string(ev.Bucket),
			ev.Transaction.ValueUSD,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert event for %s: %w", ev.Transaction.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

// GetLatestRun loads the most recent study run and its events.
// Returns common.ErrNotFound when no run has been stored yet.
func (s *SQLiteStorage) GetLatestRun(ctx context.Context) (*service.RunRecord, []model.Event, error) {
	if err := validateContext(ctx); err != nil {
		return nil, nil, err
	}

	run := &service.RunRecord{}
	var exclusionsJSON sql.NullString
	var percentile sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, start_date, end_date, min_value_usd, horizon, threshold,
		       percentile, total_in, constructed, included, exclusions,
		       total_return, hit_rate, sharpe, max_drawdown, created_at
		FROM study_runs
		ORDER BY id DESC
		LIMIT 1
	`).Scan(
		&run.ID,
		&run.StartDate,
		&run.EndDate,
		&run.MinValueUSD,
		&run.Horizon,
		&run.Threshold,
		&percentile,
		&run.TotalIn,
		&run.Constructed,
		&run.Included,
		&exclusionsJSON,
		&run.TotalReturn,
		&run.HitRate,
		&run.Sharpe,
		&run.MaxDrawdown,
		&run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, common.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load latest run: %w", err)
	}

	if percentile.Valid {
		run.Percentile = percentile.Float64
	}
	if exclusionsJSON.Valid && exclusionsJSON.String != "" {
		run.Excluded = make(map[model.ExclusionReason]int)
		if err := json.Unmarshal([]byte(exclusionsJSON.String), &run.Excluded); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal exclusions: %w", err)
		}
	}

	events, err := s.getRunEvents(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}

	return run, events, nil
}

func (s *SQLiteStorage) getRunEvents(ctx context.Context, runID int64) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, accession_number, ticker, insider_cik,
		       insider_name, trade_date, entry_date, entry_price, exit_date,
		       exit_price, forward_return, size_bucket, value_usd
		FROM study_events
		WHERE run_id = ?
		ORDER BY trade_date, transaction_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var bucket string
		var tradeDate time.Time
		err := rows.Scan(
			&ev.Transaction.ID,
			&ev.Transaction.Accession,
			&ev.Transaction.Ticker,
			&ev.Transaction.InsiderCIK,
			&ev.Transaction.InsiderName,
			&tradeDate,
			&ev.EntryDate,
			&ev.EntryPrice,
			&ev.ExitDate,
			&ev.ExitPrice,
			&ev.ForwardReturn,
			&bucket,
			&ev.Transaction.ValueUSD,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Transaction.TradeDate = tradeDate
		ev.Transaction.Code = model.CodePurchase
		ev.Bucket = model.SizeBucket(bucket)
		events = append(events, ev)
	}

	return events, rows.Err()
}
