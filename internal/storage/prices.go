package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantfold/insider-flow/internal/model"
)

// SavePrices upserts daily price points into the daily_prices cache.
// A refetch of the same (ticker, date) replaces the stored close.
func (s *SQLiteStorage) SavePrices(ctx context.Context, points []model.PricePoint) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePricePoints(points); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_prices (ticker, trade_date, adj_close)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker, trade_date) DO UPDATE SET adj_close = excluded.adj_close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range points {
		_, err = stmt.ExecContext(ctx,
			strings.ToUpper(strings.TrimSpace(p.Ticker)),
			model.Midnight(p.Date),
			p.AdjClose,
		)
		if err != nil {
			return fmt.Errorf("failed to insert price %s@%s: %w",
				p.Ticker, p.Date.Format("2006-01-02"), err)
		}
	}

	return tx.Commit()
}

// GetPriceSeries loads the sorted adjusted-close series for one ticker
// over [start, end]. A ticker with no cached prices yields an empty series,
// not an error; the caller decides whether that excludes events.
func (s *SQLiteStorage) GetPriceSeries(ctx context.Context, ticker string, start, end time.Time) (*model.PriceSeries, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(ticker, "ticker"); err != nil {
		return nil, err
	}

	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_date, adj_close
		FROM daily_prices
		WHERE ticker = ?
		  AND trade_date >= ?
		  AND trade_date <= ?
		ORDER BY trade_date
	`, ticker, model.Midnight(start), model.Midnight(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	defer func() { _ = rows.Close() }()

	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.Date, &p.AdjClose); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		p.Ticker = ticker
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return model.NewPriceSeries(ticker, points), nil
}

// GetPriceSeriesBulk loads price series for many tickers in one pass.
// Tickers with no cached data are simply absent from the result map.
func (s *SQLiteStorage) GetPriceSeriesBulk(ctx context.Context, tickers []string, start, end time.Time) (map[string]*model.PriceSeries, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		wanted[strings.ToUpper(strings.TrimSpace(t))] = true
	}

	// One range scan over the window; ticker filtering happens in Go to
	// keep the SQL free of driver-specific array binding.
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, trade_date, adj_close
		FROM daily_prices
		WHERE trade_date >= ?
		  AND trade_date <= ?
		ORDER BY ticker, trade_date
	`, model.Midnight(start), model.Midnight(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byTicker := make(map[string][]model.PricePoint)
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.Ticker, &p.Date, &p.AdjClose); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		if !wanted[p.Ticker] {
			continue
		}
		byTicker[p.Ticker] = append(byTicker[p.Ticker], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	series := make(map[string]*model.PriceSeries, len(byTicker))
	for ticker, points := range byTicker {
		series[ticker] = model.NewPriceSeries(ticker, points)
	}
	return series, nil
}
