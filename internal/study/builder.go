// Package study implements the core of the event study: constructing
// events from qualifying insider purchases and computing their forward
// returns against the local price cache.
package study

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfold/insider-flow/internal/model"
	"github.com/quantfold/insider-flow/internal/service"
)

// Config holds the study parameters.
type Config struct {
	StartDate time.Time
	EndDate   time.Time
	// MinValueUSD drops noise trades below a dollar threshold.
	MinValueUSD float64
	// Horizon is the holding period in trading sessions.
	Horizon int
	// EntryToleranceDays bounds how far forward (in calendar days) the
	// entry may slide to the next available trading date.
	EntryToleranceDays int
}

// DefaultConfig returns the default study parameters.
func DefaultConfig() Config {
	return Config{
		MinValueUSD:        10_000,
		Horizon:            10,
		EntryToleranceDays: 3,
	}
}

// Builder turns stored transactions plus the price cache into the event set.
type Builder struct {
	storage service.Storage
	config  Config
}

// NewBuilder creates an event builder over the given storage.
func NewBuilder(storage service.Storage, config Config) *Builder {
	if config.Horizon <= 0 {
		config.Horizon = DefaultConfig().Horizon
	}
	if config.EntryToleranceDays <= 0 {
		config.EntryToleranceDays = DefaultConfig().EntryToleranceDays
	}
	return &Builder{storage: storage, config: config}
}

// Result is the outcome of event construction and return computation.
// Exclusions are expected and counted; they never abort the build.
type Result struct {
	Exclusions model.ExclusionCounts
	// Prices holds the per-ticker series the events were built against,
	// so downstream aggregation sees the exact same cache.
	Prices  map[string]*model.PriceSeries
	Events  []model.Event
	TotalIn int
}

// Included returns the number of events that survived construction.
func (r *Result) Included() int {
	return len(r.Events)
}

// Build loads the transaction window, constructs events, and computes
// forward returns. Per-record failures become counted exclusions; only a
// structural failure (unreadable storage) is returned as an error.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	transactions, err := b.storage.GetTransactionsInWindow(ctx, b.config.StartDate, b.config.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	result := &Result{
		Exclusions: make(model.ExclusionCounts),
		TotalIn:    len(transactions),
	}

	buys := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		switch {
		case !txn.IsOpenMarketPurchase():
			result.Exclusions.Add(model.ExcludedNotPurchase)
		case txn.ValueUSD < b.config.MinValueUSD:
			result.Exclusions.Add(model.ExcludedBelowMinValue)
		default:
			buys = append(buys, txn)
		}
	}

	if len(buys) == 0 {
		slog.Info("No qualifying purchases in window",
			"total_in", result.TotalIn,
			"excluded", result.Exclusions.Total())
		return result, nil
	}

	series, err := b.loadPriceSeries(ctx, buys)
	if err != nil {
		return nil, err
	}
	result.Prices = series

	for _, txn := range buys {
		event, reason := b.buildEvent(txn, series[txn.Ticker])
		if event == nil {
			result.Exclusions.Add(reason)
			continue
		}
		result.Events = append(result.Events, *event)
	}

	slog.Info("Constructed events",
		"total_in", result.TotalIn,
		"constructed", len(result.Events),
		"excluded", result.Exclusions.Total())

	return result, nil
}

// loadPriceSeries fetches every needed per-ticker series in one pass. The
// window extends past the last trade date far enough to cover the horizon
// in trading sessions, weekends and holidays included.
func (b *Builder) loadPriceSeries(ctx context.Context, buys []model.Transaction) (map[string]*model.PriceSeries, error) {
	minDate := buys[0].TradeDate
	maxDate := buys[0].TradeDate
	tickerSet := make(map[string]bool)
	for _, txn := range buys {
		if txn.TradeDate.Before(minDate) {
			minDate = txn.TradeDate
		}
		if txn.TradeDate.After(maxDate) {
			maxDate = txn.TradeDate
		}
		tickerSet[txn.Ticker] = true
	}

	tickers := make([]string, 0, len(tickerSet))
	for t := range tickerSet {
		tickers = append(tickers, t)
	}

	// Two calendar days per trading session plus slack covers any run of
	// weekends and exchange holidays inside the horizon.
	end := maxDate.AddDate(0, 0, b.config.Horizon*2+7)

	series, err := b.storage.GetPriceSeriesBulk(ctx, tickers, minDate, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load price series: %w", err)
	}
	return series, nil
}

// buildEvent resolves entry and exit prices for one purchase. A nil event
// means the transaction is excluded for the returned reason.
func (b *Builder) buildEvent(txn model.Transaction, prices *model.PriceSeries) (*model.Event, model.ExclusionReason) {
	if prices == nil || prices.Len() == 0 {
		return nil, model.ExcludedNoPriceSeries
	}

	// Entry aligns forward to the next available trading date, bounded by
	// the tolerance window.
	entryIdx, ok := prices.IndexOnOrAfter(txn.TradeDate)
	if !ok {
		return nil, model.ExcludedEntryGap
	}
	entryDate, entryPrice := prices.At(entryIdx)
	maxEntry := model.Midnight(txn.TradeDate).AddDate(0, 0, b.config.EntryToleranceDays)
	if entryDate.After(maxEntry) {
		return nil, model.ExcludedEntryGap
	}
	if entryPrice <= 0 {
		return nil, model.ExcludedBadPrice
	}

	// Exit is exactly Horizon trading sessions after the entry session.
	exitIdx := entryIdx + b.config.Horizon
	if exitIdx >= prices.Len() {
		return nil, model.ExcludedShortHistory
	}
	exitDate, exitPrice := prices.At(exitIdx)
	if exitPrice <= 0 {
		return nil, model.ExcludedBadPrice
	}

	return &model.Event{
		Transaction:   txn,
		EntryDate:     entryDate,
		EntryPrice:    entryPrice,
		ExitDate:      exitDate,
		ExitPrice:     exitPrice,
		ForwardReturn: exitPrice/entryPrice - 1.0,
	}, ""
}
