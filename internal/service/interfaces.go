// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/quantfold/insider-flow/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Insider transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionsInWindow(ctx context.Context, start, end time.Time) ([]model.Transaction, error)
	GetPurchasesByInsider(ctx context.Context, insiderCIK string, before time.Time) ([]model.Transaction, error)
	GetDistinctTickers(ctx context.Context) ([]string, error)
	GetTransactionCount(ctx context.Context) (int, error)

	// Price cache operations
	SavePrices(ctx context.Context, points []model.PricePoint) error
	GetPriceSeries(ctx context.Context, ticker string, start, end time.Time) (*model.PriceSeries, error)
	GetPriceSeriesBulk(ctx context.Context, tickers []string, start, end time.Time) (map[string]*model.PriceSeries, error)

	// Study result operations
	SaveRun(ctx context.Context, run *RunRecord, events []model.Event) (int64, error)
	GetLatestRun(ctx context.Context) (*RunRecord, []model.Event, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
}

// RunRecord captures the parameters and outcome of one study run.
type RunRecord struct {
	CreatedAt    time.Time
	StartDate    time.Time
	EndDate      time.Time
	ID           int64
	Threshold    string
	Percentile   float64
	MinValueUSD  float64
	Horizon      int
	TotalIn      int
	Constructed  int
	Included     int
	Excluded     map[model.ExclusionReason]int
	TotalReturn  float64
	HitRate      float64
	Sharpe       float64
	MaxDrawdown  float64
}

// ReportWriter exports study results to an external destination.
type ReportWriter interface {
	Write(ctx context.Context, run *RunRecord, events []model.Event) error
}

// RetryOptions configures retry behavior for operations that may fail transiently.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
