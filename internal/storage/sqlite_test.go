package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantfold/insider-flow/internal/common"
	"github.com/quantfold/insider-flow/internal/model"
	"github.com/quantfold/insider-flow/internal/service"
)

func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper to create a purchase with sensible defaults.
func makePurchase(id, ticker, insiderCIK string, tradeDate time.Time, valueUSD float64) model.Transaction {
	txn := model.Transaction{
		ID:          id,
		Accession:   "acc-" + id,
		Ticker:      ticker,
		CompanyName: ticker + " Inc",
		TradeDate:   tradeDate,
		FilingDate:  tradeDate.AddDate(0, 0, 2),
		InsiderCIK:  insiderCIK,
		InsiderName: "Insider " + insiderCIK,
		Code:        model.CodePurchase,
		Ownership:   "D",
		Shares:      valueUSD / 10,
		Price:       10,
		ValueUSD:    valueUSD,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

func TestSQLiteStorage_TransactionDeduplication(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tradeDate := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	base := makePurchase("txn-1", "ACME", "cik-1", tradeDate, 50_000)

	if err := store.SaveTransactions(ctx, []model.Transaction{base}); err != nil {
		t.Fatalf("Failed to save initial transaction: %v", err)
	}

	count, err := store.GetTransactionCount(ctx)
	if err != nil {
		t.Fatalf("Failed to count transactions: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 transaction, got %d", count)
	}

	// Try to save duplicate with different ID but same hash (should be skipped)
	dup := base
	dup.ID = "txn-1-reimport"

	if err := store.SaveTransactions(ctx, []model.Transaction{dup}); err != nil {
		t.Fatalf("Failed to save duplicate transaction: %v", err)
	}

	count, err = store.GetTransactionCount(ctx)
	if err != nil {
		t.Fatalf("Failed to count transactions: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 transaction after duplicate save, got %d", count)
	}

	// A genuinely different transaction is saved
	diff := makePurchase("txn-2", "ACME", "cik-1", tradeDate, 75_000)
	if err := store.SaveTransactions(ctx, []model.Transaction{diff}); err != nil {
		t.Fatalf("Failed to save different transaction: %v", err)
	}

	count, err = store.GetTransactionCount(ctx)
	if err != nil {
		t.Fatalf("Failed to count transactions: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 transactions after different save, got %d", count)
	}
}

func TestSQLiteStorage_GetTransactionsInWindow(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := []model.Transaction{
		makePurchase("before", "ACME", "cik-1", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), 20_000),
		makePurchase("on-start", "ACME", "cik-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 30_000),
		makePurchase("inside", "BOLT", "cik-2", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), 40_000),
		makePurchase("on-end", "BOLT", "cik-2", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 50_000),
	}
	// A sale inside the window must still come back: the study counts it
	// as an exclusion rather than silently dropping it.
	sale := makePurchase("sale", "ACME", "cik-1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 60_000)
	sale.Code = model.CodeSale
	sale.Hash = sale.GenerateHash()
	txns = append(txns, sale)

	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	got, err := store.GetTransactionsInWindow(ctx,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetTransactionsInWindow failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("Expected 3 transactions in window, got %d", len(got))
	}
	// Window start is inclusive, end is exclusive
	if got[0].ID != "on-start" {
		t.Errorf("First transaction = %s, want on-start", got[0].ID)
	}
	for _, txn := range got {
		if txn.ID == "before" || txn.ID == "on-end" {
			t.Errorf("Transaction %s should be outside the window", txn.ID)
		}
	}
}

func TestSQLiteStorage_GetPurchasesByInsider(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	txns := []model.Transaction{
		makePurchase("early", "ACME", "cik-1", cutoff.AddDate(0, -3, 0), 10_000),
		// Purchases by the same insider in a different ticker still count
		makePurchase("other-ticker", "BOLT", "cik-1", cutoff.AddDate(0, -1, 0), 25_000),
		makePurchase("same-day", "ACME", "cik-1", cutoff, 99_000),
		makePurchase("later", "ACME", "cik-1", cutoff.AddDate(0, 1, 0), 88_000),
		makePurchase("other-insider", "ACME", "cik-2", cutoff.AddDate(0, -2, 0), 33_000),
	}
	sale := makePurchase("prior-sale", "ACME", "cik-1", cutoff.AddDate(0, -2, 0), 44_000)
	sale.Code = model.CodeSale
	sale.Hash = sale.GenerateHash()
	txns = append(txns, sale)

	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	history, err := store.GetPurchasesByInsider(ctx, "cik-1", cutoff)
	if err != nil {
		t.Fatalf("GetPurchasesByInsider failed: %v", err)
	}

	if len(history) != 2 {
		t.Fatalf("Expected 2 prior purchases, got %d", len(history))
	}
	for _, txn := range history {
		if txn.InsiderCIK != "cik-1" {
			t.Errorf("History contains other insider: %s", txn.InsiderCIK)
		}
		if txn.Code != model.CodePurchase {
			t.Errorf("History contains non-purchase code %s", txn.Code)
		}
		// Strict inequality: a same-day purchase never counts
		if !txn.TradeDate.Before(cutoff) {
			t.Errorf("History contains non-prior trade date %v", txn.TradeDate)
		}
	}
}

func TestSQLiteStorage_GetDistinctTickers(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tradeDate := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	txns := []model.Transaction{
		makePurchase("a1", "ZETA", "cik-1", tradeDate, 10_000),
		makePurchase("a2", "ZETA", "cik-2", tradeDate.AddDate(0, 0, 1), 12_000),
		makePurchase("a3", "acme", "cik-3", tradeDate, 14_000),
	}
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	tickers, err := store.GetDistinctTickers(ctx)
	if err != nil {
		t.Fatalf("GetDistinctTickers failed: %v", err)
	}

	// Tickers are uppercased on save and returned sorted
	want := []string{"ACME", "ZETA"}
	if len(tickers) != len(want) {
		t.Fatalf("Expected %d tickers, got %d: %v", len(want), len(tickers), tickers)
	}
	for i := range want {
		if tickers[i] != want[i] {
			t.Errorf("tickers[%d] = %s, want %s", i, tickers[i], want[i])
		}
	}
}

func TestSQLiteStorage_PriceRoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	points := make([]model.PricePoint, 0, 5)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		points = append(points, model.PricePoint{
			Ticker:   "ACME",
			Date:     start.AddDate(0, 0, i),
			AdjClose: 100 + float64(i),
		})
	}

	if err := store.SavePrices(ctx, points); err != nil {
		t.Fatalf("SavePrices failed: %v", err)
	}

	series, err := store.GetPriceSeries(ctx, "ACME", start, start.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("GetPriceSeries failed: %v", err)
	}
	if series.Len() != 5 {
		t.Fatalf("series.Len() = %d, want 5", series.Len())
	}

	// Re-saving the same date updates the value in place
	if err := store.SavePrices(ctx, []model.PricePoint{
		{Ticker: "ACME", Date: start, AdjClose: 99.5},
	}); err != nil {
		t.Fatalf("SavePrices upsert failed: %v", err)
	}

	series, err = store.GetPriceSeries(ctx, "ACME", start, start.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("GetPriceSeries after upsert failed: %v", err)
	}
	if series.Len() != 5 {
		t.Fatalf("series.Len() after upsert = %d, want 5", series.Len())
	}
	_, close := series.At(0)
	if close != 99.5 {
		t.Errorf("upserted close = %v, want 99.5", close)
	}
}

func TestSQLiteStorage_GetPriceSeriesBulk(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	var points []model.PricePoint
	for _, ticker := range []string{"ACME", "BOLT", "CRUX"} {
		for i := 0; i < 3; i++ {
			points = append(points, model.PricePoint{
				Ticker:   ticker,
				Date:     start.AddDate(0, 0, i),
				AdjClose: 10 + float64(i),
			})
		}
	}
	if err := store.SavePrices(ctx, points); err != nil {
		t.Fatalf("SavePrices failed: %v", err)
	}

	series, err := store.GetPriceSeriesBulk(ctx, []string{"ACME", "CRUX", "MISSING"}, start, start.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("GetPriceSeriesBulk failed: %v", err)
	}

	if len(series) != 2 {
		t.Fatalf("Expected series for 2 tickers, got %d", len(series))
	}
	if series["BOLT"] != nil {
		t.Error("BOLT was not requested but came back anyway")
	}
	if series["ACME"] == nil || series["ACME"].Len() != 3 {
		t.Error("ACME series missing or wrong length")
	}
}

func TestSQLiteStorage_SaveAndLoadRun(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// No runs yet
	_, _, err := store.GetLatestRun(ctx)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("GetLatestRun on empty db = %v, want ErrNotFound", err)
	}

	tradeDate := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{
			Transaction:   makePurchase("ev-1", "ACME", "cik-1", tradeDate, 50_000),
			EntryDate:     tradeDate,
			EntryPrice:    50,
			ExitDate:      tradeDate.AddDate(0, 0, 14),
			ExitPrice:     55,
			ForwardReturn: 0.10,
			Bucket:        model.BucketLarge,
		},
		{
			Transaction:   makePurchase("ev-2", "BOLT", "cik-2", tradeDate.AddDate(0, 0, 1), 20_000),
			EntryDate:     tradeDate.AddDate(0, 0, 1),
			EntryPrice:    20,
			ExitDate:      tradeDate.AddDate(0, 0, 15),
			ExitPrice:     19,
			ForwardReturn: -0.05,
			Bucket:        model.BucketNormal,
		},
	}

	run := &service.RunRecord{
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Threshold:   "mean",
		MinValueUSD: 10_000,
		Horizon:     10,
		TotalIn:     10,
		Constructed: 2,
		Included:    2,
		Excluded: map[model.ExclusionReason]int{
			model.ExcludedNotPurchase:   5,
			model.ExcludedNoPriceSeries: 3,
		},
		TotalReturn: 0.045,
		HitRate:     0.5,
		Sharpe:      1.2,
		MaxDrawdown: -0.08,
	}

	runID, err := store.SaveRun(ctx, run, events)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if runID <= 0 {
		t.Fatalf("SaveRun returned non-positive ID %d", runID)
	}

	loaded, loadedEvents, err := store.GetLatestRun(ctx)
	if err != nil {
		t.Fatalf("GetLatestRun failed: %v", err)
	}

	if loaded.ID != runID {
		t.Errorf("loaded.ID = %d, want %d", loaded.ID, runID)
	}
	if loaded.Threshold != "mean" {
		t.Errorf("loaded.Threshold = %s, want mean", loaded.Threshold)
	}
	if loaded.Excluded[model.ExcludedNotPurchase] != 5 {
		t.Errorf("loaded exclusions = %v, want not_open_market_purchase: 5", loaded.Excluded)
	}
	if len(loadedEvents) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(loadedEvents))
	}
	if loadedEvents[0].Transaction.Ticker != "ACME" {
		t.Errorf("First event ticker = %s, want ACME", loadedEvents[0].Transaction.Ticker)
	}
	if loadedEvents[0].Bucket != model.BucketLarge {
		t.Errorf("First event bucket = %s, want %s", loadedEvents[0].Bucket, model.BucketLarge)
	}

	// A second run becomes the latest
	run2 := *run
	run2.Threshold = "percentile_0.75"
	run2ID, err := store.SaveRun(ctx, &run2, nil)
	if err != nil {
		t.Fatalf("SaveRun (second) failed: %v", err)
	}
	latest, latestEvents, err := store.GetLatestRun(ctx)
	if err != nil {
		t.Fatalf("GetLatestRun (second) failed: %v", err)
	}
	if latest.ID != run2ID {
		t.Errorf("latest.ID = %d, want %d", latest.ID, run2ID)
	}
	if len(latestEvents) != 0 {
		t.Errorf("latest run should have no events, got %d", len(latestEvents))
	}
}

func TestSQLiteStorage_SaveTransactionsValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*model.Transaction)
		wantErr bool
	}{
		{"valid transaction", func(_ *model.Transaction) {}, false},
		{"missing id", func(txn *model.Transaction) { txn.ID = "" }, true},
		{"missing ticker", func(txn *model.Transaction) { txn.Ticker = "" }, true},
		{"missing trade date", func(txn *model.Transaction) { txn.TradeDate = time.Time{} }, true},
		{"missing code", func(txn *model.Transaction) { txn.Code = "" }, true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := makePurchase(fmt.Sprintf("v-%d", i), "ACME", "cik-1",
				time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 15_000+float64(i))
			tt.mutate(&txn)

			err := store.SaveTransactions(ctx, []model.Transaction{txn})
			if (err != nil) != tt.wantErr {
				t.Errorf("SaveTransactions error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
