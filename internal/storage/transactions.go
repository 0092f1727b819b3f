package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/quantfold/insider-flow/internal/model"
)

// SaveTransactions saves multiple insider transactions to the database.
// Re-imports of overlapping quarterly data sets are deduplicated by hash.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	// Validate inputs
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO insider_transactions (
			id, hash, accession_number, issuer_cik, ticker, company_name,
			filing_date, trade_date, insider_cik, insider_name, insider_role,
			transaction_type, shares, price, value_usd, shares_after, direct_or_indirect
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		// Generate hash if not already set
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}

		_, err = stmt.ExecContext(ctx,
			txn.ID,
			txn.Hash,
			txn.Accession,
			txn.IssuerCIK,
			strings.ToUpper(strings.TrimSpace(txn.Ticker)),
			txn.CompanyName,
			txn.FilingDate,
			model.Midnight(txn.TradeDate),
			txn.InsiderCIK,
			txn.InsiderName,
			txn.InsiderRole,
			txn.Code,
			txn.Shares,
			txn.Price,
			txn.ValueUSD,
			txn.SharesAfter,
			txn.Ownership,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// GetTransactionsInWindow retrieves all transactions with trade dates in
// [start, end), ordered by trade date. The study applies the transaction
// type and minimum-value filters itself so every exclusion can be counted.
func (s *SQLiteStorage) GetTransactionsInWindow(ctx context.Context, start, end time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %v to %v", ErrInvalidDateRange, start, end)
	}

	query := `
		SELECT id, hash, accession_number, issuer_cik, ticker, company_name,
		       filing_date, trade_date, insider_cik, insider_name, insider_role,
		       transaction_type, shares, price, value_usd, shares_after, direct_or_indirect
		FROM insider_transactions
		WHERE trade_date >= ?
		  AND trade_date < ?
		ORDER BY trade_date, id
	`

	rows, err := s.db.QueryContext(ctx, query, model.Midnight(start), model.Midnight(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetPurchasesByInsider retrieves an insider's open-market purchases with
// trade dates strictly before the given date, across all tickers. This is
// the classification history snapshot; the strict inequality is what keeps
// the classifier free of look-ahead.
func (s *SQLiteStorage) GetPurchasesByInsider(ctx context.Context, insiderCIK string, before time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(insiderCIK, "insiderCIK"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, hash, accession_number, issuer_cik, ticker, company_name,
		       filing_date, trade_date, insider_cik, insider_name, insider_role,
		       transaction_type, shares, price, value_usd, shares_after, direct_or_indirect
		FROM insider_transactions
		WHERE insider_cik = ?
		  AND transaction_type = ?
		  AND trade_date < ?
		ORDER BY trade_date, id
	`

	rows, err := s.db.QueryContext(ctx, query, insiderCIK, model.CodePurchase, model.Midnight(before))
	if err != nil {
		return nil, fmt.Errorf("failed to query insider history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetDistinctTickers returns every ticker present in insider_transactions,
// sorted alphabetically.
func (s *SQLiteStorage) GetDistinctTickers(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ticker FROM insider_transactions
		WHERE ticker != ''
		ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}

	return tickers, rows.Err()
}

// GetTransactionCount returns the total number of stored transactions.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM insider_transactions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		var filingDate, tradeDate sql.NullTime
		err := rows.Scan(
			&txn.ID,
			&txn.Hash,
			&txn.Accession,
			&txn.IssuerCIK,
			&txn.Ticker,
			&txn.CompanyName,
			&filingDate,
			&tradeDate,
			&txn.InsiderCIK,
			&txn.InsiderName,
			&txn.InsiderRole,
			&txn.Code,
			&txn.Shares,
			&txn.Price,
			&txn.ValueUSD,
			&txn.SharesAfter,
			&txn.Ownership,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if filingDate.Valid {
			txn.FilingDate = filingDate.Time
		}
		if tradeDate.Valid {
			txn.TradeDate = tradeDate.Time
		}
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}
