// Package storage provides the data persistence layer for the insider study.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quantfold/insider-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidPricePoint  = errors.New("invalid price point")
	ErrInvalidRun         = errors.New("invalid study run")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Ticker == "" {
		return fmt.Errorf("%w: missing ticker", ErrInvalidTransaction)
	}
	if txn.TradeDate.IsZero() {
		return fmt.Errorf("%w: missing trade date", ErrInvalidTransaction)
	}
	if txn.Code == "" {
		return fmt.Errorf("%w: missing transaction code", ErrInvalidTransaction)
	}
	return nil
}

// validatePricePoints validates a slice of price points.
func validatePricePoints(points []model.PricePoint) error {
	if points == nil {
		return fmt.Errorf("%w: points", ErrNilParameter)
	}
	if len(points) == 0 {
		return fmt.Errorf("%w: points", ErrEmptySlice)
	}

	for i, p := range points {
		if p.Ticker == "" {
			return fmt.Errorf("price point at index %d: %w: missing ticker", i, ErrInvalidPricePoint)
		}
		if p.Date.IsZero() {
			return fmt.Errorf("price point at index %d: %w: missing date", i, ErrInvalidPricePoint)
		}
	}
	return nil
}
