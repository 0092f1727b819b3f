package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// SEC Form 4 transaction codes we care about. The study restricts to
// open-market purchases; everything else is filtered out up front.
const (
	CodePurchase = "P"
	CodeSale     = "S"
)

// Transaction represents a single normalized insider filing record from
// the SEC Form 4 bulk data set.
type Transaction struct {
	FilingDate  time.Time
	TradeDate   time.Time
	ID          string // accession number + row sequence from NONDERIV_TRANS
	Accession   string
	IssuerCIK   string
	Ticker      string
	CompanyName string
	InsiderCIK  string
	InsiderName string
	InsiderRole string
	Code        string // SEC transaction code (P, S, A, M, ...)
	Ownership   string // D = direct, I = indirect
	Hash        string
	Shares      float64
	Price       float64
	ValueUSD    float64
	SharesAfter float64
}

// GenerateHash creates a unique hash for duplicate detection across
// re-imports of overlapping quarterly data sets.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%.4f:%.4f",
		t.Accession,
		t.Ticker,
		t.TradeDate.Format("2006-01-02"),
		t.InsiderCIK,
		t.Shares,
		t.Price)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// IsOpenMarketPurchase reports whether this is a Form 4 code P transaction.
func (t *Transaction) IsOpenMarketPurchase() bool {
	return t.Code == CodePurchase
}
