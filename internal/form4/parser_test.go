package form4

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantfold/insider-flow/internal/model"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFixture(t, dir, "SUBMISSION.TSV",
		"ACCESSION_NUMBER\tFILING_DATE\tISSUERCIK\tISSUERNAME\tISSUERTRADINGSYMBOL\n"+
			"acc-1\t17-Jan-2024\t0000320193\tApple Inc\taapl\n"+
			"acc-2\t05-Feb-2024\t0001067983\tBerkshire Hathaway\tBRK.B\n"+
			"acc-3\t06-Feb-2024\t0009999999\tDelisted Corp\tNONE\n")

	writeFixture(t, dir, "REPORTINGOWNER.TSV",
		"ACCESSION_NUMBER\tRPTOWNERCIK\tRPTOWNERNAME\tRPTOWNER_RELATIONSHIP\n"+
			"acc-1\t0001214128\tCook Timothy D\tOfficer\n"+
			"acc-1\t0009999001\tSecond Owner\tDirector\n"+
			"acc-2\t0000898461\tBuffett Warren E\tDirector\n")

	writeFixture(t, dir, "NONDERIV_TRANS.TSV",
		"ACCESSION_NUMBER\tNONDERIV_TRANS_SK\tTRANS_DATE\tTRANS_CODE\tTRANS_SHARES\tTRANS_PRICEPERSHARE\tSHRS_OWND_FOLWNG_TRANS\tDIRECT_INDIRECT_OWNERSHIP\n"+
			"acc-1\t1001\t15-Jan-2024\tP\t1000\t185.50\t51000\tD\n"+
			"acc-1\t1002\t15-Jan-2024\tS\t500\t186.00\t50500\tD\n"+
			"acc-2\t2001\t2024-02-01\tP\t250\t400.25\t1250\tI\n"+
			// Dropped rows: no symbol, bad date, bad shares, missing code
			"acc-3\t3001\t01-Feb-2024\tP\t10\t5.00\t10\tD\n"+
			"acc-1\t1003\tnot-a-date\tP\t10\t5.00\t10\tD\n"+
			"acc-1\t1004\t16-Jan-2024\tP\tabc\t5.00\t10\tD\n"+
			"acc-1\t1005\t16-Jan-2024\t\t10\t5.00\t10\tD\n")

	return dir
}

func TestParser_ParseDir(t *testing.T) {
	parser := NewParser()
	result, err := parser.ParseDir(context.Background(), fixtureDir(t))
	if err != nil {
		t.Fatalf("ParseDir failed: %v", err)
	}

	if len(result.Transactions) != 3 {
		t.Fatalf("Expected 3 transactions, got %d", len(result.Transactions))
	}
	if result.Dropped != 4 {
		t.Errorf("Dropped = %d, want 4", result.Dropped)
	}

	byID := make(map[string]model.Transaction)
	for _, txn := range result.Transactions {
		byID[txn.ID] = txn
	}

	buy, ok := byID["acc-1-1001"]
	if !ok {
		t.Fatal("Missing transaction acc-1-1001")
	}
	if buy.Ticker != "AAPL" {
		t.Errorf("Ticker = %s, want AAPL (uppercased)", buy.Ticker)
	}
	if buy.CompanyName != "Apple Inc" {
		t.Errorf("CompanyName = %s, want Apple Inc", buy.CompanyName)
	}
	if !buy.TradeDate.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("TradeDate = %v, want 2024-01-15", buy.TradeDate)
	}
	if !buy.FilingDate.Equal(time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("FilingDate = %v, want 2024-01-17", buy.FilingDate)
	}
	// Multi-owner filings keep the first owner row
	if buy.InsiderCIK != "0001214128" || buy.InsiderName != "Cook Timothy D" {
		t.Errorf("Insider = %s/%s, want first owner row", buy.InsiderCIK, buy.InsiderName)
	}
	if !buy.IsOpenMarketPurchase() {
		t.Error("acc-1-1001 should be an open-market purchase")
	}
	if buy.ValueUSD != 1000*185.50 {
		t.Errorf("ValueUSD = %v, want shares * price = %v", buy.ValueUSD, 1000*185.50)
	}
	if buy.SharesAfter != 51000 {
		t.Errorf("SharesAfter = %v, want 51000", buy.SharesAfter)
	}
	if buy.Hash == "" {
		t.Error("Hash should be populated")
	}

	sale, ok := byID["acc-1-1002"]
	if !ok {
		t.Fatal("Missing transaction acc-1-1002")
	}
	if sale.IsOpenMarketPurchase() {
		t.Error("acc-1-1002 is a sale, not a purchase")
	}

	// ISO trade dates are accepted
	iso, ok := byID["acc-2-2001"]
	if !ok {
		t.Fatal("Missing transaction acc-2-2001")
	}
	if !iso.TradeDate.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ISO TradeDate = %v, want 2024-02-01", iso.TradeDate)
	}
	if iso.Ticker != "BRK.B" {
		t.Errorf("Ticker = %s, want BRK.B", iso.Ticker)
	}
	if iso.Ownership != "I" {
		t.Errorf("Ownership = %s, want I", iso.Ownership)
	}
}

func TestParser_ParseDirMissingOwners(t *testing.T) {
	dir := t.TempDir()

	writeFixture(t, dir, "SUBMISSION.TSV",
		"ACCESSION_NUMBER\tFILING_DATE\tISSUERCIK\tISSUERNAME\tISSUERTRADINGSYMBOL\n"+
			"acc-1\t17-Jan-2024\t0000320193\tApple Inc\tAAPL\n")
	writeFixture(t, dir, "NONDERIV_TRANS.TSV",
		"ACCESSION_NUMBER\tNONDERIV_TRANS_SK\tTRANS_DATE\tTRANS_CODE\tTRANS_SHARES\tTRANS_PRICEPERSHARE\n"+
			"acc-1\t1001\t15-Jan-2024\tP\t1000\t185.50\n")

	parser := NewParser()
	result, err := parser.ParseDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("ParseDir without REPORTINGOWNER.TSV failed: %v", err)
	}

	if len(result.Transactions) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(result.Transactions))
	}
	if result.Transactions[0].InsiderCIK != "" {
		t.Errorf("InsiderCIK = %s, want empty without owner data", result.Transactions[0].InsiderCIK)
	}
}

func TestParser_ParseDirMissingSubmissions(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "NONDERIV_TRANS.TSV",
		"ACCESSION_NUMBER\tTRANS_DATE\tTRANS_CODE\tTRANS_SHARES\tTRANS_PRICEPERSHARE\n"+
			"acc-1\t15-Jan-2024\tP\t1000\t185.50\n")

	parser := NewParser()
	if _, err := parser.ParseDir(context.Background(), dir); err == nil {
		t.Fatal("ParseDir without SUBMISSION.TSV should fail")
	}
}

func TestParseSECDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"15-Jan-2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{" 15-Jan-2024 ", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"Jan 15 2024", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := parseSECDate(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSECDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("parseSECDate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
