// Package form4 parses SEC insider-transaction bulk data sets into
// normalized transactions. Each quarterly set is a directory holding
// SUBMISSION.TSV, REPORTINGOWNER.TSV and NONDERIV_TRANS.TSV; rows join
// on accession number.
package form4

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/quantfold/insider-flow/internal/common"
	"github.com/quantfold/insider-flow/internal/model"
)

// secDateLayout is the date format used in SEC TSV exports, e.g. "01-Jan-2024".
const secDateLayout = "02-Jan-2006"

// Parser implements SEC bulk TSV parsing.
type Parser struct{}

// NewParser creates a new Form 4 bulk data parser.
func NewParser() *Parser {
	return &Parser{}
}

// Result holds the outcome of parsing one quarterly data set.
type Result struct {
	Transactions []model.Transaction
	Dropped      int // rows that violated the input schema
}

type submission struct {
	filingDate time.Time
	issuerCIK  string
	issuerName string
	ticker     string
}

type owner struct {
	cik  string
	name string
	role string
}

// ParseDir parses one quarterly directory into normalized transactions.
// A missing SUBMISSION.TSV or NONDERIV_TRANS.TSV is a structural failure;
// malformed individual rows are dropped, logged, and counted.
func (p *Parser) ParseDir(ctx context.Context, dir string) (*Result, error) {
	submissions, err := p.loadSubmissions(filepath.Join(dir, "SUBMISSION.TSV"))
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions from %s: %w", dir, err)
	}

	// Reporting owners are optional per the source data; transactions
	// without an owner row keep empty insider fields.
	owners, err := p.loadOwners(filepath.Join(dir, "REPORTINGOWNER.TSV"))
	if err != nil {
		slog.Warn("No reporting owner data; insider fields will be empty",
			"dir", dir,
			"error", err)
		owners = map[string]owner{}
	}

	result, err := p.loadTransactions(ctx, filepath.Join(dir, "NONDERIV_TRANS.TSV"), submissions, owners)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions from %s: %w", dir, err)
	}

	slog.Info("Parsed quarterly data set",
		"dir", dir,
		"transactions", len(result.Transactions),
		"dropped", result.Dropped)

	return result, nil
}

func (p *Parser) loadSubmissions(path string) (map[string]submission, error) {
	rows, header, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer rows.close()

	submissions := make(map[string]submission)
	for {
		record, err := rows.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("Skipping unreadable submission row", "error", err)
			continue
		}

		accession := header.get(record, "ACCESSION_NUMBER")
		if accession == "" {
			continue
		}

		filingDate, _ := parseSECDate(header.get(record, "FILING_DATE"))
		submissions[accession] = submission{
			filingDate: filingDate,
			issuerCIK:  header.get(record, "ISSUERCIK"),
			issuerName: header.get(record, "ISSUERNAME"),
			ticker:     strings.ToUpper(strings.TrimSpace(header.get(record, "ISSUERTRADINGSYMBOL"))),
		}
	}

	return submissions, nil
}

func (p *Parser) loadOwners(path string) (map[string]owner, error) {
	rows, header, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer rows.close()

	// One owner per accession; multi-owner filings keep the first row,
	// matching the source join.
	owners := make(map[string]owner)
	for {
		record, err := rows.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("Skipping unreadable owner row", "error", err)
			continue
		}

		accession := header.get(record, "ACCESSION_NUMBER")
		if accession == "" {
			continue
		}
		if _, seen := owners[accession]; seen {
			continue
		}

		owners[accession] = owner{
			cik:  header.get(record, "RPTOWNERCIK"),
			name: header.get(record, "RPTOWNERNAME"),
			role: header.get(record, "RPTOWNER_RELATIONSHIP"),
		}
	}

	return owners, nil
}

func (p *Parser) loadTransactions(ctx context.Context, path string, submissions map[string]submission, owners map[string]owner) (*Result, error) {
	rows, header, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer rows.close()

	result := &Result{}
	rowNum := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := rows.next()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			slog.Warn("Skipping unreadable transaction row", "row", rowNum, "error", err)
			result.Dropped++
			continue
		}

		txn, err := p.normalizeRow(header, record, rowNum, submissions, owners)
		if err != nil {
			slog.Debug("Dropping transaction row", "row", rowNum, "error", err)
			result.Dropped++
			continue
		}

		result.Transactions = append(result.Transactions, *txn)
	}

	return result, nil
}

// normalizeRow converts one NONDERIV_TRANS row into a model.Transaction,
// enforcing the required-field contract of the input schema.
func (p *Parser) normalizeRow(header headerIndex, record []string, rowNum int, submissions map[string]submission, owners map[string]owner) (*model.Transaction, error) {
	accession := header.get(record, "ACCESSION_NUMBER")
	if accession == "" {
		return nil, fmt.Errorf("%w: missing accession number", common.ErrSchemaViolation)
	}

	sub, ok := submissions[accession]
	if !ok {
		return nil, fmt.Errorf("%w: no submission for accession %s", common.ErrSchemaViolation, accession)
	}
	if sub.ticker == "" || sub.ticker == "NONE" {
		return nil, fmt.Errorf("%w: no trading symbol for accession %s", common.ErrSchemaViolation, accession)
	}

	tradeDate, err := parseSECDate(header.get(record, "TRANS_DATE"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad trade date: %v", common.ErrSchemaViolation, err)
	}

	shares, err := parseFloat(header.get(record, "TRANS_SHARES"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad share count: %v", common.ErrSchemaViolation, err)
	}

	price, err := parseFloat(header.get(record, "TRANS_PRICEPERSHARE"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad price per share: %v", common.ErrSchemaViolation, err)
	}

	code := strings.TrimSpace(header.get(record, "TRANS_CODE"))
	if code == "" {
		return nil, fmt.Errorf("%w: missing transaction code", common.ErrSchemaViolation)
	}

	id := header.get(record, "NONDERIV_TRANS_SK")
	if id == "" {
		id = strconv.Itoa(rowNum)
	}

	// Post-trade holdings are optional in the source data.
	sharesAfter, _ := parseFloat(header.get(record, "SHRS_OWND_FOLWNG_TRANS"))

	own := owners[accession]

	txn := &model.Transaction{
		ID:          accession + "-" + id,
		Accession:   accession,
		IssuerCIK:   sub.issuerCIK,
		Ticker:      sub.ticker,
		CompanyName: sub.issuerName,
		FilingDate:  sub.filingDate,
		TradeDate:   tradeDate,
		InsiderCIK:  own.cik,
		InsiderName: own.name,
		InsiderRole: own.role,
		Code:        code,
		Ownership:   header.get(record, "DIRECT_INDIRECT_OWNERSHIP"),
		Shares:      shares,
		Price:       price,
		ValueUSD:    shares * price,
		SharesAfter: sharesAfter,
	}
	txn.Hash = txn.GenerateHash()

	return txn, nil
}

// headerIndex maps TSV column names to positions.
type headerIndex map[string]int

func (h headerIndex) get(record []string, column string) string {
	idx, ok := h[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

type tsvRows struct {
	file   *os.File
	reader *csv.Reader
}

func (r *tsvRows) next() ([]string, error) {
	return r.reader.Read()
}

func (r *tsvRows) close() {
	_ = r.file.Close()
}

func openTSV(path string) (*tsvRows, headerIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(f)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headerRow, err := reader.Read()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	header := make(headerIndex, len(headerRow))
	for i, name := range headerRow {
		header[strings.ToUpper(strings.TrimSpace(name))] = i
	}

	return &tsvRows{file: f, reader: reader}, header, nil
}

func parseSECDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	t, err := time.Parse(secDateLayout, s)
	if err != nil {
		// Some exports use ISO dates
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return model.Midnight(t), nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(s, 64)
}
