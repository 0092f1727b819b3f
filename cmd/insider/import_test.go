package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantfold/insider-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportGlobExpansion(t *testing.T) {
	tempDir := t.TempDir()

	// Two quarterly data set directories plus a stray file
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "2024q1_form345"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "2024q2_form345"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("x"), 0644))

	matches, err := filepath.Glob(filepath.Join(tempDir, "2024q*_form345"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	// A pattern with no matches falls back to a direct stat
	direct := filepath.Join(tempDir, "2024q1_form345")
	matches, err = filepath.Glob(direct)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	info, err := os.Stat(matches[0])
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestImportCrossQuarterDeduplication(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	txn := func(accession string, shares float64) model.Transaction {
		tx := model.Transaction{
			ID:         accession + "-0",
			Accession:  accession,
			Ticker:     "ACME",
			TradeDate:  date,
			InsiderCIK: "0001234567",
			Code:       model.CodePurchase,
			Shares:     shares,
			Price:      10,
			ValueUSD:   shares * 10,
		}
		tx.Hash = tx.GenerateHash()
		return tx
	}

	// The same filing shows up in two overlapping quarterly archives
	q1 := []model.Transaction{txn("acc-1", 1000), txn("acc-2", 500)}
	q2 := []model.Transaction{txn("acc-1", 1000), txn("acc-3", 250)}

	seen := make(map[string]bool)
	var unique []model.Transaction
	duplicates := 0
	for _, batch := range [][]model.Transaction{q1, q2} {
		for _, tx := range batch {
			if seen[tx.Hash] {
				duplicates++
				continue
			}
			seen[tx.Hash] = true
			unique = append(unique, tx)
		}
	}

	assert.Len(t, unique, 3)
	assert.Equal(t, 1, duplicates)
}

func TestStudyFlagDefaults(t *testing.T) {
	cmd := studyCmd()

	threshold, err := cmd.Flags().GetString("threshold")
	require.NoError(t, err)
	assert.Equal(t, "mean", threshold)

	percentile, err := cmd.Flags().GetFloat64("percentile")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, percentile, 1e-9)

	horizon, err := cmd.Flags().GetInt("horizon")
	require.NoError(t, err)
	assert.Equal(t, 10, horizon)

	output, err := cmd.Flags().GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "results", output)
}
