// Package classify labels events large or normal by comparing each
// purchase against the same insider's own prior purchase-value history.
// History is scoped per insider across all tickers: conviction is a
// property of the person's wallet, not of one position.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/quantfold/insider-flow/internal/model"
)

// Thresholder is the single pure function that turns a value and a
// history snapshot into a large/normal decision. Strategies are
// injectable so the research hypothesis can vary without touching
// aggregation.
type Thresholder interface {
	Name() string
	IsLarge(value float64, history []float64) bool
}

// MeanThreshold labels a purchase large when its value strictly exceeds
// the mean of the insider's prior purchase values.
type MeanThreshold struct{}

// Name identifies the strategy in run records and summaries.
func (MeanThreshold) Name() string { return "mean" }

// IsLarge implements Thresholder.
func (MeanThreshold) IsLarge(value float64, history []float64) bool {
	if len(history) == 0 {
		return false
	}
	sum := 0.0
	for _, v := range history {
		sum += v
	}
	return value > sum/float64(len(history))
}

// PercentileThreshold labels a purchase large when its value is at or
// above the given percentile of the insider's prior purchase values.
type PercentileThreshold struct {
	Percentile float64
}

// Name identifies the strategy in run records and summaries.
func (t PercentileThreshold) Name() string {
	return fmt.Sprintf("percentile_%.2f", t.Percentile)
}

// IsLarge implements Thresholder.
func (t PercentileThreshold) IsLarge(value float64, history []float64) bool {
	if len(history) == 0 {
		return false
	}
	return value >= Quantile(history, t.Percentile)
}

// Quantile computes the q-th quantile (0..1) of values with linear
// interpolation between order statistics.
func Quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// NewThresholder builds a strategy from its configured name.
func NewThresholder(name string, percentile float64) (Thresholder, error) {
	switch name {
	case "mean":
		return MeanThreshold{}, nil
	case "percentile":
		if percentile <= 0 || percentile >= 1 {
			return nil, fmt.Errorf("percentile must be in (0, 1), got %v", percentile)
		}
		return PercentileThreshold{Percentile: percentile}, nil
	default:
		return nil, fmt.Errorf("unknown threshold strategy: %s", name)
	}
}

// HistorySource provides an insider's open-market purchases with trade
// dates strictly before a given date.
type HistorySource interface {
	GetPurchasesByInsider(ctx context.Context, insiderCIK string, before time.Time) ([]model.Transaction, error)
}

// Classifier labels events against insider purchase history.
type Classifier struct {
	source    HistorySource
	threshold Thresholder
	// cache avoids refetching the same (insider, date) snapshot when one
	// filing produces several events.
	cache map[string][]float64
}

// NewClassifier creates a classifier using the given history source and
// threshold strategy.
func NewClassifier(source HistorySource, threshold Thresholder) *Classifier {
	return &Classifier{
		source:    source,
		threshold: threshold,
		cache:     make(map[string][]float64),
	}
}

// Threshold returns the active strategy.
func (c *Classifier) Threshold() Thresholder {
	return c.threshold
}

// Classify labels every event in place and records the history snapshot
// used for the decision. A first-ever purchase (or an insider with no
// identifier) has no history and is always normal.
func (c *Classifier) Classify(ctx context.Context, events []model.Event) error {
	large := 0
	for i := range events {
		history, err := c.historyFor(ctx, &events[i].Transaction)
		if err != nil {
			return err
		}

		events[i].PriorValues = history
		if c.threshold.IsLarge(events[i].Transaction.ValueUSD, history) {
			events[i].Bucket = model.BucketLarge
			large++
		} else {
			events[i].Bucket = model.BucketNormal
		}
	}

	slog.Info("Classified events",
		"threshold", c.threshold.Name(),
		"large", large,
		"normal", len(events)-large)

	return nil
}

// historyFor loads the strictly-prior purchase values for a transaction's
// insider as of its trade date. The strict cutoff is what rules out
// look-ahead: a same-day purchase never counts toward its own threshold.
func (c *Classifier) historyFor(ctx context.Context, txn *model.Transaction) ([]float64, error) {
	if txn.InsiderCIK == "" {
		return nil, nil
	}

	key := txn.InsiderCIK + "|" + txn.TradeDate.Format("2006-01-02")
	if cached, ok := c.cache[key]; ok {
		return cached, nil
	}

	prior, err := c.source.GetPurchasesByInsider(ctx, txn.InsiderCIK, txn.TradeDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for insider %s: %w", txn.InsiderCIK, err)
	}

	values := make([]float64, 0, len(prior))
	for _, p := range prior {
		values = append(values, p.ValueUSD)
	}

	c.cache[key] = values
	return values, nil
}
