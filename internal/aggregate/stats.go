// Package aggregate reduces the event set into the study's two views:
// per-bucket distributional statistics and the calendar-time equity curve.
package aggregate

import (
	"math"
	"sort"

	"github.com/quantfold/insider-flow/internal/model"
)

// BucketStats summarizes forward returns for one size bucket.
type BucketStats struct {
	Bucket   model.SizeBucket
	Count    int
	Mean     float64
	Median   float64
	StdDev   float64
	Skewness float64
}

// Distribution partitions events by size bucket and computes summary
// statistics per partition. Every event lands in exactly one partition,
// so the counts always sum to len(events).
func Distribution(events []model.Event) []BucketStats {
	byBucket := make(map[model.SizeBucket][]float64)
	for _, ev := range events {
		byBucket[ev.Bucket] = append(byBucket[ev.Bucket], ev.ForwardReturn)
	}

	var stats []BucketStats
	for _, bucket := range []model.SizeBucket{model.BucketNormal, model.BucketLarge} {
		returns, ok := byBucket[bucket]
		if !ok {
			continue
		}
		stats = append(stats, BucketStats{
			Bucket:   bucket,
			Count:    len(returns),
			Mean:     mean(returns),
			Median:   median(returns),
			StdDev:   stdDev(returns),
			Skewness: skewness(returns),
		})
	}
	return stats
}

// StrategyStats holds the headline numbers for the whole event set.
type StrategyStats struct {
	NumTrades      int
	TotalReturn    float64
	AvgTradeReturn float64
	HitRate        float64
	// Sharpe is the per-trade mean over stddev scaled to an annual figure
	// by the number of non-overlapping horizon windows in a trading year.
	Sharpe float64
}

// Strategy computes headline stats over all included events.
func Strategy(events []model.Event, horizon int) StrategyStats {
	if len(events) == 0 {
		return StrategyStats{}
	}

	returns := make([]float64, len(events))
	wins := 0
	compounded := 1.0
	for i, ev := range events {
		returns[i] = ev.ForwardReturn
		if ev.ForwardReturn > 0 {
			wins++
		}
		compounded *= 1 + ev.ForwardReturn
	}

	stats := StrategyStats{
		NumTrades:      len(events),
		TotalReturn:    compounded - 1.0,
		AvgTradeReturn: mean(returns),
		HitRate:        float64(wins) / float64(len(events)),
	}

	if sd := stdDev(returns); sd > 0 && horizon > 0 {
		stats.Sharpe = stats.AvgTradeReturn / sd * math.Sqrt(252.0/float64(horizon))
	}

	return stats
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// stdDev is the sample standard deviation (Bessel's correction).
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// skewness is the adjusted Fisher-Pearson sample skewness, matching the
// convention of most statistics packages. Undefined below three samples.
func skewness(values []float64) float64 {
	n := float64(len(values))
	if n < 3 {
		return 0
	}
	sd := stdDev(values)
	if sd == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := (v - m) / sd
		sum += d * d * d
	}
	return n / ((n - 1) * (n - 2)) * sum
}
