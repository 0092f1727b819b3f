package aggregate

import (
	"math"
	"testing"

	"github.com/quantfold/insider-flow/internal/model"
)

func eventWith(bucket model.SizeBucket, forwardReturn float64) model.Event {
	return model.Event{Bucket: bucket, ForwardReturn: forwardReturn}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestDistribution(t *testing.T) {
	events := []model.Event{
		eventWith(model.BucketNormal, 0.10),
		eventWith(model.BucketNormal, -0.10),
		eventWith(model.BucketNormal, 0.30),
		eventWith(model.BucketLarge, 0.05),
		eventWith(model.BucketLarge, 0.15),
	}

	stats := Distribution(events)
	if len(stats) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(stats))
	}

	// Normal comes first, large second
	normal, large := stats[0], stats[1]
	if normal.Bucket != model.BucketNormal || large.Bucket != model.BucketLarge {
		t.Fatalf("Bucket order = %s, %s", normal.Bucket, large.Bucket)
	}

	if normal.Count != 3 || large.Count != 2 {
		t.Errorf("Counts = %d/%d, want 3/2", normal.Count, large.Count)
	}

	// Counts partition the event set
	if normal.Count+large.Count != len(events) {
		t.Errorf("Bucket counts sum to %d, want %d", normal.Count+large.Count, len(events))
	}

	approx(t, "normal mean", normal.Mean, 0.10)
	approx(t, "normal median", normal.Median, 0.10)
	approx(t, "normal stddev", normal.StdDev, 0.2)
	approx(t, "large mean", large.Mean, 0.10)

	// Below three samples skewness is defined as zero
	approx(t, "large skewness", large.Skewness, 0)
}

func TestDistribution_SingleBucket(t *testing.T) {
	events := []model.Event{
		eventWith(model.BucketLarge, 0.05),
	}

	stats := Distribution(events)
	if len(stats) != 1 {
		t.Fatalf("Expected 1 bucket, got %d", len(stats))
	}
	if stats[0].Bucket != model.BucketLarge {
		t.Errorf("Bucket = %s, want %s", stats[0].Bucket, model.BucketLarge)
	}
	// Single observation: no spread
	approx(t, "stddev", stats[0].StdDev, 0)
}

func TestDistribution_Empty(t *testing.T) {
	if stats := Distribution(nil); len(stats) != 0 {
		t.Errorf("Distribution(nil) = %v, want empty", stats)
	}
}

func TestStrategy(t *testing.T) {
	events := []model.Event{
		eventWith(model.BucketNormal, 0.10),
		eventWith(model.BucketLarge, -0.05),
		eventWith(model.BucketNormal, 0.20),
	}

	stats := Strategy(events, 10)

	if stats.NumTrades != 3 {
		t.Errorf("NumTrades = %d, want 3", stats.NumTrades)
	}
	// 1.10 * 0.95 * 1.20 - 1
	approx(t, "TotalReturn", stats.TotalReturn, 1.10*0.95*1.20-1)
	approx(t, "AvgTradeReturn", stats.AvgTradeReturn, 0.25/3)
	approx(t, "HitRate", stats.HitRate, 2.0/3.0)

	if stats.Sharpe <= 0 {
		t.Errorf("Sharpe = %v, want positive for a positive-mean strategy", stats.Sharpe)
	}
}

func TestStrategy_ZeroVariance(t *testing.T) {
	events := []model.Event{
		eventWith(model.BucketNormal, 0.10),
		eventWith(model.BucketNormal, 0.10),
	}

	stats := Strategy(events, 10)
	// Degenerate spread: Sharpe is left at zero rather than infinity
	approx(t, "Sharpe", stats.Sharpe, 0)
}

func TestStrategy_Empty(t *testing.T) {
	stats := Strategy(nil, 10)
	if stats.NumTrades != 0 || stats.TotalReturn != 0 || stats.Sharpe != 0 {
		t.Errorf("Strategy(nil) = %+v, want zero value", stats)
	}
}

func TestSkewness(t *testing.T) {
	// Symmetric distribution has zero skewness
	approx(t, "symmetric", skewness([]float64{-1, 0, 1}), 0)

	// A long right tail is positively skewed
	if s := skewness([]float64{1, 2, 3, 100}); s <= 0 {
		t.Errorf("right-tailed skewness = %v, want positive", s)
	}

	// A long left tail is negatively skewed
	if s := skewness([]float64{-100, 1, 2, 3}); s >= 0 {
		t.Errorf("left-tailed skewness = %v, want negative", s)
	}
}

func TestMedian(t *testing.T) {
	approx(t, "odd count", median([]float64{3, 1, 2}), 2)
	approx(t, "even count", median([]float64{4, 1, 3, 2}), 2.5)
	approx(t, "single", median([]float64{7}), 7)
}
