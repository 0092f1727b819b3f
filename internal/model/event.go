package model

import "time"

// SizeBucket labels an event by purchase conviction relative to the
// insider's own history.
type SizeBucket string

// Size buckets for classified events.
const (
	BucketNormal SizeBucket = "normal_buy"
	BucketLarge  SizeBucket = "large_buy"
)

// ExclusionReason explains why a transaction did not become an included
// event. Exclusions are expected outcomes, not errors; each is counted
// and reported in the run summary.
type ExclusionReason string

// Exclusion reasons tracked by the event constructor and return computer.
const (
	ExcludedNotPurchase   ExclusionReason = "not_open_market_purchase"
	ExcludedBelowMinValue ExclusionReason = "below_min_value"
	ExcludedNoPriceSeries ExclusionReason = "no_price_data"
	ExcludedEntryGap      ExclusionReason = "entry_gap_exceeds_tolerance"
	ExcludedShortHistory  ExclusionReason = "insufficient_forward_sessions"
	ExcludedBadPrice      ExclusionReason = "non_positive_price"
	ExcludedSourceFailure ExclusionReason = "price_source_failure"
)

// ExclusionCounts tallies exclusions per reason across a study run.
type ExclusionCounts map[ExclusionReason]int

// Add increments the count for a reason.
func (c ExclusionCounts) Add(reason ExclusionReason) {
	c[reason]++
}

// Total returns the number of excluded transactions across all reasons.
func (c ExclusionCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Event is one qualifying insider purchase joined with the price cache.
// It is immutable once return computation completes.
type Event struct {
	EntryDate   time.Time
	ExitDate    time.Time
	Transaction Transaction
	// PriorValues is the snapshot of the insider's strictly-prior
	// open-market purchase values used for classification. Empty for a
	// first-ever purchase.
	PriorValues   []float64
	Bucket        SizeBucket
	EntryPrice    float64
	ExitPrice     float64
	ForwardReturn float64
}
