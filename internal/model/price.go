package model

import (
	"sort"
	"time"
)

// PricePoint is one (ticker, trading date) observation of adjusted close.
type PricePoint struct {
	Date     time.Time
	Ticker   string
	AdjClose float64
}

// PriceSeries is a per-ticker time series of adjusted closes, sorted by
// date. Gaps on weekends and holidays are expected; lookups align to the
// next available trading date rather than failing.
type PriceSeries struct {
	ticker string
	dates  []time.Time
	closes []float64
}

// NewPriceSeries builds a sorted series from unordered price points.
// Duplicate dates keep the last value seen.
func NewPriceSeries(ticker string, points []PricePoint) *PriceSeries {
	sorted := make([]PricePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	s := &PriceSeries{ticker: ticker}
	for _, p := range sorted {
		d := Midnight(p.Date)
		if n := len(s.dates); n > 0 && s.dates[n-1].Equal(d) {
			s.closes[n-1] = p.AdjClose
			continue
		}
		s.dates = append(s.dates, d)
		s.closes = append(s.closes, p.AdjClose)
	}
	return s
}

// Ticker returns the ticker this series belongs to.
func (s *PriceSeries) Ticker() string {
	return s.ticker
}

// Len returns the number of trading dates in the series.
func (s *PriceSeries) Len() int {
	return len(s.dates)
}

// IndexOnOrAfter returns the index of the first trading date on or after
// the target date, and false if no such date exists.
func (s *PriceSeries) IndexOnOrAfter(target time.Time) (int, bool) {
	target = Midnight(target)
	idx := sort.Search(len(s.dates), func(i int) bool {
		return !s.dates[i].Before(target)
	})
	if idx >= len(s.dates) {
		return 0, false
	}
	return idx, true
}

// At returns the trading date and adjusted close at index i.
func (s *PriceSeries) At(i int) (time.Time, float64) {
	return s.dates[i], s.closes[i]
}

// DailyReturn computes the simple return from session i-1 to session i.
// The first session of a series has no prior close, so ok is false.
func (s *PriceSeries) DailyReturn(i int) (ret float64, ok bool) {
	if i <= 0 || i >= len(s.dates) {
		return 0, false
	}
	prev := s.closes[i-1]
	if prev <= 0 {
		return 0, false
	}
	return s.closes[i]/prev - 1.0, true
}

// Midnight truncates a timestamp to its UTC calendar date. All trading
// dates in the study are normalized this way before comparison.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
