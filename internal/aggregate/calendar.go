package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantfold/insider-flow/internal/model"
)

// CalendarPoint is one date on the calendar-time equity curve.
type CalendarPoint struct {
	Date time.Time
	// PortfolioReturn is the equal-weighted average of the daily returns
	// of every event active on this date.
	PortfolioReturn float64
	Equity          float64
	Drawdown        float64
	Active          int
}

// CalendarCurve is the calendar-time view of the event set: a hypothetical
// portfolio holding every active event equally weighted.
type CalendarCurve struct {
	Points      []CalendarPoint
	MaxDrawdown float64
}

// FinalEquity returns the cumulative value at the end of the series.
func (c *CalendarCurve) FinalEquity() float64 {
	if len(c.Points) == 0 {
		return 1.0
	}
	return c.Points[len(c.Points)-1].Equity
}

// interval is one event's holding window expressed as positions in its
// ticker's price series. Emitting per-session contributions from these
// sorted windows is what keeps construction linear in total exposure
// instead of rescanning every event per calendar date.
type interval struct {
	prices   *model.PriceSeries
	entryIdx int
	horizon  int
}

// Calendar builds the equity curve from included events and the price
// cache they were constructed against. Each event contributes exactly
// horizon daily returns, one per trading session in (entry, exit].
func Calendar(events []model.Event, prices map[string]*model.PriceSeries, horizon int) (*CalendarCurve, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if len(events) == 0 {
		return &CalendarCurve{}, nil
	}

	intervals := make([]interval, 0, len(events))
	baseline := events[0].EntryDate
	for _, ev := range events {
		series := prices[ev.Transaction.Ticker]
		if series == nil {
			return nil, fmt.Errorf("no price series for %s", ev.Transaction.Ticker)
		}
		entryIdx, ok := series.IndexOnOrAfter(ev.EntryDate)
		if !ok {
			return nil, fmt.Errorf("entry date %s not in %s series",
				ev.EntryDate.Format("2006-01-02"), ev.Transaction.Ticker)
		}
		if entryIdx+horizon >= series.Len() {
			return nil, fmt.Errorf("%s series too short for event at %s",
				ev.Transaction.Ticker, ev.EntryDate.Format("2006-01-02"))
		}
		intervals = append(intervals, interval{
			prices:   series,
			entryIdx: entryIdx,
			horizon:  horizon,
		})
		if ev.EntryDate.Before(baseline) {
			baseline = ev.EntryDate
		}
	}

	type daily struct {
		sum   float64
		count int
	}
	byDate := make(map[time.Time]*daily)
	for _, iv := range intervals {
		for k := 1; k <= iv.horizon; k++ {
			idx := iv.entryIdx + k
			ret, ok := iv.prices.DailyReturn(idx)
			if !ok {
				continue
			}
			date, _ := iv.prices.At(idx)
			d := byDate[date]
			if d == nil {
				d = &daily{}
				byDate[date] = d
			}
			d.sum += ret
			d.count++
		}
	}

	dates := make([]time.Time, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	curve := &CalendarCurve{
		// The curve opens at 1.0 on the earliest entry date, before any
		// holding period has produced a return.
		Points: []CalendarPoint{{Date: baseline, Equity: 1.0}},
	}

	equity := 1.0
	peak := 1.0
	for _, date := range dates {
		d := byDate[date]
		portfolioReturn := d.sum / float64(d.count)
		equity *= 1 + portfolioReturn
		if equity > peak {
			peak = equity
		}
		drawdown := equity/peak - 1.0
		if drawdown < curve.MaxDrawdown {
			curve.MaxDrawdown = drawdown
		}
		curve.Points = append(curve.Points, CalendarPoint{
			Date:            date,
			PortfolioReturn: portfolioReturn,
			Equity:          equity,
			Drawdown:        drawdown,
			Active:          d.count,
		})
	}

	return curve, nil
}
