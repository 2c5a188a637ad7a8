package calculator

import (
	"time"

	"DemandSentinel/internal/model"
)

// DailySeries is a gap-free run of daily quantity totals.
type DailySeries struct {
	Start  time.Time
	Values []float64
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailyTotals aggregates records into one total per day over the trailing
// windowDays ending on the day of now. Days without sales are 0.
func DailyTotals(records []model.SalesRecord, now time.Time, windowDays int) DailySeries {
	if windowDays <= 0 {
		return DailySeries{Start: Day(now)}
	}
	end := Day(now)
	start := end.AddDate(0, 0, -(windowDays - 1))
	values := make([]float64, windowDays)
	for _, r := range records {
		d := Day(r.Timestamp)
		if d.Before(start) || d.After(end) {
			continue
		}
		idx := int(d.Sub(start).Hours() / 24)
		if idx >= 0 && idx < windowDays {
			values[idx] += r.Quantity
		}
	}
	return DailySeries{Start: start, Values: values}
}

// Len is the number of days covered.
func (s DailySeries) Len() int { return len(s.Values) }

// Date returns the calendar day of index i.
func (s DailySeries) Date(i int) time.Time { return s.Start.AddDate(0, 0, i) }

// At returns the total for day t and whether t is inside the series.
func (s DailySeries) At(t time.Time) (float64, bool) {
	idx := int(Day(t).Sub(s.Start).Hours() / 24)
	if idx < 0 || idx >= len(s.Values) {
		return 0, false
	}
	return s.Values[idx], true
}

// Tail returns the last n values (fewer if the series is shorter).
func (s DailySeries) Tail(n int) []float64 {
	if n >= len(s.Values) {
		return s.Values
	}
	if n <= 0 {
		return nil
	}
	return s.Values[len(s.Values)-n:]
}

// MonthlyMeans groups daily values by calendar month.
func (s DailySeries) MonthlyMeans() map[time.Month]float64 {
	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for i, v := range s.Values {
		m := s.Date(i).Month()
		sums[m] += v
		counts[m]++
	}
	out := make(map[time.Month]float64, len(sums))
	for m, sum := range sums {
		out[m] = sum / float64(counts[m])
	}
	return out
}

// ActiveSpan trims leading days before the first recorded sale, so that a
// product launched mid-window is not diluted by zeros it never had.
func ActiveSpan(records []model.SalesRecord, now time.Time, windowDays int) int {
	if len(records) == 0 {
		return 0
	}
	first := Day(records[0].Timestamp)
	for _, r := range records[1:] {
		if d := Day(r.Timestamp); d.Before(first) {
			first = d
		}
	}
	days := int(Day(now).Sub(first).Hours()/24) + 1
	if days > windowDays {
		return windowDays
	}
	if days < 1 {
		return 1
	}
	return days
}
