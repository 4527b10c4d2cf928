package stats

import (
	"fmt"
	"time"

	"github.com/smartm-app/smartm/internal/model"
)

// Finance summarizes consumption amounts.
type Finance struct {
	Total         float64 `json:"totalExpense"`
	CurrentMonth  float64 `json:"currentMonthExpense"`
	PreviousMonth float64 `json:"previousMonthExpense"`
	Average       float64 `json:"averageExpense"`
	Max           float64 `json:"maxExpense"`
	// Trend is the month-over-month change in percent, 0 when the previous
	// month had no expense.
	Trend float64 `json:"monthlyTrend"`
}

// FinanceStats computes the finance summary relative to the month of now.
// Entries with unparseable dates count toward the totals but no month.
func FinanceStats(items []model.Consumption, now time.Time) Finance {
	var f Finance
	curYear, curMonth := now.Year(), now.Month()
	prev := time.Date(curYear, curMonth, 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)

	for i, c := range items {
		f.Total += c.Amount
		if i == 0 || c.Amount > f.Max {
			f.Max = c.Amount
		}
		d, err := model.ParseDate(c.Date)
		if err != nil {
			continue
		}
		switch {
		case d.Year() == curYear && d.Month() == curMonth:
			f.CurrentMonth += c.Amount
		case d.Year() == prev.Year() && d.Month() == prev.Month():
			f.PreviousMonth += c.Amount
		}
	}

	n := len(items)
	if n == 0 {
		n = 1
	}
	f.Average = f.Total / float64(n)
	if f.PreviousMonth > 0 {
		f.Trend = (f.CurrentMonth - f.PreviousMonth) / f.PreviousMonth * 100
	}
	return f
}

// InMonth returns the consumptions dated in month, given as "YYYY-MM".
// An empty month returns items unchanged.
func InMonth(items []model.Consumption, month string) ([]model.Consumption, error) {
	if month == "" {
		return items, nil
	}
	m, err := time.ParseInLocation("2006-01", month, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", month, err)
	}
	out := make([]model.Consumption, 0, len(items))
	for _, c := range items {
		d, err := model.ParseDate(c.Date)
		if err != nil {
			continue
		}
		if d.Year() == m.Year() && d.Month() == m.Month() {
			out = append(out, c)
		}
	}
	return out, nil
}

// ByCategory sums consumption amounts per category. Uncategorized entries
// are grouped under "".
func ByCategory(items []model.Consumption) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range items {
		out[c.Category] += c.Amount
	}
	return out
}
