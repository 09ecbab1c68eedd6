package present

import (
	"strings"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/shopspring/decimal"
)

// IntervalsPerYear returns how many charges an interval implies per year.
// Unrecognized intervals count as monthly.
func IntervalsPerYear(interval string) int64 {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "weekly":
		return 52
	case "daily":
		return 365
	case "yearly", "annually", "annual":
		return 1
	default:
		return 12
	}
}

// YearlyCost projects a row's annual spend. Cancelled rows cost nothing.
func YearlyCost(r Row) decimal.Decimal {
	if r.Status == model.StatusCancelled {
		return decimal.Zero
	}
	return r.Amount.Abs().Mul(decimal.NewFromInt(IntervalsPerYear(r.Interval)))
}

// Totals sums the monthly-equivalent and yearly cost of the active rows.
type Totals struct {
	Active  int             `json:"active"`
	Monthly decimal.Decimal `json:"monthly"`
	Yearly  decimal.Decimal `json:"yearly"`
}

// Sum computes Totals over rows.
func Sum(rows []Row) Totals {
	t := Totals{Monthly: decimal.Zero, Yearly: decimal.Zero}
	for _, r := range rows {
		if r.Status == model.StatusCancelled {
			continue
		}
		t.Active++
		t.Yearly = t.Yearly.Add(YearlyCost(r))
	}
	t.Monthly = t.Yearly.DivRound(decimal.NewFromInt(12), 2)
	return t
}
