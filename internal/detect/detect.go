// Package detect infers recurring charges from a user's transaction history.
package detect

import (
	"math"
	"sort"
	"time"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/shopspring/decimal"
)

// Confidence scores assigned by charge count.
const (
	ConfidenceHigh = 0.9 // three or more charges
	ConfidenceLow  = 0.6 // exactly two charges
)

// DefaultWindowDays is the look-back window of a detection run.
const DefaultWindowDays = 90

// Bounds are the inclusive median-gap ranges, in days, for each cadence.
type Bounds struct {
	WeeklyMin, WeeklyMax   int
	MonthlyMin, MonthlyMax int
}

// DefaultBounds returns weekly 5-10 days and monthly 20-40 days.
func DefaultBounds() Bounds {
	return Bounds{WeeklyMin: 5, WeeklyMax: 10, MonthlyMin: 20, MonthlyMax: 40}
}

// Classify maps a median gap to a cadence.
func (b Bounds) Classify(medianDays int) model.Cadence {
	switch {
	case medianDays >= b.WeeklyMin && medianDays <= b.WeeklyMax:
		return model.CadenceWeekly
	case medianDays >= b.MonthlyMin && medianDays <= b.MonthlyMax:
		return model.CadenceMonthly
	default:
		return model.CadenceUnknown
	}
}

// Options controls a detection pass.
type Options struct {
	UserID     string
	Now        time.Time
	WindowDays int    // zero means DefaultWindowDays
	Bounds     Bounds // zero value means DefaultBounds
}

type group struct {
	slug   string
	labels map[string]int
	txns   []model.Transaction
}

// Detect groups transactions by merchant and emits one series per merchant
// with at least two charges inside the window. Labels that slugify to the same
// key ("Netflix", "NETFLIX") form one group. The result is sorted by slug.
func Detect(txns []model.Transaction, opts Options) []model.RecurringSeries {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = DefaultWindowDays
	}
	if opts.Bounds == (Bounds{}) {
		opts.Bounds = DefaultBounds()
	}

	start, end := Window(opts.Now, opts.WindowDays)
	groups := make(map[string]*group)
	for _, t := range txns {
		d := model.CalendarDate(t.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		label := t.Label()
		slug := model.Slugify(label)
		if slug == "" {
			continue
		}
		g, ok := groups[slug]
		if !ok {
			g = &group{slug: slug, labels: make(map[string]int)}
			groups[slug] = g
		}
		g.labels[label]++
		g.txns = append(g.txns, t)
	}

	out := make([]model.RecurringSeries, 0, len(groups))
	for _, g := range groups {
		if len(g.txns) < 2 {
			continue
		}
		out = append(out, summarize(g, opts))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MerchantSlug < out[j].MerchantSlug })
	return out
}

func summarize(g *group, opts Options) model.RecurringSeries {
	sort.SliceStable(g.txns, func(i, j int) bool { return g.txns[i].Date.Before(g.txns[j].Date) })

	gaps := Gaps(g.txns)
	median := Median(gaps)
	cadence := opts.Bounds.Classify(median)
	last := g.txns[len(g.txns)-1].Date

	confidence := ConfidenceLow
	if len(g.txns) >= 3 {
		confidence = ConfidenceHigh
	}

	return model.RecurringSeries{
		UserID:          opts.UserID,
		MerchantSlug:    g.slug,
		MerchantDisplay: displayLabel(g.labels),
		Cadence:         cadence,
		AvgAmount:       AverageAbs(g.txns),
		Confidence:      confidence,
		LastCharge:      last,
		NextEstimated:   NextCharge(last, cadence),
		Features: model.SeriesFeatures{
			Count:         len(g.txns),
			MedianGapDays: median,
		},
		SeenInLastRun: true,
	}
}

// Gaps returns the whole-day differences between consecutive charges of
// chronologically sorted txns.
func Gaps(txns []model.Transaction) []int {
	if len(txns) < 2 {
		return nil
	}
	gaps := make([]int, 0, len(txns)-1)
	for i := 1; i < len(txns); i++ {
		d := txns[i].Date.Sub(txns[i-1].Date).Hours() / 24
		gaps = append(gaps, int(math.Round(d)))
	}
	return gaps
}

// Median returns the element at index len/2 of the sorted gaps, so an
// even-length list yields the upper-middle value. Empty input yields 0.
func Median(gaps []int) int {
	if len(gaps) == 0 {
		return 0
	}
	sorted := append([]int(nil), gaps...)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}

// AverageAbs returns the arithmetic mean of the absolute amounts, unrounded.
// Display code rounds to cents.
func AverageAbs(txns []model.Transaction) decimal.Decimal {
	if len(txns) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, t := range txns {
		sum = sum.Add(t.Amount.Abs())
	}
	return sum.Div(decimal.NewFromInt(int64(len(txns))))
}

// NextCharge projects the next charge date: one week or one calendar month
// after last. Unknown cadence has no projection.
func NextCharge(last time.Time, c model.Cadence) *time.Time {
	var next time.Time
	switch c {
	case model.CadenceWeekly:
		next = last.AddDate(0, 0, 7)
	case model.CadenceMonthly:
		next = last.AddDate(0, 1, 0)
	default:
		return nil
	}
	return &next
}

// displayLabel picks the most frequent raw label, breaking ties alphabetically.
func displayLabel(labels map[string]int) string {
	best, bestN := "", 0
	for l, n := range labels {
		if n > bestN || (n == bestN && l < best) {
			best, bestN = l, n
		}
	}
	return best
}

// Window returns the inclusive calendar-day range of a detection pass: the
// day of now, in now's location, and the day windowDays before it. Both are
// UTC midnight, comparable with model.CalendarDate of a transaction.
func Window(now time.Time, windowDays int) (start, end time.Time) {
	end = model.CalendarDate(now)
	return end.AddDate(0, 0, -windowDays), end
}
