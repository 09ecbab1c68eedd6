package detect

import (
	"testing"
	"time"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// base is chosen so that day 60 falls in a 30-day month: one calendar month
// after day 60 is exactly day 90.
var base = time.Date(2026, 7, 7, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return base.AddDate(0, 0, n) }

func charge(merchant string, d int, amount string) model.Transaction {
	return model.Transaction{MerchantName: merchant, Date: day(d), Amount: decimal.RequireFromString(amount)}
}

func opts(now int) Options {
	return Options{UserID: "u1", Now: day(now)}
}

func TestSingleChargeEmitsNothing(t *testing.T) {
	got := Detect([]model.Transaction{
		charge("Netflix", 0, "15.49"),
		charge("Gym", 10, "40"),
		charge("Gym", 40, "40"),
	}, opts(50))

	require.Len(t, got, 1)
	assert.Equal(t, "gym", got[0].MerchantSlug)
}

func TestMonthlySeries(t *testing.T) {
	got := Detect([]model.Transaction{
		charge("Netflix", 0, "-15.49"),
		charge("Netflix", 30, "-15.49"),
		charge("Netflix", 60, "-15.49"),
	}, opts(61))

	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "netflix", s.MerchantSlug)
	assert.Equal(t, "Netflix", s.MerchantDisplay)
	assert.Equal(t, model.CadenceMonthly, s.Cadence)
	assert.Equal(t, 30, s.Features.MedianGapDays)
	assert.Equal(t, 3, s.Features.Count)
	assert.Equal(t, ConfidenceHigh, s.Confidence)
	assert.Equal(t, "15.49", s.AvgAmount.StringFixed(2))
	assert.True(t, day(60).Equal(s.LastCharge))
	require.NotNil(t, s.NextEstimated)
	assert.True(t, day(90).Equal(*s.NextEstimated), "next = %s", s.NextEstimated)
}

func TestWeeklySeries(t *testing.T) {
	got := Detect([]model.Transaction{
		charge("Uber Eats", 21, "12.00"),
		charge("Uber Eats", 0, "10.00"),
		charge("Uber Eats", 14, "14.00"),
		charge("Uber Eats", 7, "12.00"),
	}, opts(22))

	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, model.CadenceWeekly, s.Cadence)
	assert.Equal(t, 7, s.Features.MedianGapDays)
	assert.Equal(t, ConfidenceHigh, s.Confidence)
	assert.Equal(t, "12.00", s.AvgAmount.StringFixed(2))
	require.NotNil(t, s.NextEstimated)
	assert.True(t, day(28).Equal(*s.NextEstimated))
}

func TestTwoChargesLowConfidence(t *testing.T) {
	got := Detect([]model.Transaction{
		charge("Hulu", 0, "7.99"),
		charge("Hulu", 30, "7.99"),
	}, opts(31))

	require.Len(t, got, 1)
	assert.Equal(t, ConfidenceLow, got[0].Confidence)
	assert.Equal(t, model.CadenceMonthly, got[0].Cadence)
}

func TestUnknownCadenceHasNoProjection(t *testing.T) {
	got := Detect([]model.Transaction{
		charge("Insurance", 0, "120"),
		charge("Insurance", 60, "120"),
	}, opts(61))

	require.Len(t, got, 1)
	assert.Equal(t, model.CadenceUnknown, got[0].Cadence)
	assert.Nil(t, got[0].NextEstimated)
}

func TestWindowAndLabelRules(t *testing.T) {
	txns := []model.Transaction{
		// Outside the 90-day window relative to day 120.
		charge("Spotify", 0, "10.99"),
		charge("Spotify", 25, "10.99"),
		// Raw name used when merchant is missing; case variants merge.
		{Name: "NETFLIX", Date: day(60), Amount: decimal.RequireFromString("15.49")},
		{MerchantName: "Netflix", Name: "NETFLIX.COM", Date: day(90), Amount: decimal.RequireFromString("15.49")},
		{MerchantName: "Netflix", Date: day(120), Amount: decimal.RequireFromString("15.49")},
		// Empty label is ignored.
		{Date: day(100), Amount: decimal.NewFromInt(1)},
		{Date: day(110), Amount: decimal.NewFromInt(1)},
	}
	got := Detect(txns, opts(120))

	require.Len(t, got, 1)
	assert.Equal(t, "netflix", got[0].MerchantSlug)
	assert.Equal(t, "Netflix", got[0].MerchantDisplay)
	assert.Equal(t, 3, got[0].Features.Count)
}

func TestRerunSameSlugs(t *testing.T) {
	txns := []model.Transaction{
		charge("Netflix", 0, "15.49"), charge("Netflix", 30, "15.49"),
		charge("Spotify USA", 3, "10.99"), charge("Spotify USA", 33, "10.99"),
		charge("Gym", 5, "40"),
	}
	slugs := func(ss []model.RecurringSeries) []string {
		var out []string
		for _, s := range ss {
			out = append(out, s.MerchantSlug)
		}
		return out
	}
	first := Detect(txns, opts(40))
	second := Detect(txns, opts(40))
	assert.Equal(t, []string{"netflix", "spotify-usa"}, slugs(first))
	assert.Equal(t, slugs(first), slugs(second))
}

func TestMedianUpperMiddle(t *testing.T) {
	assert.Equal(t, 0, Median(nil))
	assert.Equal(t, 30, Median([]int{30}))
	assert.Equal(t, 31, Median([]int{31, 28}))
	assert.Equal(t, 7, Median([]int{7, 30, 6}))
}

func TestCustomBounds(t *testing.T) {
	b := Bounds{WeeklyMin: 6, WeeklyMax: 8, MonthlyMin: 28, MonthlyMax: 31}
	assert.Equal(t, model.CadenceUnknown, b.Classify(5))
	assert.Equal(t, model.CadenceWeekly, b.Classify(8))
	assert.Equal(t, model.CadenceMonthly, b.Classify(28))
	assert.Equal(t, model.CadenceUnknown, b.Classify(40))
	assert.Equal(t, model.CadenceMonthly, DefaultBounds().Classify(40))
}

func TestWindowUsesCalendarDaysOfNow(t *testing.T) {
	date := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return d
	}
	txns := func(dates ...string) []model.Transaction {
		var out []model.Transaction
		for _, s := range dates {
			out = append(out, model.Transaction{MerchantName: "Netflix", Date: date(s), Amount: decimal.RequireFromString("15.49")})
		}
		return out
	}

	// Evening in Los Angeles is already the next day in UTC.
	pacific := time.FixedZone("PDT", -7*60*60)
	now := time.Date(2026, 10, 16, 20, 0, 0, 0, pacific)
	start, end := Window(now, 90)
	assert.Equal(t, date("2026-07-18"), start)
	assert.Equal(t, date("2026-10-16"), end)

	got := Detect(txns("2026-07-17", "2026-07-18", "2026-08-17", "2026-10-16"), Options{Now: now})
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Features.Count)
	assert.Equal(t, date("2026-10-16"), got[0].LastCharge)

	// Morning in Tokyo is still the previous day in UTC.
	tokyo := time.FixedZone("JST", 9*60*60)
	now = time.Date(2026, 10, 16, 8, 0, 0, 0, tokyo)
	got = Detect(txns("2026-09-16", "2026-10-16", "2026-10-17"), Options{Now: now})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Features.Count)
	assert.Equal(t, date("2026-10-16"), got[0].LastCharge)
}

func TestAverageAbsKeepsPrecision(t *testing.T) {
	txns := []model.Transaction{
		charge("Gym", 0, "-10.00"), charge("Gym", 30, "10.00"), charge("Gym", 60, "10.01"),
	}
	avg := AverageAbs(txns)
	assert.True(t, avg.GreaterThan(decimal.RequireFromString("10.003")), avg.String())
	assert.True(t, avg.LessThan(decimal.RequireFromString("10.004")), avg.String())
	assert.Equal(t, "10.00", avg.StringFixed(2))
	assert.True(t, AverageAbs(nil).IsZero())
}
