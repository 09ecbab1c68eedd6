package present

import (
	"strings"
	"testing"
	"time"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func sub(id, merchant, amount string, status model.Status, updated int) model.Subscription {
	return model.Subscription{
		ID: id, UserID: "u1", MerchantName: merchant, Amount: decimal.RequireFromString(amount),
		Interval: "monthly", Status: status, UpdatedAt: t0.AddDate(0, 0, updated),
	}
}

func TestMergeNonCancelledWins(t *testing.T) {
	rows := Merge([]model.Subscription{
		sub("a", "Netflix Inc", "15.49", model.StatusDetected, 5),
		sub("b", "netflix inc.", "15.49", model.StatusCancelled, 1),
	})

	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, "netflix inc", r.Key)
	assert.Equal(t, 2, r.Count)
	assert.Equal(t, model.StatusDetected, r.Status)
	assert.Equal(t, "a", r.ID)
	assert.Equal(t, []string{"a", "b"}, r.IDs)
	assert.Equal(t, "15.49", r.Amount.StringFixed(2))
	assert.True(t, t0.AddDate(0, 0, 1).Equal(r.FirstSeen))
	assert.Equal(t, "netflix inc.", r.Merchant, "display name comes from the earliest row")
}

func TestMergeMaxAmountAndPendingOverCancelled(t *testing.T) {
	rows := Merge([]model.Subscription{
		sub("a", "Hulu", "7.99", model.StatusCancelled, 0),
		sub("b", "HULU", "11.99", model.StatusCancelPending, 2),
		sub("c", "", "99", model.StatusDetected, 0),
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "11.99", rows[0].Amount.StringFixed(2))
	assert.Equal(t, model.StatusCancelPending, rows[0].Status)
	assert.Equal(t, "b", rows[0].ID)
}

func TestViewSortingAndVisibility(t *testing.T) {
	subs := []model.Subscription{
		sub("1", "Spotify", "10.99", model.StatusDetected, 3),
		sub("2", "Netflix", "15.49", model.StatusDetected, 9),
		sub("3", "Gym", "40.00", model.StatusCancelled, 1),
		sub("4", "Hulu", "10.99", model.StatusDetected, 2),
	}

	keys := func(rows []Row) []string {
		var out []string
		for _, r := range rows {
			out = append(out, r.Key)
		}
		return out
	}

	assert.Equal(t, []string{"netflix", "hulu", "spotify"}, keys(View(subs, Options{Sort: ByPrice})))
	assert.Equal(t, []string{"gym", "netflix", "hulu", "spotify"}, keys(View(subs, Options{Sort: ByPrice, ShowCancelled: true})))
	assert.Equal(t, []string{"hulu", "spotify", "netflix"}, keys(View(subs, Options{Sort: ByFirstSeen})))
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, ByFirstSeen, ParseSortKey("date"))
	assert.Equal(t, ByFirstSeen, ParseSortKey("First-Seen"))
	assert.Equal(t, ByPrice, ParseSortKey(""))
	assert.Equal(t, ByPrice, ParseSortKey("bogus"))
}

func TestGuidance(t *testing.T) {
	tests := []struct {
		merchant string
		url      string
	}{
		{"Spotify USA", "https://support.spotify.com/us/article/cancel-premium/"},
		{"NETFLIX.COM", "https://www.netflix.com/cancelplan"},
		{"Uber Eats", "https://help.uber.com/ubereats"},
		{"UBER *TRIP", "https://help.uber.com"},
		{"AT&T Wireless", "https://www.att.com/support/article/my-account/KM1045265/"},
	}
	for _, tt := range tests {
		g := GuidanceFor(tt.merchant)
		assert.True(t, g.Known, tt.merchant)
		assert.Equal(t, tt.url, g.URL, tt.merchant)
	}

	g := GuidanceFor("Matt's Gym")
	assert.False(t, g.Known)
	assert.Equal(t, "https://www.google.com/search?q=Matt%27s+Gym+cancel+subscription", g.URL)
}

func TestLoadCatalogRejectsIncompleteEntries(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("merchants:\n  - name: X\n    url: https://x\n"))
	assert.ErrorContains(t, err, "required")

	c, err := LoadCatalog(strings.NewReader("merchants:\n  - name: Disney\n    match: [Disney+]\n    url: https://disney\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://disney", c.Lookup("DISNEY PLUS").URL)
	assert.Contains(t, c.Lookup("Other").URL, "google.com/search")
}

func TestYearlyCostAndTotals(t *testing.T) {
	rows := Merge([]model.Subscription{
		sub("1", "Netflix", "15.00", model.StatusDetected, 0),
		{ID: "2", MerchantName: "Gym", Amount: decimal.RequireFromString("10"), Interval: "weekly", Status: model.StatusCancelPending},
		{ID: "3", MerchantName: "Domain", Amount: decimal.RequireFromString("-12"), Interval: "annually", Status: model.StatusDetected},
		sub("4", "Hulu", "8.00", model.StatusCancelled, 0),
	})
	require.Len(t, rows, 4)
	assert.Equal(t, "180", rows[0].YearlyCost.String())
	assert.Equal(t, "520", rows[1].YearlyCost.String())
	assert.Equal(t, "12", rows[2].YearlyCost.String())
	assert.True(t, rows[3].YearlyCost.IsZero())

	tot := Sum(rows)
	assert.Equal(t, 3, tot.Active)
	assert.Equal(t, "712", tot.Yearly.String())
	assert.Equal(t, "59.33", tot.Monthly.StringFixed(2))
	assert.EqualValues(t, 12, IntervalsPerYear("unknown"))
	assert.EqualValues(t, 365, IntervalsPerYear("Daily"))
}
