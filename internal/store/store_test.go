package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ravbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestAccounts(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	a, err := s.AddAccount(ctx, model.LinkedAccount{UserID: "u1", Token: "tok-1", Name: "Checking"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	_, err = s.AddAccount(ctx, model.LinkedAccount{UserID: "u2", Token: "tok-2"})
	require.NoError(t, err)

	got, err := s.ListAccounts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tok-1", got[0].Token)
	assert.Equal(t, "Checking", got[0].Name)
}

func TestUpsertSeriesIsIdempotentAndMarksUnseen(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	next := day(90)

	netflix := model.RecurringSeries{
		MerchantSlug: "netflix", MerchantDisplay: "Netflix", Cadence: model.CadenceMonthly,
		AvgAmount: decimal.RequireFromString("15.49"), Confidence: 0.9, LastCharge: day(60),
		NextEstimated: &next, Features: model.SeriesFeatures{Count: 3, MedianGapDays: 30},
	}
	gym := model.RecurringSeries{
		MerchantSlug: "gym", MerchantDisplay: "Gym", Cadence: model.CadenceUnknown,
		AvgAmount: decimal.NewFromInt(40), Confidence: 0.6, LastCharge: day(50),
		Features: model.SeriesFeatures{Count: 2, MedianGapDays: 50},
	}

	require.NoError(t, s.UpsertSeries(ctx, "u1", "run-1", []model.RecurringSeries{netflix, gym}))
	require.NoError(t, s.UpsertSeries(ctx, "u1", "run-2", []model.RecurringSeries{netflix}))

	got, err := s.ListSeries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "gym", got[0].MerchantSlug)
	assert.False(t, got[0].SeenInLastRun)
	assert.Nil(t, got[0].NextEstimated)

	assert.Equal(t, "netflix", got[1].MerchantSlug)
	assert.True(t, got[1].SeenInLastRun)
	assert.Equal(t, "run-2", got[1].RunID)
	assert.True(t, decimal.RequireFromString("15.49").Equal(got[1].AvgAmount))
	require.NotNil(t, got[1].NextEstimated)
	assert.True(t, next.Equal(*got[1].NextEstimated))
	assert.Equal(t, 30, got[1].Features.MedianGapDays)
}

func TestSubscriptionLookupAndTransitions(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	sub, err := s.InsertSubscription(ctx, model.Subscription{
		UserID: "u1", MerchantName: "Netflix", Amount: decimal.RequireFromString("15.49"), Interval: "monthly",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDetected, sub.Status)

	found, err := s.FindSubscriptionByMerchant(ctx, "u1", "NETFLIX")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, found.ID)

	_, err = s.FindSubscriptionByMerchant(ctx, "u2", "Netflix")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetSubscription(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.TransitionStatus(ctx, sub.ID, model.StatusDetected, model.StatusCancelPending)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.TransitionStatus(ctx, sub.ID, model.StatusDetected, model.StatusCancelPending)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "second transition from detected must not apply")

	require.NoError(t, s.UpdateSubscriptionDetails(ctx, sub.ID, decimal.RequireFromString("17.99"), "monthly"))
	got, err := s.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelPending, got.Status)
	assert.Equal(t, "17.99", got.Amount.StringFixed(2))

	assert.ErrorIs(t, s.UpdateSubscriptionDetails(ctx, "missing", decimal.Zero, "monthly"), ErrNotFound)
}

func TestListStaleByStatus(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := day(10)
	s.SetClock(func() time.Time { return now })

	old, err := s.InsertSubscription(ctx, model.Subscription{UserID: "u1", MerchantName: "Hulu", Status: model.StatusCancelPending})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = s.InsertSubscription(ctx, model.Subscription{UserID: "u1", MerchantName: "Spotify", Status: model.StatusCancelPending})
	require.NoError(t, err)

	stale, err := s.ListStaleByStatus(ctx, "u1", model.StatusCancelPending, now.Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)

	stale, err = s.ListStaleByStatus(ctx, "u2", model.StatusCancelPending, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = s.ListStaleByStatus(ctx, "", model.StatusCancelPending, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

func TestActionsNewestFirst(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for _, action := range []string{model.ActionCancelRequest, model.ActionCancelSuccess} {
		_, err := s.AppendAction(ctx, model.SubscriptionAction{
			UserID: "u1", SubscriptionID: "sub-1", Action: action,
			Details: map[string]any{"merchant": "Netflix"},
		})
		require.NoError(t, err)
	}
	_, err := s.AppendAction(ctx, model.SubscriptionAction{UserID: "u1", SubscriptionID: "sub-2", Action: model.ActionCancelRequest})
	require.NoError(t, err)

	all, err := s.ListActions(ctx, "sub-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.ActionCancelSuccess, all[0].Action)
	assert.Equal(t, model.ActionCancelRequest, all[1].Action)
	assert.Equal(t, "Netflix", all[0].Details["merchant"])

	one, err := s.ListActions(ctx, "sub-1", 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, model.ActionCancelSuccess, one[0].Action)
}
