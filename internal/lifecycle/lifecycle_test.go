package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ravgrowth/ravbot/internal/logger"
	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/ravgrowth/ravbot/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ravbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store, owner string, status model.Status) model.Subscription {
	t.Helper()
	sub, err := s.InsertSubscription(context.Background(), model.Subscription{
		UserID: owner, MerchantName: "Netflix", Amount: decimal.RequireFromString("15.49"),
		Interval: "monthly", Status: status,
	})
	require.NoError(t, err)
	return sub
}

func actionNames(actions []model.SubscriptionAction) []string {
	var out []string
	for _, a := range actions {
		out = append(out, a.Action)
	}
	return out
}

func TestCancelDetected(t *testing.T) {
	s := openStore(t)
	sub := seed(t, s, "u1", model.StatusDetected)
	m := NewManager(s, zerolog.Nop())
	ctx := context.Background()

	res, err := m.Cancel(ctx, "u1", sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Status)
	assert.Empty(t, res.Warnings)

	got, err := s.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	history, err := m.History(ctx, "u1", sub.ID, 0)
	require.NoError(t, err)
	// newest first
	assert.Equal(t, []string{model.ActionCancelSuccess, model.ActionCancelRequest}, actionNames(history))
	assert.Equal(t, "detected", history[1].Details["previous_status"])
}

func TestCancelForbiddenLeavesStatus(t *testing.T) {
	s := openStore(t)
	sub := seed(t, s, "owner", model.StatusDetected)
	m := NewManager(s, zerolog.Nop())
	ctx := context.Background()

	_, err := m.Cancel(ctx, "intruder", sub.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := s.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDetected, got.Status)

	actions, err := s.ListActions(ctx, sub.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, actions)

	_, err = m.History(ctx, "intruder", sub.ID, 10)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCancelNotFound(t *testing.T) {
	m := NewManager(openStore(t), zerolog.Nop())
	_, err := m.Cancel(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelAlreadyCancelledIsIdempotent(t *testing.T) {
	s := openStore(t)
	sub := seed(t, s, "u1", model.StatusCancelled)
	m := NewManager(s, zerolog.Nop())

	res, err := m.Cancel(context.Background(), "u1", sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Status)

	actions, err := s.ListActions(context.Background(), sub.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestCancelConcurrent(t *testing.T) {
	s := openStore(t)
	sub := seed(t, s, "u1", model.StatusDetected)
	m := NewManager(s, zerolog.Nop())
	ctx := context.Background()

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	results := make([]Result, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Cancel(ctx, "u1", sub.ID)
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, model.StatusCancelled, results[i].Status)
	}

	actions, err := s.ListActions(ctx, sub.ID, 0)
	require.NoError(t, err)
	successes := 0
	for _, a := range actions {
		if a.Action == model.ActionCancelSuccess {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}

// failingAudit wraps a real store and refuses the chosen audit actions.
type failingAudit struct {
	*store.Store
	fail map[string]bool
}

func (f failingAudit) AppendAction(ctx context.Context, a model.SubscriptionAction) (model.SubscriptionAction, error) {
	if f.fail[a.Action] {
		return a, errors.New("disk full")
	}
	return f.Store.AppendAction(ctx, a)
}

func TestCancelAuditFailureIsWarning(t *testing.T) {
	s := openStore(t)
	sub := seed(t, s, "u1", model.StatusDetected)

	var buf bytes.Buffer
	m := NewManager(failingAudit{Store: s, fail: map[string]bool{
		model.ActionCancelRequest: true,
		model.ActionCancelSuccess: true,
	}}, logger.NewWithWriter(&buf))

	res, err := m.Cancel(context.Background(), "u1", sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Status)
	assert.Len(t, res.Warnings, 2)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"level":"error"`)
}

// stuckStore reports that the final transition never applies while the row
// stays in cancel_pending.
type stuckStore struct {
	*store.Store
}

func (s stuckStore) TransitionStatus(ctx context.Context, id string, from, to model.Status) (int64, error) {
	if to == model.StatusCancelled {
		return 0, nil
	}
	return s.Store.TransitionStatus(ctx, id, from, to)
}

func TestCancelConflict(t *testing.T) {
	s := openStore(t)
	sub := seed(t, s, "u1", model.StatusDetected)
	m := NewManager(stuckStore{s}, zerolog.Nop())

	_, err := m.Cancel(context.Background(), "u1", sub.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSweepFinalizesStalePending(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	clock := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })

	stale := seed(t, s, "u1", model.StatusCancelPending)
	otherUser := seed(t, s, "u2", model.StatusCancelPending)
	clock = clock.Add(10 * time.Minute)
	fresh := seed(t, s, "u1", model.StatusCancelPending)
	detected := seed(t, s, "u1", model.StatusDetected)

	m := NewManager(s, zerolog.Nop())
	m.SetClock(func() time.Time { return clock.Add(time.Minute) })

	n, err := m.Sweep(ctx, "u1", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for id, want := range map[string]model.Status{
		stale.ID:     model.StatusCancelled,
		fresh.ID:     model.StatusCancelPending,
		detected.ID:  model.StatusDetected,
		otherUser.ID: model.StatusCancelPending,
	} {
		got, err := s.GetSubscription(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}

	actions, err := s.ListActions(ctx, stale.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{model.ActionFinalizedBySweep}, actionNames(actions))

	n, err = m.Sweep(ctx, "u1", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = m.Sweep(ctx, "", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
