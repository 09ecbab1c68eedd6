// Package lifecycle drives a subscription through cancellation and keeps its
// audit trail.
//
// A subscription moves detected -> cancel_pending -> cancelled. Status
// "cancelled" means the user confirmed they requested cancellation; ravbot
// does not verify that the merchant actually stopped billing.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/ravgrowth/ravbot/internal/store"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound means the subscription does not exist.
	ErrNotFound = errors.New("subscription not found")
	// ErrForbidden means the caller does not own the subscription.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means the row moved to an unexpected status mid-cancel.
	ErrConflict = errors.New("subscription changed concurrently")
)

// Store is the subset of the datastore the lifecycle manager uses.
type Store interface {
	GetSubscription(ctx context.Context, id string) (model.Subscription, error)
	TransitionStatus(ctx context.Context, id string, from, to model.Status) (int64, error)
	ListStaleByStatus(ctx context.Context, userID string, status model.Status, before time.Time) ([]model.Subscription, error)
	AppendAction(ctx context.Context, a model.SubscriptionAction) (model.SubscriptionAction, error)
	ListActions(ctx context.Context, subscriptionID string, limit int) ([]model.SubscriptionAction, error)
}

// Result is the outcome of a cancel request. Warnings carries audit writes
// that failed without failing the cancellation.
type Result struct {
	Status   model.Status `json:"status"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Manager enforces the status state machine.
type Manager struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewManager creates a manager over s.
func NewManager(s Store, log zerolog.Logger) *Manager {
	return &Manager{store: s, log: log, now: time.Now}
}

// SetClock replaces the time source used by Sweep.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// load fetches the subscription and checks that caller owns it.
func (m *Manager) load(ctx context.Context, caller, id string) (model.Subscription, error) {
	sub, err := m.store.GetSubscription(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return sub, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return sub, fmt.Errorf("loading subscription %s: %w", id, err)
	}
	if sub.UserID != caller {
		return sub, fmt.Errorf("%w: subscription %s", ErrForbidden, id)
	}
	return sub, nil
}

// Cancel moves the caller's subscription to cancelled. Cancelling an already
// cancelled subscription succeeds without writing audit entries. Concurrent
// callers converge on a single cancelled row and a single cancel_success entry.
func (m *Manager) Cancel(ctx context.Context, caller, id string) (Result, error) {
	sub, err := m.load(ctx, caller, id)
	if err != nil {
		return Result{}, err
	}
	if sub.Status.Terminal() {
		return Result{Status: model.StatusCancelled}, nil
	}

	log := m.log.With().Str("subscription_id", id).Str("user_id", caller).Logger()
	var res Result

	if err := m.audit(ctx, sub, model.ActionCancelRequest, map[string]any{
		"merchant":        sub.MerchantName,
		"previous_status": string(sub.Status),
	}); err != nil {
		log.Warn().Err(err).Msg("failed to record cancel request")
		res.Warnings = append(res.Warnings, "cancel request was not recorded in the audit log")
	}

	if sub.Status == model.StatusDetected {
		// Zero rows means another caller already advanced it.
		if _, err := m.store.TransitionStatus(ctx, id, model.StatusDetected, model.StatusCancelPending); err != nil {
			return res, fmt.Errorf("marking %s cancel_pending: %w", id, err)
		}
	}

	n, err := m.store.TransitionStatus(ctx, id, model.StatusCancelPending, model.StatusCancelled)
	if err != nil {
		return res, fmt.Errorf("marking %s cancelled: %w", id, err)
	}
	if n == 0 {
		current, err := m.store.GetSubscription(ctx, id)
		if err != nil {
			return res, fmt.Errorf("re-reading subscription %s: %w", id, err)
		}
		if current.Status != model.StatusCancelled {
			return res, fmt.Errorf("%w: %s is %s", ErrConflict, id, current.Status)
		}
		res.Status = model.StatusCancelled
		return res, nil
	}

	if err := m.audit(ctx, sub, model.ActionCancelSuccess, map[string]any{"merchant": sub.MerchantName}); err != nil {
		log.Error().Err(err).Msg("failed to record cancel success")
		res.Warnings = append(res.Warnings, "cancellation was not recorded in the audit log")
	}

	res.Status = model.StatusCancelled
	return res, nil
}

// Sweep finalizes userID's cancel_pending rows untouched for longer than
// olderThan, left behind by requests that stopped between phases. An empty
// userID sweeps every user. It returns how many rows it moved to cancelled.
func (m *Manager) Sweep(ctx context.Context, userID string, olderThan time.Duration) (int, error) {
	stale, err := m.store.ListStaleByStatus(ctx, userID, model.StatusCancelPending, m.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("listing stale subscriptions: %w", err)
	}

	finalized := 0
	for _, sub := range stale {
		if err := ctx.Err(); err != nil {
			return finalized, err
		}
		n, err := m.store.TransitionStatus(ctx, sub.ID, model.StatusCancelPending, model.StatusCancelled)
		if err != nil {
			return finalized, fmt.Errorf("finalizing %s: %w", sub.ID, err)
		}
		if n == 0 {
			continue
		}
		finalized++
		if err := m.audit(ctx, sub, model.ActionFinalizedBySweep, map[string]any{
			"merchant":      sub.MerchantName,
			"pending_since": sub.UpdatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			m.log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("failed to record sweep finalization")
		}
	}

	if finalized > 0 {
		m.log.Info().Str("user_id", userID).Int("finalized", finalized).Msg("swept stale cancel_pending subscriptions")
	}
	return finalized, nil
}

// History returns the caller's audit entries for a subscription, newest first.
func (m *Manager) History(ctx context.Context, caller, id string, limit int) ([]model.SubscriptionAction, error) {
	if _, err := m.load(ctx, caller, id); err != nil {
		return nil, err
	}
	actions, err := m.store.ListActions(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("listing actions for %s: %w", id, err)
	}
	return actions, nil
}

func (m *Manager) audit(ctx context.Context, sub model.Subscription, action string, details map[string]any) error {
	_, err := m.store.AppendAction(ctx, model.SubscriptionAction{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Action:         action,
		Details:        details,
	})
	return err
}
