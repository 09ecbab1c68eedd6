// Package registry promotes detected recurring series into user-facing
// subscriptions without duplicating merchants across runs.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/ravgrowth/ravbot/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store is the subset of the datastore the registry writes through.
type Store interface {
	FindSubscriptionByMerchant(ctx context.Context, userID, merchant string) (model.Subscription, error)
	InsertSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error)
	UpdateSubscriptionDetails(ctx context.Context, id string, amount decimal.Decimal, interval string) error
	TransitionStatus(ctx context.Context, id string, from, to model.Status) (int64, error)
}

// Options is the promotion policy.
type Options struct {
	// PromotionMinCharges is the minimum charge count for a series to become a subscription.
	PromotionMinCharges int
	// ResurrectCancelled moves a cancelled subscription back to detected when
	// its merchant is detected again. Off by default: a user's cancellation sticks.
	ResurrectCancelled bool
}

// DefaultOptions promotes merchants seen three or more times and never resurrects.
func DefaultOptions() Options {
	return Options{PromotionMinCharges: 3}
}

// Outcome summarizes one reconciliation.
type Outcome struct {
	Found            []string `json:"found"`
	Inserted         int      `json:"inserted"`
	Updated          int      `json:"updated"`
	SkippedCancelled int      `json:"skipped_cancelled"`
	Resurrected      int      `json:"resurrected"`
}

// Registry reconciles detection output with persisted subscriptions.
type Registry struct {
	store Store
	opts  Options
	log   zerolog.Logger
}

// New creates a registry writing through s.
func New(s Store, opts Options, log zerolog.Logger) *Registry {
	if opts.PromotionMinCharges < 1 {
		opts.PromotionMinCharges = DefaultOptions().PromotionMinCharges
	}
	return &Registry{store: s, opts: opts, log: log}
}

// Reconcile promotes series with enough charges. Existing rows for the same
// merchant are refreshed in place; cancelled rows are left alone unless
// ResurrectCancelled is set.
func (r *Registry) Reconcile(ctx context.Context, userID string, series []model.RecurringSeries) (Outcome, error) {
	out := Outcome{Found: []string{}}
	for _, s := range series {
		if s.Features.Count < r.opts.PromotionMinCharges {
			continue
		}
		out.Found = append(out.Found, s.MerchantDisplay)
		if err := r.apply(ctx, userID, s.MerchantDisplay, s.AvgAmount, string(s.Cadence), &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// ReconcileNames promotes plain merchant names, counting repeats in names.
// New merchants are inserted with a zero amount and unknown interval.
func (r *Registry) ReconcileNames(ctx context.Context, userID string, names []string) (Outcome, error) {
	counts := make(map[string]int)
	display := make(map[string]string)
	var order []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := model.Slugify(n)
		if key == "" {
			continue
		}
		if _, ok := counts[key]; !ok {
			order = append(order, key)
			display[key] = n
		}
		counts[key]++
	}

	out := Outcome{Found: []string{}}
	for _, key := range order {
		if counts[key] < r.opts.PromotionMinCharges {
			continue
		}
		name := display[key]
		out.Found = append(out.Found, name)

		_, err := r.store.FindSubscriptionByMerchant(ctx, userID, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return out, fmt.Errorf("looking up %s: %w", name, err)
		}
		if _, err := r.store.InsertSubscription(ctx, model.Subscription{
			UserID:       userID,
			MerchantName: name,
			Amount:       decimal.Zero,
			Interval:     string(model.CadenceUnknown),
			Status:       model.StatusDetected,
		}); err != nil {
			return out, err
		}
		out.Inserted++
	}
	return out, nil
}

func (r *Registry) apply(ctx context.Context, userID, merchant string, amount decimal.Decimal, interval string, out *Outcome) error {
	existing, err := r.store.FindSubscriptionByMerchant(ctx, userID, merchant)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if _, err := r.store.InsertSubscription(ctx, model.Subscription{
			UserID:       userID,
			MerchantName: merchant,
			Amount:       amount,
			Interval:     interval,
			Status:       model.StatusDetected,
		}); err != nil {
			return err
		}
		out.Inserted++
		return nil
	case err != nil:
		return fmt.Errorf("looking up %s: %w", merchant, err)
	}

	if existing.Status == model.StatusCancelled {
		if !r.opts.ResurrectCancelled {
			out.SkippedCancelled++
			return nil
		}
		n, err := r.store.TransitionStatus(ctx, existing.ID, model.StatusCancelled, model.StatusDetected)
		if err != nil {
			return err
		}
		if n > 0 {
			out.Resurrected++
			r.log.Info().Str("subscription_id", existing.ID).Str("merchant", merchant).Msg("resurrected cancelled subscription")
		}
	}

	if err := r.store.UpdateSubscriptionDetails(ctx, existing.ID, amount, interval); err != nil {
		return err
	}
	out.Updated++
	return nil
}
