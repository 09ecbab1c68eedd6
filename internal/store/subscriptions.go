package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/shopspring/decimal"
)

const subscriptionColumns = `id, user_id, merchant_name, amount, interval, status, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (model.Subscription, error) {
	var sub model.Subscription
	var amount, status, created, updated string
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.MerchantName, &amount, &sub.Interval, &status, &created, &updated); err != nil {
		return sub, err
	}
	sub.Amount, _ = decimal.NewFromString(amount)
	sub.Status = model.Status(status)
	sub.CreatedAt = parseTime(created)
	sub.UpdatedAt = parseTime(updated)
	return sub, nil
}

func (s *Store) querySubscriptions(ctx context.Context, query string, args ...any) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// GetSubscription returns the subscription with the given id, or ErrNotFound.
func (s *Store) GetSubscription(ctx context.Context, id string) (model.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, ErrNotFound
	}
	return sub, err
}

// ListSubscriptions returns every subscription row of the user, oldest first.
func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]model.Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// FindSubscriptionByMerchant returns the user's oldest subscription whose
// merchant slug equals Slugify(merchant), or ErrNotFound.
func (s *Store) FindSubscriptionByMerchant(ctx context.Context, userID, merchant string) (model.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ? AND merchant_key = ? ORDER BY created_at, id LIMIT 1`,
		userID, model.Slugify(merchant))
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, ErrNotFound
	}
	return sub, err
}

// InsertSubscription stores a new subscription, assigning id and timestamps.
func (s *Store) InsertSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = model.StatusDetected
	}
	now := s.stamp()
	sub.CreatedAt = parseTime(now)
	sub.UpdatedAt = sub.CreatedAt
	_, err := s.db.ExecContext(ctx, `INSERT INTO subscriptions
		(id, user_id, merchant_name, merchant_key, amount, interval, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.MerchantName, model.Slugify(sub.MerchantName), sub.Amount.String(),
		sub.Interval, string(sub.Status), now, now)
	if err != nil {
		return sub, persistErr("insert subscription", err)
	}
	return sub, nil
}

// UpdateSubscriptionDetails refreshes amount and interval without touching status.
func (s *Store) UpdateSubscriptionDetails(ctx context.Context, id string, amount decimal.Decimal, interval string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET amount = ?, interval = ?, updated_at = ? WHERE id = ?`,
		amount.String(), interval, s.stamp(), id)
	if err != nil {
		return persistErr("update subscription", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus moves a subscription from one status to another only if it
// is currently in from. It returns the number of rows changed: zero means the
// row was missing or already moved by someone else.
func (s *Store) TransitionStatus(ctx context.Context, id string, from, to model.Status) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), s.stamp(), id, string(from))
	if err != nil {
		return 0, persistErr("transition subscription", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistErr("transition subscription", err)
	}
	return n, nil
}

// ListStaleByStatus returns userID's subscriptions in status whose last update
// is before the cutoff. An empty userID lists every user's rows.
func (s *Store) ListStaleByStatus(ctx context.Context, userID string, status model.Status, before time.Time) ([]model.Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE (? = '' OR user_id = ?) AND status = ? AND updated_at < ? ORDER BY updated_at, id`,
		userID, userID, string(status), formatTime(before))
}

// AppendAction appends one audit entry. Entries are never updated or deleted.
func (s *Store) AppendAction(ctx context.Context, a model.SubscriptionAction) (model.SubscriptionAction, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := s.stamp()
	a.CreatedAt = parseTime(now)

	var details sql.NullString
	if len(a.Details) > 0 {
		b, err := json.Marshal(a.Details)
		if err != nil {
			return a, persistErr("encode action details", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO subscription_actions
		(id, user_id, subscription_id, action, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.SubscriptionID, a.Action, details, now)
	if err != nil {
		return a, persistErr("append action", err)
	}
	return a, nil
}

// ListActions returns up to limit audit entries for the subscription, newest
// first. A non-positive limit returns all entries.
func (s *Store) ListActions(ctx context.Context, subscriptionID string, limit int) ([]model.SubscriptionAction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, subscription_id, action, details, created_at
		FROM subscription_actions WHERE subscription_id = ? ORDER BY seq DESC LIMIT ?`,
		subscriptionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.SubscriptionAction
	for rows.Next() {
		var a model.SubscriptionAction
		var details sql.NullString
		var created string
		if err := rows.Scan(&a.ID, &a.UserID, &a.SubscriptionID, &a.Action, &details, &created); err != nil {
			return nil, err
		}
		if details.Valid && details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &a.Details)
		}
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
