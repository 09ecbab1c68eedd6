// Package store provides the SQLite-backed datastore for accounts, series,
// subscriptions and the subscription audit log.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite" // register sqlite driver
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPersistence wraps datastore write failures.
	ErrPersistence = errors.New("persistence failure")
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the relational datastore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock replaces the time source used for created_at/updated_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) stamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, v)
	}
	return t
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// AddAccount stores a linked account, assigning an id when empty.
func (s *Store) AddAccount(ctx context.Context, acc model.LinkedAccount) (model.LinkedAccount, error) {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	acc.CreatedAt = parseTime(s.stamp())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO linked_accounts (id, user_id, token, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		acc.ID, acc.UserID, acc.Token, acc.Name, formatTime(acc.CreatedAt))
	if err != nil {
		return acc, persistErr("insert account", err)
	}
	return acc, nil
}

// ListAccounts returns the user's linked accounts, oldest first.
func (s *Store) ListAccounts(ctx context.Context, userID string) ([]model.LinkedAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, token, name, created_at FROM linked_accounts
		 WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.LinkedAccount
	for rows.Next() {
		var a model.LinkedAccount
		var created string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Token, &a.Name, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertSeries writes one detection run's series for the user in a single
// transaction. Rows of the user not touched by runID are marked unseen.
func (s *Store) UpsertSeries(ctx context.Context, userID, runID string, series []model.RecurringSeries) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin series upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.stamp()
	for _, rs := range series {
		features, err := json.Marshal(rs.Features)
		if err != nil {
			return fmt.Errorf("encoding features: %w", err)
		}
		var next sql.NullString
		if rs.NextEstimated != nil {
			next = sql.NullString{String: formatTime(*rs.NextEstimated), Valid: true}
		}
		id := rs.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO recurring_series
			(id, user_id, merchant_slug, merchant_display, cadence, avg_amount, confidence,
			 last_charge, next_estimated, features, run_id, seen_in_last_run, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
			ON CONFLICT (user_id, merchant_slug) DO UPDATE SET
				merchant_display = excluded.merchant_display,
				cadence          = excluded.cadence,
				avg_amount       = excluded.avg_amount,
				confidence       = excluded.confidence,
				last_charge      = excluded.last_charge,
				next_estimated   = excluded.next_estimated,
				features         = excluded.features,
				run_id           = excluded.run_id,
				seen_in_last_run = 1,
				updated_at       = excluded.updated_at`,
			id, userID, rs.MerchantSlug, rs.MerchantDisplay, string(rs.Cadence), rs.AvgAmount.String(),
			rs.Confidence, formatTime(rs.LastCharge), next, string(features), runID, now,
		)
		if err != nil {
			return persistErr("upsert series "+rs.MerchantSlug, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE recurring_series SET seen_in_last_run = 0 WHERE user_id = ? AND run_id <> ?`,
		userID, runID)
	if err != nil {
		return persistErr("mark unseen series", err)
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit series upsert", err)
	}
	return nil
}

// ListSeries returns the user's persisted series ordered by slug.
func (s *Store) ListSeries(ctx context.Context, userID string) ([]model.RecurringSeries, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, user_id, merchant_slug, merchant_display, cadence, avg_amount, confidence,
		last_charge, next_estimated, features, run_id, seen_in_last_run, updated_at
		FROM recurring_series WHERE user_id = ? ORDER BY merchant_slug`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.RecurringSeries
	for rows.Next() {
		var rs model.RecurringSeries
		var cadence, amount, last, features, updated string
		var next sql.NullString
		var seen int
		err := rows.Scan(&rs.ID, &rs.UserID, &rs.MerchantSlug, &rs.MerchantDisplay, &cadence, &amount,
			&rs.Confidence, &last, &next, &features, &rs.RunID, &seen, &updated)
		if err != nil {
			return nil, err
		}
		rs.Cadence = model.Cadence(cadence)
		rs.AvgAmount, _ = decimal.NewFromString(amount)
		rs.LastCharge = parseTime(last)
		if next.Valid && next.String != "" {
			t := parseTime(next.String)
			rs.NextEstimated = &t
		}
		_ = json.Unmarshal([]byte(features), &rs.Features)
		rs.SeenInLastRun = seen != 0
		rs.UpdatedAt = parseTime(updated)
		out = append(out, rs)
	}
	return out, rows.Err()
}
