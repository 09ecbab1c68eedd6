package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ravgrowth/ravbot/internal/detect"
	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/ravgrowth/ravbot/internal/registry"
	"github.com/ravgrowth/ravbot/internal/source"
	"github.com/rs/zerolog"
)

// Store is the subset of the datastore a detection run needs.
type Store interface {
	ListAccounts(ctx context.Context, userID string) ([]model.LinkedAccount, error)
	UpsertSeries(ctx context.Context, userID, runID string, series []model.RecurringSeries) error
}

// Reconciler promotes detected series into subscriptions.
type Reconciler interface {
	Reconcile(ctx context.Context, userID string, series []model.RecurringSeries) (registry.Outcome, error)
}

// Options tunes a detection run.
type Options struct {
	WindowDays   int
	Bounds       detect.Bounds
	Workers      int
	FetchTimeout time.Duration
	Now          func() time.Time
	Progress     ProgressFunc
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		WindowDays:   detect.DefaultWindowDays,
		Bounds:       detect.DefaultBounds(),
		Workers:      4,
		FetchTimeout: 10 * time.Second,
	}
}

// Result summarizes one detection run.
type Result struct {
	RunID       string                  `json:"run_id"`
	Found       []string                `json:"found"`
	Inserted    int                     `json:"inserted"`
	Updated     int                     `json:"updated"`
	Series      []model.RecurringSeries `json:"series"`
	FetchErrors []FetchError            `json:"-"`
	Accounts    int                     `json:"accounts"`
}

// Runner executes detection runs.
type Runner struct {
	store    Store
	fetcher  source.Fetcher
	registry Reconciler
	opts     Options
	log      zerolog.Logger
}

// NewRunner wires a runner from its collaborators.
func NewRunner(s Store, f source.Fetcher, r Reconciler, opts Options, log zerolog.Logger) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{store: s, fetcher: f, registry: r, opts: opts, log: log}
}

// Run fetches every linked account of the user, detects recurring series,
// persists them and reconciles the registry. Accounts that fail to fetch are
// reported in FetchErrors; if all fail the run still succeeds with nothing found.
func (r *Runner) Run(ctx context.Context, userID string) (Result, error) {
	return r.RunWithProgress(ctx, userID, r.opts.Progress)
}

// RunWithProgress is Run with a per-call progress callback in place of the
// one in Options.
func (r *Runner) RunWithProgress(ctx context.Context, userID string, progressFn ProgressFunc) (Result, error) {
	res := Result{RunID: uuid.NewString(), Found: []string{}}

	accounts, err := r.store.ListAccounts(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("listing accounts: %w", err)
	}
	res.Accounts = len(accounts)

	now := r.opts.Now()
	start, end := detect.Window(now, windowDays(r.opts.WindowDays))
	fetched := FetchAll(ctx, r.fetcher, accounts, start, end, r.opts.Workers, r.opts.FetchTimeout, progressFn)
	res.FetchErrors = fetched.Errors
	for _, fe := range fetched.Errors {
		r.log.Warn().Str("user_id", userID).Str("account_id", fe.AccountID).Err(fe.Err).Msg("fetch transactions failed")
	}

	res.Series = detect.Detect(fetched.Transactions, detect.Options{
		UserID:     userID,
		Now:        now,
		WindowDays: r.opts.WindowDays,
		Bounds:     r.opts.Bounds,
	})
	for i := range res.Series {
		res.Series[i].RunID = res.RunID
	}

	if err := r.store.UpsertSeries(ctx, userID, res.RunID, res.Series); err != nil {
		return res, fmt.Errorf("saving series: %w", err)
	}

	outcome, err := r.registry.Reconcile(ctx, userID, res.Series)
	if err != nil {
		return res, fmt.Errorf("reconciling subscriptions: %w", err)
	}
	res.Found = outcome.Found
	res.Inserted = outcome.Inserted
	res.Updated = outcome.Updated

	r.log.Info().
		Str("user_id", userID).
		Str("run_id", res.RunID).
		Int("accounts", res.Accounts).
		Int("failed_accounts", len(res.FetchErrors)).
		Int("transactions", len(fetched.Transactions)).
		Int("series", len(res.Series)).
		Int("found", len(res.Found)).
		Int("inserted", res.Inserted).
		Msg("detection run complete")

	return res, nil
}

func windowDays(n int) int {
	if n <= 0 {
		return detect.DefaultWindowDays
	}
	return n
}
