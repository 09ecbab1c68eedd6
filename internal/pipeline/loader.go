// Package pipeline runs detection for a user: fetch every linked account,
// detect recurring series, persist them and reconcile the registry.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/ravgrowth/ravbot/internal/source"
)

// FetchError records one account whose fetch failed. It never aborts a run.
type FetchError struct {
	AccountID string
	Err       error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("account %s: %v", e.AccountID, e.Err)
}

func (e FetchError) Unwrap() error { return e.Err }

// FetchResult holds the output of a concurrent fetch across accounts.
type FetchResult struct {
	Transactions []model.Transaction
	Fetched      int
	Errors       []FetchError
}

// ProgressFunc is called as accounts finish.
// current is the number of accounts processed so far, total is the total count.
type ProgressFunc func(current, total int)

// FetchAll fetches every account through a bounded worker pool. Each call runs
// under its own timeout; a failed or timed-out account is recorded in Errors
// and excluded, never failing the whole fetch.
func FetchAll(ctx context.Context, f source.Fetcher, accounts []model.LinkedAccount, start, end time.Time,
	workers int, timeout time.Duration, progressFn ProgressFunc) FetchResult {
	if len(accounts) == 0 {
		return FetchResult{}
	}

	if workers < 1 {
		workers = 4
	}
	if workers > len(accounts) {
		workers = len(accounts)
	}

	type fetched struct {
		txns []model.Transaction
		err  error
	}

	work := make(chan int, len(accounts))
	results := make([]fetched, len(accounts))
	var wg sync.WaitGroup
	var processed atomic.Int64

	for i := range accounts {
		work <- i
	}
	close(work)

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				txns, err := fetchOne(ctx, f, accounts[idx], start, end, timeout)
				results[idx] = fetched{txns: txns, err: err}
				n := processed.Add(1)
				if progressFn != nil {
					progressFn(int(n), len(accounts))
				}
			}
		}()
	}

	wg.Wait()

	var out FetchResult
	for i, r := range results {
		if r.err != nil {
			out.Errors = append(out.Errors, FetchError{AccountID: accounts[i].ID, Err: r.err})
			continue
		}
		out.Fetched++
		out.Transactions = append(out.Transactions, r.txns...)
	}
	return out
}

func fetchOne(ctx context.Context, f source.Fetcher, acc model.LinkedAccount, start, end time.Time,
	timeout time.Duration) ([]model.Transaction, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// A fetcher that ignores ctx must not hold the run past its deadline.
	type reply struct {
		txns []model.Transaction
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("%w: fetcher panic: %v", source.ErrUpstream, r)}
			}
		}()
		t, e := f.FetchTransactions(ctx, acc.Token, start, end)
		done <- reply{txns: t, err: e}
	}()

	select {
	case r := <-done:
		return r.txns, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
