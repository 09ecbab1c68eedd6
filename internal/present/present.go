// Package present folds persisted subscription rows into the deduplicated
// list a user sees. It never writes back to the store.
package present

import (
	"sort"
	"strings"
	"time"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/shopspring/decimal"
)

// SortKey selects the ordering of a view.
type SortKey string

const (
	ByPrice     SortKey = "price"      // amount descending
	ByFirstSeen SortKey = "first-seen" // earliest update ascending
)

// ParseSortKey maps user input to a sort key, defaulting to ByPrice.
func ParseSortKey(s string) SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first-seen", "first_seen", "date":
		return ByFirstSeen
	default:
		return ByPrice
	}
}

// Row is one merged merchant group.
type Row struct {
	Key        string          `json:"key"`
	ID         string          `json:"id"` // representative subscription to act on
	IDs        []string        `json:"ids"`
	Merchant   string          `json:"merchant_name"`
	Amount     decimal.Decimal `json:"amount"`
	Interval   string          `json:"interval"`
	Status     model.Status    `json:"status"`
	Count      int             `json:"count"`
	FirstSeen  time.Time       `json:"first_seen"`
	YearlyCost decimal.Decimal `json:"yearly_cost"`
	Guidance   Guidance        `json:"guidance"`
}

// DedupKey is the merge key for a merchant name: lowercase with every run of
// non-alphanumeric characters collapsed to a single space.
func DedupKey(name string) string {
	return model.NormalizeName(name)
}

// statusRank orders statuses for the merged row: lower wins.
func statusRank(s model.Status) int {
	switch s {
	case model.StatusDetected:
		return 0
	case model.StatusCancelPending:
		return 1
	default:
		return 2
	}
}

// Merge groups rows by DedupKey. A group takes the highest amount, the most
// active status (detected, then cancel_pending, then cancelled), the earliest
// UpdatedAt as FirstSeen, and the merchant name and interval of its earliest
// row. Rows with an empty merchant name are dropped. Groups come back in
// first-appearance order.
func Merge(subs []model.Subscription) []Row {
	index := make(map[string]int)
	var rows []Row
	for _, s := range subs {
		key := DedupKey(s.MerchantName)
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			index[key] = len(rows)
			rows = append(rows, Row{
				Key:       key,
				ID:        s.ID,
				IDs:       []string{s.ID},
				Merchant:  strings.TrimSpace(s.MerchantName),
				Amount:    s.Amount,
				Interval:  s.Interval,
				Status:    s.Status,
				Count:     1,
				FirstSeen: s.UpdatedAt,
			})
			continue
		}

		r := &rows[i]
		r.Count++
		r.IDs = append(r.IDs, s.ID)
		if s.Amount.GreaterThan(r.Amount) {
			r.Amount = s.Amount
		}
		if statusRank(s.Status) < statusRank(r.Status) {
			r.Status = s.Status
			r.ID = s.ID
		}
		if s.UpdatedAt.Before(r.FirstSeen) {
			r.FirstSeen = s.UpdatedAt
			r.Merchant = strings.TrimSpace(s.MerchantName)
			r.Interval = s.Interval
		}
	}

	for i := range rows {
		rows[i].YearlyCost = YearlyCost(rows[i])
		rows[i].Guidance = GuidanceFor(rows[i].Merchant)
	}
	return rows
}

// Options controls View.
type Options struct {
	Sort          SortKey
	ShowCancelled bool
}

// View merges subs, hides cancelled groups unless requested, and sorts.
// Ties are broken by key so the order is stable.
func View(subs []model.Subscription, opts Options) []Row {
	merged := Merge(subs)
	rows := merged[:0]
	for _, r := range merged {
		if r.Status == model.StatusCancelled && !opts.ShowCancelled {
			continue
		}
		rows = append(rows, r)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if opts.Sort == ByFirstSeen {
			if !a.FirstSeen.Equal(b.FirstSeen) {
				return a.FirstSeen.Before(b.FirstSeen)
			}
		} else if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Key < b.Key
	})
	return rows
}

// StatusLabel is the display label of a status.
func StatusLabel(s model.Status) string {
	switch s {
	case model.StatusDetected:
		return "Detected"
	case model.StatusCancelPending:
		return "Cancel Pending"
	case model.StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}
