package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cadence is the inferred recurrence period of a merchant's charges.
type Cadence string

const (
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceUnknown Cadence = "unknown"
)

// SeriesFeatures is the diagnostic payload stored alongside a series.
type SeriesFeatures struct {
	Count         int `json:"count_in_window"`
	MedianGapDays int `json:"median_gap_days"`
}

// RecurringSeries is a candidate recurring charge for one merchant.
// At most one exists per (UserID, MerchantSlug).
type RecurringSeries struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	MerchantSlug    string          `json:"merchant_slug"`
	MerchantDisplay string          `json:"merchant_display"`
	Cadence         Cadence         `json:"cadence"`
	AvgAmount       decimal.Decimal `json:"avg_amount"`
	Confidence      float64         `json:"confidence"`
	LastCharge      time.Time       `json:"last_charge"`
	NextEstimated   *time.Time      `json:"next_estimated,omitempty"`
	Features        SeriesFeatures  `json:"features"`

	// RunID identifies the detection run that last observed this merchant.
	// SeenInLastRun is false for merchants the most recent run did not observe.
	RunID         string    `json:"run_id,omitempty"`
	SeenInLastRun bool      `json:"seen_in_last_run"`
	UpdatedAt     time.Time `json:"updated_at"`
}
