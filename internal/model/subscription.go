package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a subscription.
//
// detected -> cancel_pending -> cancelled. "cancelled" records that the user
// confirmed a cancellation request; it is not a verified fact at the merchant.
type Status string

const (
	StatusDetected      Status = "detected"
	StatusCancelPending Status = "cancel_pending"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool { return s == StatusCancelled }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDetected, StatusCancelPending, StatusCancelled:
		return true
	}
	return false
}

// Subscription is a user-owned recurring charge tracked through the cancellation lifecycle.
type Subscription struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	MerchantName string          `json:"merchant_name"`
	Amount       decimal.Decimal `json:"amount"`
	Interval     string          `json:"interval"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Audit action tags.
const (
	ActionCancelRequest    = "cancel_request"
	ActionCancelSuccess    = "cancel_success"
	ActionFinalizedBySweep = "cancel_finalized_by_sweep"
)

// SubscriptionAction is one append-only audit entry.
type SubscriptionAction struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	SubscriptionID string         `json:"subscription_id"`
	Action         string         `json:"action"`
	Details        map[string]any `json:"details,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
