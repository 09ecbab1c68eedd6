// Package model defines domain types for ravbot transactions, recurring series and subscriptions.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one posted bank charge as delivered by the transaction source.
// Not owned by ravbot; consumed transiently during a detection run.
type Transaction struct {
	ID           string
	AccountID    string
	Date         time.Time
	MerchantName string          // canonical merchant label from the provider, may be empty
	Name         string          // raw statement description
	Amount       decimal.Decimal // sign follows the provider; detection uses the absolute value
}

// Label returns the merchant identity used for grouping: the canonical
// merchant label when present, otherwise the raw description.
func (t Transaction) Label() string {
	if m := strings.TrimSpace(t.MerchantName); m != "" {
		return m
	}
	return strings.TrimSpace(t.Name)
}

// LinkedAccount is a user's connection to the transaction source.
// Token is opaque and only ever handed to the source adapter.
type LinkedAccount struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CalendarDate returns t's calendar day, read in t's own location, as UTC
// midnight. Provider dates parse as UTC midnight already, so comparing
// CalendarDate values compares days regardless of the caller's zone.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
