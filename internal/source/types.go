package source

import (
	"context"
	"time"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/shopspring/decimal"
)

// Fetcher retrieves posted transactions for one linked account within [start, end].
type Fetcher interface {
	FetchTransactions(ctx context.Context, accountToken string, start, end time.Time) ([]model.Transaction, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, accountToken string, start, end time.Time) ([]model.Transaction, error)

// FetchTransactions calls f.
func (f FetcherFunc) FetchTransactions(ctx context.Context, accountToken string, start, end time.Time) ([]model.Transaction, error) {
	return f(ctx, accountToken, start, end)
}

// transactionsRequest is the provider's /transactions/get request body.
type transactionsRequest struct {
	ClientID    string              `json:"client_id"`
	Secret      string              `json:"secret"`
	AccessToken string              `json:"access_token"`
	StartDate   string              `json:"start_date"`
	EndDate     string              `json:"end_date"`
	Options     *transactionsOption `json:"options,omitempty"`
}

type transactionsOption struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
}

// transactionsResponse is the provider's /transactions/get response.
type transactionsResponse struct {
	Transactions      []wireTransaction `json:"transactions"`
	TotalTransactions int               `json:"total_transactions"`
}

// wireTransaction is one transaction as the provider encodes it.
// merchant_name is null when the provider could not canonicalize the merchant.
type wireTransaction struct {
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Date          string          `json:"date"`
	MerchantName  *string         `json:"merchant_name"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
}

// providerError is the provider's error envelope.
type providerError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}
