// Package source fetches bank transactions for linked accounts.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ravgrowth/ravbot/internal/model"
)

const (
	defaultBaseURL = "https://sandbox.plaid.com"
	requestTimeout = 10 * time.Second
	maxBodySize    = 8 << 20 // 8 MB
	pageSize       = 500
	dateLayout     = "2006-01-02"
)

var (
	// ErrUpstream indicates the provider failed or returned an unusable response.
	ErrUpstream = errors.New("source: upstream failure")
	// ErrUnauthorized indicates the provider rejected the credentials or access token.
	ErrUnauthorized = fmt.Errorf("%w: unauthorized", ErrUpstream)
	// ErrRateLimited indicates the provider rate limit was hit.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrUpstream)
)

// Client fetches transactions from a Plaid-style /transactions/get endpoint.
type Client struct {
	baseURL  string
	clientID string
	secret   string
	http     *http.Client
}

// NewClient creates a client for the provider at baseURL. An empty baseURL
// selects the sandbox environment. Returns nil if credentials are missing.
func NewClient(baseURL, clientID, secret string) *Client {
	clientID = strings.TrimSpace(clientID)
	secret = strings.TrimSpace(secret)
	if clientID == "" || secret == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   secret,
		http:     &http.Client{},
	}
}

// FetchTransactions returns every transaction of the account dated within
// [start, end], following the provider's offset pagination.
func (c *Client) FetchTransactions(ctx context.Context, accountToken string, start, end time.Time) ([]model.Transaction, error) {
	var out []model.Transaction
	for {
		req := transactionsRequest{
			ClientID:    c.clientID,
			Secret:      c.secret,
			AccessToken: accountToken,
			StartDate:   start.Format(dateLayout),
			EndDate:     end.Format(dateLayout),
			Options:     &transactionsOption{Count: pageSize, Offset: len(out)},
		}

		var resp transactionsResponse
		if err := c.post(ctx, "/transactions/get", req, &resp); err != nil {
			return nil, err
		}

		for _, wt := range resp.Transactions {
			txn, err := wt.toModel()
			if err != nil {
				return nil, err
			}
			out = append(out, txn)
		}

		if len(resp.Transactions) == 0 || len(out) >= resp.TotalTransactions {
			return out, nil
		}
	}
}

func (wt wireTransaction) toModel() (model.Transaction, error) {
	date, err := time.Parse(dateLayout, wt.Date)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("%w: transaction %s: parsing date %q: %w", ErrUpstream, wt.TransactionID, wt.Date, err)
	}
	txn := model.Transaction{
		ID:        wt.TransactionID,
		AccountID: wt.AccountID,
		Date:      date,
		Name:      wt.Name,
		Amount:    wt.Amount,
	}
	if wt.MerchantName != nil {
		txn.MerchantName = *wt.MerchantName
	}
	return txn, nil
}

// post sends a JSON request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("source: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("source: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "github.com/ravgrowth/ravbot/1.0")

	//nolint:gosec // URL is built from configured base URL
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %w", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrUpstream, err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pe providerError
		if json.Unmarshal(body, &pe) == nil && pe.ErrorCode != "" {
			if pe.ErrorCode == "INVALID_ACCESS_TOKEN" || pe.ErrorCode == "ITEM_LOGIN_REQUIRED" {
				return fmt.Errorf("%w: %s", ErrUnauthorized, pe.ErrorMessage)
			}
			return fmt.Errorf("%w: status %d: %s: %s", ErrUpstream, resp.StatusCode, pe.ErrorCode, pe.ErrorMessage)
		}
		return fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parsing response: %w", ErrUpstream, err)
	}
	return nil
}
