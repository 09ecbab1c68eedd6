package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/shopspring/decimal"
)

// CSVFetcher reads transactions from CSV exports. The account token is the
// path of the file, resolved against Dir when relative.
//
// The header row must name date, name and amount; merchant_name, id and
// account_id are optional. Dates are YYYY-MM-DD.
type CSVFetcher struct {
	Dir string
}

// FetchTransactions parses the file named by accountToken and returns rows
// whose calendar date falls within the days of start and end.
func (f CSVFetcher) FetchTransactions(ctx context.Context, accountToken string, start, end time.Time) ([]model.Transaction, error) {
	path := accountToken
	if f.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Dir, path)
	}

	file, err := os.Open(path) //nolint:gosec // path comes from the user's own account list
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrUpstream, path, err)
	}
	defer func() { _ = file.Close() }()

	txns, err := ParseCSV(file, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, path, err)
	}

	from, to := model.CalendarDate(start), model.CalendarDate(end)
	out := txns[:0]
	for _, t := range txns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d := model.CalendarDate(t.Date); d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ParseCSV reads a transaction CSV with a header row. accountID is used for
// rows without an account_id column.
func ParseCSV(r io.Reader, accountID string) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "name", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header missing %q column", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var txns []model.Transaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		date, err := time.Parse(dateLayout, field(rec, "date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", line, field(rec, "date"), err)
		}
		amount, err := decimal.NewFromString(field(rec, "amount"))
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount %q: %w", line, field(rec, "amount"), err)
		}

		txn := model.Transaction{
			ID:           field(rec, "id"),
			AccountID:    field(rec, "account_id"),
			Date:         date,
			MerchantName: field(rec, "merchant_name"),
			Name:         field(rec, "name"),
			Amount:       amount,
		}
		if txn.AccountID == "" {
			txn.AccountID = accountID
		}
		if txn.ID == "" {
			txn.ID = fmt.Sprintf("%s:%d", accountID, line)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// ScanDir returns the CSV files directly under dir, sorted by name.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
