package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ravgrowth/ravbot/internal/cli"
	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/ravgrowth/ravbot/internal/pipeline"
	"github.com/ravgrowth/ravbot/internal/source"
	"github.com/ravgrowth/ravbot/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagDetectCSV  []string
	flagDetectDays int
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect recurring charges and promote them to subscriptions",
	Long: "Fetch transactions for every linked account, find weekly and monthly charges, " +
		"and add new subscriptions. With --csv, the given files (or every .csv in a " +
		"given directory) are used instead of the linked accounts.",
	RunE: runDetect,
}

var observeCmd = &cobra.Command{
	Use:   "observe <merchant>...",
	Short: "Record merchant names seen by another integration",
	Long: "Each name repeated at least registry.promotion_min_charges times is added " +
		"as a detected subscription with no amount.",
	Args: cobra.MinimumNArgs(1),
	RunE: runObserve,
}

func init() {
	detectCmd.Flags().StringSliceVar(&flagDetectCSV, "csv", nil, "CSV files or directories to read instead of linked accounts")
	detectCmd.Flags().IntVar(&flagDetectDays, "days", 0, "Lookback window in days (default detection.window_days)")
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(observeCmd)
}

// csvAccounts lists CSV files as the user's accounts for a single run.
type csvAccounts struct {
	*store.Store
	accounts []model.LinkedAccount
}

func (c csvAccounts) ListAccounts(context.Context, string) ([]model.LinkedAccount, error) {
	return c.accounts, nil
}

func csvFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, absPath(p))
			continue
		}
		found, err := source.ScanDir(p)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", p, err)
		}
		for _, f := range found {
			files = append(files, absPath(f))
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no CSV files found")
	}
	return files, nil
}

func runDetect(_ *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	var runStore pipeline.Store = e.store
	fetcher := e.fetcher("")
	if len(flagDetectCSV) > 0 {
		files, err := csvFiles(flagDetectCSV)
		if err != nil {
			return err
		}
		accounts := make([]model.LinkedAccount, len(files))
		for i, f := range files {
			accounts[i] = model.LinkedAccount{ID: filepath.Base(f), UserID: flagUser, Token: f, Name: filepath.Base(f)}
		}
		runStore = csvAccounts{Store: e.store, accounts: accounts}
		fetcher = source.CSVFetcher{}
	}

	r := e.runner(runStore, fetcher, flagDetectDays)
	progressFn := func(current, total int) {
		if !flagQuiet {
			fmt.Fprintf(os.Stderr, "\r  Fetching %s", cli.RenderProgressBar(current, total, 20))
		}
	}
	res, err := r.RunWithProgress(context.Background(), flagUser, progressFn)
	if !flagQuiet && res.Accounts > 0 {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if res.Accounts == 0 {
		fmt.Println("\n  No linked accounts. Add one with `ravbot accounts add` or pass --csv.")
		return nil
	}

	rows := make([][]string, 0, len(res.Series))
	for _, s := range res.Series {
		rows = append(rows, []string{
			s.MerchantDisplay,
			string(s.Cadence),
			cli.FormatMoney(s.AvgAmount),
			cli.FormatNumber(int64(s.Features.Count)),
			cli.FormatPercent(s.Confidence),
			cli.FormatDatePtr(s.NextEstimated),
		})
	}

	fmt.Println()
	if len(rows) > 0 {
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Recurring Charges",
			Headers: []string{"Merchant", "Cadence", "Average", "Charges", "Confidence", "Next"},
			Rows:    rows,
		}))
		fmt.Println()
	}

	fmt.Printf("  Found:    %s\n", strings.Join(orNone(res.Found), ", "))
	fmt.Printf("  Inserted: %d\n", res.Inserted)
	if res.Updated > 0 {
		fmt.Printf("  Updated:  %d\n", res.Updated)
	}
	for _, fe := range res.FetchErrors {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("account %s skipped: %v", fe.AccountID, fe.Err)))
	}
	fmt.Println()
	return nil
}

func runObserve(_ *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	out, err := e.registry().ReconcileNames(context.Background(), flagUser, args)
	if err != nil {
		return err
	}
	fmt.Printf("  Found:    %s\n", strings.Join(orNone(out.Found), ", "))
	fmt.Printf("  Inserted: %d\n", out.Inserted)
	return nil
}

func orNone(names []string) []string {
	if len(names) == 0 {
		return []string{"none"}
	}
	return names
}
