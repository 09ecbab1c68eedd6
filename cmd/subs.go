package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/ravgrowth/ravbot/internal/cli"
	"github.com/ravgrowth/ravbot/internal/lifecycle"
	"github.com/ravgrowth/ravbot/internal/present"
	"github.com/spf13/cobra"
)

var (
	flagSubsSort     string
	flagSubsAll      bool
	flagHistoryLimit int
)

var subsCmd = &cobra.Command{
	Use:     "subs",
	Aliases: []string{"subscriptions"},
	Short:   "List subscriptions with cancellation guidance",
	RunE:    runSubs,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <subscription-id>",
	Short: "Mark a subscription as cancelled after cancelling it with the merchant",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

var historyCmd = &cobra.Command{
	Use:   "history <subscription-id>",
	Short: "Show the audit trail of a subscription, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Show recurring series from the latest detection runs",
	RunE:  runSeries,
}

func init() {
	subsCmd.Flags().StringVar(&flagSubsSort, "sort", "price", "Sort by price or first-seen")
	subsCmd.Flags().BoolVarP(&flagSubsAll, "all", "a", false, "Include cancelled subscriptions")
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "l", 20, "Maximum entries to show (0 for all)")

	rootCmd.AddCommand(subsCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(seriesCmd)
}

func runSubs(_ *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	subs, err := e.store.ListSubscriptions(context.Background(), flagUser)
	if err != nil {
		return err
	}
	rows := present.View(subs, present.Options{
		Sort:          present.ParseSortKey(flagSubsSort),
		ShowCancelled: flagSubsAll,
	})
	if len(rows) == 0 {
		fmt.Println("\n  No subscriptions found. Run `ravbot detect` first.")
		return nil
	}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		merchant := r.Merchant
		if r.Count > 1 {
			merchant = fmt.Sprintf("%s (x%d)", merchant, r.Count)
		}
		table = append(table, []string{
			merchant,
			cli.FormatMoney(r.Amount),
			r.Interval,
			cli.RenderStatus(r.Status, present.StatusLabel(r.Status)),
			cli.FormatMoney(r.YearlyCost),
			cli.FormatDate(r.FirstSeen),
			r.ID,
		})
	}
	totals := present.Sum(rows)
	table = append(table, []string{"---"}, []string{
		fmt.Sprintf("%d active", totals.Active), cli.FormatMoney(totals.Monthly), "monthly", "", cli.FormatMoney(totals.Yearly), "", "",
	})

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Subscriptions",
		Headers: []string{"Merchant", "Amount", "Every", "Status", "Yearly", "First Seen", "ID"},
		Rows:    table,
	}))

	fmt.Println()
	fmt.Println("  How to cancel:")
	for _, r := range rows {
		if r.Status.Terminal() {
			continue
		}
		fmt.Printf("    %-24s %s\n", cli.Truncate(r.Merchant, 24), r.Guidance.URL)
	}
	fmt.Println()
	return nil
}

func runCancel(_ *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.lifecycle().Cancel(context.Background(), flagUser, args[0])
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return fmt.Errorf("no subscription %s", args[0])
	case errors.Is(err, lifecycle.ErrForbidden):
		return fmt.Errorf("subscription %s belongs to another user", args[0])
	case err != nil:
		return err
	}

	fmt.Printf("  %s: %s\n", args[0], cli.RenderStatus(res.Status, present.StatusLabel(res.Status)))
	for _, w := range res.Warnings {
		fmt.Println(cli.RenderWarning(w))
	}
	return nil
}

func runHistory(_ *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	actions, err := e.lifecycle().History(context.Background(), flagUser, args[0], flagHistoryLimit)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		fmt.Println("  No audit entries.")
		return nil
	}

	rows := make([][]string, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, []string{a.CreatedAt.Local().Format("2006-01-02 15:04:05"), a.Action, cli.FormatDetails(a.Details)})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "History " + args[0],
		Headers: []string{"When", "Action", "Details"},
		Rows:    rows,
	}))
	return nil
}

func runSeries(_ *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	series, err := e.store.ListSeries(context.Background(), flagUser)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		fmt.Println("\n  No recurring series yet. Run `ravbot detect` first.")
		return nil
	}

	rows := make([][]string, 0, len(series))
	for _, s := range series {
		seen := "yes"
		if !s.SeenInLastRun {
			seen = "no"
		}
		rows = append(rows, []string{
			s.MerchantDisplay,
			string(s.Cadence),
			cli.FormatMoney(s.AvgAmount),
			cli.FormatNumber(int64(s.Features.Count)),
			cli.FormatDate(s.LastCharge),
			cli.FormatDatePtr(s.NextEstimated),
			seen,
		})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Recurring Series",
		Headers: []string{"Merchant", "Cadence", "Average", "Charges", "Last", "Next", "Last Run"},
		Rows:    rows,
	}))
	return nil
}
