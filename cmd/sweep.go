package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagSweepOlderThan time.Duration
	flagSweepAllUsers  bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Finalize cancellations left in cancel_pending by interrupted requests",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&flagSweepOlderThan, "older-than", 0, "Minimum age of pending rows (default lifecycle.stale_pending_after_sec)")
	sweepCmd.Flags().BoolVar(&flagSweepAllUsers, "all-users", false, "Sweep every user's rows instead of --user's")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(_ *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	age := flagSweepOlderThan
	if age <= 0 {
		age = e.cfg.Lifecycle.StalePendingAfter()
	}
	user := flagUser
	if flagSweepAllUsers {
		user = ""
	}
	n, err := e.lifecycle().Sweep(context.Background(), user, age)
	if err != nil {
		return err
	}
	fmt.Printf("  Finalized %d pending cancellation(s) older than %s\n", n, age)
	return nil
}
