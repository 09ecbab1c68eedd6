package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ravgrowth/ravbot/internal/server"
	"github.com/spf13/cobra"
)

var (
	flagServeAddr         string
	flagServeEventsBuffer int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: "Serve detection, subscription listing and cancellation over HTTP. Requests are " +
		"identified by the " + server.UserHeader + " header, set by an authenticating proxy.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "HTTP listen address (default server.addr)")
	serveCmd.Flags().IntVar(&flagServeEventsBuffer, "events-buffer", 200, "Max in-memory events retained")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	addr := flagServeAddr
	if addr == "" {
		addr = e.cfg.Server.Addr
	}

	svc := server.New(server.Config{
		Addr:         addr,
		EventsBuffer: flagServeEventsBuffer,
		SweepAfter:   e.cfg.Lifecycle.StalePendingAfter(),
	}, e.runner(e.store, e.fetcher(""), 0), e.lifecycle(), e.store, e.log)

	fmt.Printf("  ravbot listening on http://%s\n", addr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
