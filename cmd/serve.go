package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/josephgoksu/taskmail/internal/server"
)

// shutdownTimeout bounds how long in-flight requests may finish after a signal.
const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the hourly consolidation sweep",
	Long: `Start the HTTP API (POST /emails, GET /tasks, PATCH /tasks/{id},
POST /consolidate, GET /healthz). Unless sweep.enabled is false, a background
sweep retries deferred emails and consolidates every owner's task list.

SIGINT or SIGTERM stops accepting requests and waits for in-flight ones.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Bool("no-sweep", false, "disable the background sweep")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp("serve")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := a.Pipeline(ctx)
	if err != nil {
		return err
	}
	authBackend, err := a.Auth()
	if err != nil {
		return err
	}

	cfg := a.Config
	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxEmailBytes:  cfg.Server.MaxEmailBytes,
	}, a.Store, orch, authBackend, a.Logger)

	if !isQuiet() {
		fmt.Fprintf(cmd.ErrOrStderr(), "taskmail %s listening on http://%s (auth: %s)\n", version, cfg.Server.Addr, authBackend.Name())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)

	noSweep, _ := cmd.Flags().GetBool("no-sweep")
	if cfg.Sweep.Enabled && !noSweep {
		sweeper := a.Sweeper(orch)
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
