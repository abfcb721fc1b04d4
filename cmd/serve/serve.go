// Package serve implements the serve command: the HTTP API plus the
// background scheduler.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/agropanel/agriprice-go/internal/aggregator"
	api "github.com/agropanel/agriprice-go/internal/api/v2"
	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/convert"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/logging"
	"github.com/agropanel/agriprice-go/internal/observability"
	"github.com/agropanel/agriprice-go/internal/resolver"
	"github.com/agropanel/agriprice-go/internal/scheduler"
)

// Command returns the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

func run(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Error("datastore close failed", "error", err)
		}
	}()

	rates := convert.NewCache(ds, settings)
	if err := rates.Refresh(context.Background()); err != nil {
		// Startup proceeds on the empty snapshot; conversions stay identity
		// until the first successful refresh.
		logger.Warn("initial conversion snapshot refresh failed", "error", err)
	}

	var fetcher *convert.Fetcher
	if settings.Conversion.Provider.Enabled {
		fetcher = convert.NewFetcher(ds, settings)
	}

	res, err := resolver.New(ds, settings)
	if err != nil {
		return err
	}
	agg := aggregator.New(ds, settings, rates)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	api.New(e, ds, settings, rates, agg, res, metrics, nil)

	sched := scheduler.New(settings, rates, fetcher, res, metrics)
	if err := sched.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logger.Info("http server starting", "addr", addr)
		errCh <- e.Start(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := sched.Stop(ctx); err != nil {
		logger.Error("scheduler stop failed", "error", err)
	}
	return e.Shutdown(ctx)
}
