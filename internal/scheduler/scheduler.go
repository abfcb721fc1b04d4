// Package scheduler runs the background jobs: periodic conversion table
// refreshes and nightly resolver passes.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/convert"
	"github.com/agropanel/agriprice-go/internal/errors"
	"github.com/agropanel/agriprice-go/internal/logging"
	"github.com/agropanel/agriprice-go/internal/observability"
	"github.com/agropanel/agriprice-go/internal/resolver"
)

const jobTimeout = 10 * time.Minute

// Scheduler owns the cron runner and its registered jobs.
type Scheduler struct {
	cron     *cron.Cron
	settings *conf.Settings
	rates    *convert.Cache
	fetcher  *convert.Fetcher
	resolver *resolver.Resolver
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New creates a scheduler. The fetcher may be nil when no external rates
// provider is configured; refreshes then reload from the datastore only.
func New(settings *conf.Settings, rates *convert.Cache, fetcher *convert.Fetcher,
	res *resolver.Resolver, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		settings: settings,
		rates:    rates,
		fetcher:  fetcher,
		resolver: res,
		metrics:  metrics,
		logger:   logging.ForService("scheduler"),
	}
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.settings.Conversion.RefreshCron, s.refreshRates); err != nil {
		return errors.New(err).
			Component("scheduler").
			Category(errors.CategoryConfiguration).
			Context("schedule", s.settings.Conversion.RefreshCron).
			Build()
	}
	// An empty resolver schedule disables the job.
	if schedule := s.settings.Resolver.Schedule; schedule != "" {
		if _, err := s.cron.AddFunc(schedule, s.runResolver); err != nil {
			return errors.New(err).
				Component("scheduler").
				Category(errors.CategoryConfiguration).
				Context("schedule", schedule).
				Build()
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"rates_schedule", s.settings.Conversion.RefreshCron,
		"resolver_schedule", s.settings.Resolver.Schedule)
	return nil
}

// Stop halts the cron runner and waits for running jobs to finish or the
// context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the number of registered cron entries.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// refreshRates pulls fresh currency rates when a provider is configured, then
// swaps in a new conversion snapshot.
func (s *Scheduler) refreshRates() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.RefreshRatesNow(ctx)
}

// RefreshRatesNow performs one refresh cycle. Exposed for the CLI.
func (s *Scheduler) RefreshRatesNow(ctx context.Context) {
	if s.fetcher != nil && s.settings.Conversion.Provider.Enabled {
		count, err := s.fetcher.FetchAndStore(ctx)
		if err != nil {
			s.logger.Error("rates fetch failed", "error", err)
			// Stale stored rates still beat an empty table; fall through to
			// the snapshot reload.
		} else {
			s.logger.Info("rates fetched", "count", count)
		}
	}

	err := s.rates.Refresh(ctx)
	s.metrics.RecordRatesRefresh(err)
	if err != nil {
		s.logger.Error("conversion snapshot refresh failed", "error", err)
	}
}

// runResolver executes one full resolver pass.
func (s *Scheduler) runResolver() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	reports, err := s.resolver.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled resolver run failed", "error", err)
		return
	}
	for _, r := range reports {
		s.metrics.RecordResolverBatch(r.Provider, r.Kind, r.Linked, r.Created, r.Unlinked, r.Failed)
	}
}
