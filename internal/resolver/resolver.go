// Package resolver links provider-native source entities onto the canonical
// taxonomy. Runs are idempotent: only records with a nil canonical link are
// considered, so re-running after a completed pass mutates nothing.
package resolver

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/errors"
	"github.com/agropanel/agriprice-go/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// RunReport summarizes one provider batch within a resolver run.
type RunReport struct {
	RunID    string        `json:"runId"`
	Provider string        `json:"provider"`
	Kind     string        `json:"kind"` // products or countries
	Linked   int           `json:"linked"`
	Created  int           `json:"created"` // canonical products created lazily
	Unlinked int           `json:"unlinked"`
	Failed   int           `json:"failed"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Resolver batch-links unlinked source products and countries for the
// configured providers.
type Resolver struct {
	ds       datastore.Interface
	settings *conf.Settings
	dict     *Dictionary
	logger   *slog.Logger
}

// New creates a resolver with the embedded mapping dictionary.
func New(ds datastore.Interface, settings *conf.Settings) (*Resolver, error) {
	dict, err := LoadDictionary()
	if err != nil {
		return nil, errors.New(err).
			Component("resolver").
			Category(errors.CategoryDictionary).
			Build()
	}
	return &Resolver{
		ds:       ds,
		settings: settings,
		dict:     dict,
		logger:   logging.ForService("resolver"),
	}, nil
}

type batchCounters struct {
	linked   atomic.Int64
	created  atomic.Int64
	unlinked atomic.Int64
	failed   atomic.Int64
}

func (c *batchCounters) fill(r *RunReport) {
	r.Linked = int(c.linked.Load())
	r.Created = int(c.created.Load())
	r.Unlinked = int(c.unlinked.Load())
	r.Failed = int(c.failed.Load())
}

// Run processes every configured provider sequentially, products before
// countries, and returns one report per batch. A failing record is counted
// and skipped; only context cancellation or a batch-level read error aborts
// the run.
func (r *Resolver) Run(ctx context.Context) ([]RunReport, error) {
	runID := uuid.New().String()
	reports := make([]RunReport, 0, len(r.settings.Resolver.Providers)*2)

	for _, provider := range r.settings.Resolver.Providers {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := r.resolveProducts(ctx, runID, provider)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)

		report, err = r.resolveCountries(ctx, runID, provider)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}

	return reports, nil
}

func (r *Resolver) workers() int {
	if w := r.settings.Resolver.Workers; w > 0 {
		return w
	}
	return 4
}

func (r *Resolver) resolveProducts(ctx context.Context, runID, provider string) (RunReport, error) {
	start := time.Now()
	report := RunReport{RunID: runID, Provider: provider, Kind: "products"}

	records, err := r.ds.GetUnlinkedSourceProducts(provider)
	if err != nil {
		return report, r.batchError(err, provider, "loading unlinked source products")
	}
	products, err := r.ds.GetAllProducts()
	if err != nil {
		return report, r.batchError(err, provider, "loading canonical products")
	}
	matchers := newProductMatchers(r.dict, products)

	var counters batchCounters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())

	for _, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.resolveOneProduct(rec, matchers, &counters)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	counters.fill(&report)
	report.Elapsed = time.Since(start)
	r.logger.Info("product batch resolved",
		"run_id", runID, "provider", provider,
		"linked", report.Linked, "created", report.Created,
		"unlinked", report.Unlinked, "failed", report.Failed,
		"elapsed_ms", report.Elapsed.Milliseconds())
	return report, nil
}

// resolveOneProduct links a single source product. Failures are counted, never
// propagated, so one bad record cannot sink the batch.
func (r *Resolver) resolveOneProduct(rec datastore.SourceProduct, matchers []Matcher, counters *batchCounters) {
	candidate := Candidate{Provider: rec.Provider, Code: rec.Code, Name: rec.Name}
	match, tier, ok := firstMatch(matchers, candidate)
	if !ok {
		counters.unlinked.Add(1)
		return
	}

	product, err := r.ds.GetProductBySlug(match.Slug)
	switch {
	case err == nil:
		// linked below
	case errors.Is(err, gorm.ErrRecordNotFound) && match.Mapping != nil && r.settings.Resolver.LazyCreate:
		var created bool
		product, created, err = r.ds.GetOrCreateProduct(&datastore.GlobalProduct{
			Slug:        match.Mapping.Slug,
			Name:        match.Mapping.Name,
			DefaultUnit: match.Mapping.DefaultUnit,
			Active:      true,
		})
		if err != nil {
			r.recordFailure(counters, rec.Provider, rec.Code, err)
			return
		}
		if created {
			counters.created.Add(1)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		counters.unlinked.Add(1)
		return
	default:
		r.recordFailure(counters, rec.Provider, rec.Code, err)
		return
	}

	if err := r.ds.LinkSourceProduct(rec.ID, &product.ID); err != nil {
		r.recordFailure(counters, rec.Provider, rec.Code, err)
		return
	}
	counters.linked.Add(1)
	r.logger.Debug("source product linked",
		"provider", rec.Provider, "code", rec.Code,
		"slug", match.Slug, "tier", tier, "confidence", match.Confidence)
}

func (r *Resolver) resolveCountries(ctx context.Context, runID, provider string) (RunReport, error) {
	start := time.Now()
	report := RunReport{RunID: runID, Provider: provider, Kind: "countries"}

	records, err := r.ds.GetUnlinkedSourceCountries(provider)
	if err != nil {
		return report, r.batchError(err, provider, "loading unlinked source countries")
	}
	countries, err := r.ds.GetAllCountries()
	if err != nil {
		return report, r.batchError(err, provider, "loading canonical countries")
	}
	matchers := newCountryMatchers(r.dict, countries)

	var counters batchCounters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())

	for _, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.resolveOneCountry(rec, matchers, &counters)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	counters.fill(&report)
	report.Elapsed = time.Since(start)
	r.logger.Info("country batch resolved",
		"run_id", runID, "provider", provider,
		"linked", report.Linked, "unlinked", report.Unlinked,
		"failed", report.Failed,
		"elapsed_ms", report.Elapsed.Milliseconds())
	return report, nil
}

// resolveOneCountry links a single source country. Countries are never created
// lazily; the ISO taxonomy is seeded, not discovered.
func (r *Resolver) resolveOneCountry(rec datastore.SourceCountry, matchers []Matcher, counters *batchCounters) {
	candidate := Candidate{Provider: rec.Provider, Code: rec.Code, Name: rec.Name}
	match, tier, ok := firstMatch(matchers, candidate)
	if !ok {
		counters.unlinked.Add(1)
		return
	}

	country, err := r.ds.GetCountryByCode(match.Slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counters.unlinked.Add(1)
		return
	}
	if err != nil {
		r.recordFailure(counters, rec.Provider, rec.Code, err)
		return
	}

	if err := r.ds.LinkSourceCountry(rec.ID, &country.ID); err != nil {
		r.recordFailure(counters, rec.Provider, rec.Code, err)
		return
	}
	counters.linked.Add(1)
	r.logger.Debug("source country linked",
		"provider", rec.Provider, "code", rec.Code,
		"iso2", match.Slug, "tier", tier, "confidence", match.Confidence)
}

func (r *Resolver) recordFailure(counters *batchCounters, provider, code string, err error) {
	counters.failed.Add(1)
	r.logger.Error("record resolution failed",
		"provider", provider, "code", code, "error", err)
}

func (r *Resolver) batchError(err error, provider, op string) error {
	return errors.New(err).
		Component("resolver").
		Category(errors.CategoryResolver).
		Context("provider", provider).
		Context("operation", op).
		Build()
}
