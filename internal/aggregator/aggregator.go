// Package aggregator produces normalized, time-aligned price series for one
// canonical product across an ordered set of (country, source) selections.
// Requests are stateless; the only shared state is the conversion snapshot,
// which is pinned once per request.
package aggregator

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/convert"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/errors"
	"github.com/agropanel/agriprice-go/internal/logging"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Selection identifies one requested series: a country and a data provider.
type Selection struct {
	CountryCode string `json:"countryCode"`
	SourceID    string `json:"sourceId"`
}

// Request is a comparison query for a single canonical product.
type Request struct {
	ProductSlug string
	Selections  []Selection
	Granularity Granularity
	Window      datastore.TimeWindow
	Currency    string
	Unit        string

	// optional filters
	PriceStage string
	MarketType string
	MarketID   *uint
	VarietyID  *uint
}

// Point is one chronologically ordered value on the requested time axis.
type Point struct {
	Period string  `json:"period"`
	Price  float64 `json:"price"`
}

// Series is the result for one selection. Requests with N selections always
// yield exactly N series; a selection that matched nothing carries NoData and,
// when it was malformed, a diagnostic DropReason.
type Series struct {
	CountryCode  string  `json:"countryCode"`
	SourceID     string  `json:"sourceId"`
	CountryName  string  `json:"countryName"`
	Currency     string  `json:"currency"`
	Unit         string  `json:"unit"`
	Data         []Point `json:"data"`
	NoData       bool    `json:"noData"`
	Uncalibrated bool    `json:"uncalibrated,omitempty"`
	DropReason   string  `json:"dropReason,omitempty"`
}

// Response is the full comparison result. NoData is set when every selection
// came back empty.
type Response struct {
	Series []Series `json:"series"`
	NoData bool     `json:"noData"`
}

// Aggregator executes comparison queries against the taxonomy store.
type Aggregator struct {
	ds       datastore.Interface
	settings *conf.Settings
	rates    *convert.Cache
	logger   *slog.Logger

	// test hook for the retry backoff
	retryWait time.Duration
}

// New creates an aggregator using the given store and conversion cache.
func New(ds datastore.Interface, settings *conf.Settings, rates *convert.Cache) *Aggregator {
	return &Aggregator{
		ds:        ds,
		settings:  settings,
		rates:     rates,
		logger:    logging.ForService("aggregator"),
		retryWait: 200 * time.Millisecond,
	}
}

func (a *Aggregator) selectionTimeout() time.Duration {
	if s := a.settings.Comparison.SelectionTimeout; s > 0 {
		return time.Duration(s) * time.Second
	}
	return 10 * time.Second
}

// Compare resolves the product, fetches every selection concurrently and
// aligns the results on the requested time axis. A failed or empty selection
// degrades to NoData for that selection only; the call fails outright only for
// an unknown product, invalid input or caller cancellation.
func (a *Aggregator) Compare(ctx context.Context, req Request) (*Response, error) {
	if err := a.validate(req); err != nil {
		return nil, err
	}

	product, err := a.ds.GetProductBySlugOrCode(req.ProductSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("unknown product %q", req.ProductSlug).
				Component("aggregator").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, err
	}

	var stageID *uint
	if req.PriceStage != "" {
		stage, err := a.ds.GetPriceStageByCode(req.PriceStage)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.Newf("unknown price stage %q", req.PriceStage).
					Component("aggregator").
					Category(errors.CategoryNotFound).
					Build()
			}
			return nil, err
		}
		stageID = &stage.ID
	}

	// One immutable snapshot for the whole request keeps all selections on the
	// same rates even if a refresh lands mid-flight.
	table := a.rates.Current()

	series := make([]Series, len(req.Selections))
	g, gctx := errgroup.WithContext(ctx)
	for i, sel := range req.Selections {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var err error
			series[i], err = a.fetchSelection(gctx, table, product.ID, stageID, req, sel)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &Response{Series: series, NoData: true}
	for i := range series {
		if !series[i].NoData {
			resp.NoData = false
			break
		}
	}
	return resp, nil
}

func (a *Aggregator) validate(req Request) error {
	fail := func(format string, args ...any) error {
		return errors.Newf(format, args...).
			Component("aggregator").
			Category(errors.CategoryValidation).
			Build()
	}
	if req.ProductSlug == "" {
		return fail("product is required")
	}
	if !req.Granularity.Valid() {
		return fail("unknown granularity %q", string(req.Granularity))
	}
	if req.Window.End.Before(req.Window.Start) {
		return fail("time window end precedes start")
	}
	if req.Currency == "" || req.Unit == "" {
		return fail("target currency and unit are required")
	}
	if limit := a.settings.Comparison.MaxSelections; limit > 0 && len(req.Selections) > limit {
		return fail("too many selections: %d exceeds limit %d", len(req.Selections), limit)
	}
	return nil
}

var knownProviders = []string{
	datastore.ProviderAgro,
	datastore.ProviderEurostat,
	datastore.ProviderFaostat,
	datastore.ProviderFPMA,
}

// fetchSelection builds the series for one selection. Malformed selections
// and storage failures degrade to NoData; only caller cancellation surfaces
// as an error.
func (a *Aggregator) fetchSelection(ctx context.Context, table *convert.Table, productID uint, stageID *uint, req Request, sel Selection) (Series, error) {
	series := Series{
		CountryCode: sel.CountryCode,
		SourceID:    sel.SourceID,
		Currency:    req.Currency,
		Unit:        req.Unit,
		Data:        []Point{},
		NoData:      true,
	}

	if !slices.Contains(knownProviders, sel.SourceID) {
		series.DropReason = "unknown source " + sel.SourceID
		return series, nil
	}
	country, err := a.ds.GetCountryByCode(sel.CountryCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			series.DropReason = "unknown country code " + sel.CountryCode
		} else {
			series.DropReason = "country lookup failed"
			a.logger.Error("country lookup failed", "country", sel.CountryCode, "error", err)
		}
		return series, nil
	}
	series.CountryName = country.Name

	filter := datastore.SeriesFilter{
		Provider:           sel.SourceID,
		GlobalProductID:    productID,
		GlobalCountryID:    country.ID,
		GlobalPriceStageID: stageID,
		GlobalMarketID:     req.MarketID,
		VarietyID:          req.VarietyID,
		MarketType:         req.MarketType,
	}

	observations, err := a.queryWithRetry(ctx, filter, req.Window)
	if err != nil {
		if ctx.Err() != nil {
			return series, ctx.Err()
		}
		a.logger.Warn("selection degraded to noData",
			"country", sel.CountryCode, "source", sel.SourceID, "error", err)
		return series, nil
	}

	series.Data, series.Uncalibrated = a.bucketize(table, req, observations)
	series.NoData = len(series.Data) == 0
	return series, nil
}

// queryWithRetry issues the observation read bounded by the per-selection
// timeout, retrying once after a short backoff.
func (a *Aggregator) queryWithRetry(ctx context.Context, filter datastore.SeriesFilter, window datastore.TimeWindow) ([]datastore.PriceObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.selectionTimeout())
	defer cancel()

	observations, err := a.boundedQuery(ctx, filter, window)
	if err == nil {
		return observations, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	select {
	case <-time.After(a.retryWait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return a.boundedQuery(ctx, filter, window)
}

type queryResult struct {
	observations []datastore.PriceObservation
	err          error
}

// boundedQuery runs the storage read in its own goroutine so a stalled read
// cannot hold the selection past its deadline. The channel is buffered; a
// late result is discarded, not leaked on.
func (a *Aggregator) boundedQuery(ctx context.Context, filter datastore.SeriesFilter, window datastore.TimeWindow) ([]datastore.PriceObservation, error) {
	done := make(chan queryResult, 1)
	go func() {
		observations, err := a.ds.QueryObservations(filter, window)
		done <- queryResult{observations, err}
	}()

	select {
	case res := <-done:
		return res.observations, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// bucketAcc accumulates normalized values landing in one bucket.
type bucketAcc struct {
	start        time.Time
	label        string
	sum          float64
	count        int
	uncalibrated bool
}

// bucketize normalizes each observation and folds it onto the requested time
// axis. Same-bucket values are averaged; observations coarser than the axis
// are projected into every bucket they cover inside the window.
func (a *Aggregator) bucketize(table *convert.Table, req Request, observations []datastore.PriceObservation) ([]Point, bool) {
	buckets := make(map[string]*bucketAcc)
	add := func(start time.Time, value float64, uncalibrated bool) {
		label := bucketLabel(req.Granularity, start)
		acc, ok := buckets[label]
		if !ok {
			acc = &bucketAcc{start: bucketStart(req.Granularity, start), label: label}
			buckets[label] = acc
		}
		acc.sum += value
		acc.count++
		acc.uncalibrated = acc.uncalibrated || uncalibrated
	}

	for _, obs := range observations {
		grain, ok := observationGranularity(obs.PeriodType)
		if !ok {
			continue
		}
		spanStart, spanEnd := observationSpan(obs)
		if !overlapsWindow(spanStart, spanEnd, req.Window) {
			continue
		}

		res := table.Normalize(obs.PriceAvg, obs.Currency, obs.Unit, req.Currency, req.Unit)

		if grain.rank() >= req.Granularity.rank() {
			// Same or finer than the axis: fold into the containing bucket.
			// An observation straddling the window edge may land in a bucket
			// that lies outside the window; such buckets are skipped.
			bStart := bucketStart(req.Granularity, spanStart)
			bEnd := nextBucket(req.Granularity, bStart).AddDate(0, 0, -1)
			if overlapsWindow(bStart, bEnd, req.Window) {
				add(spanStart, res.Value, res.Uncalibrated)
			}
			continue
		}
		// Coarser than the axis: the value covers several buckets.
		for _, start := range projectBuckets(req.Granularity, spanStart, spanEnd, req.Window) {
			add(start, res.Value, res.Uncalibrated)
		}
	}

	ordered := make([]*bucketAcc, 0, len(buckets))
	for _, acc := range buckets {
		ordered = append(ordered, acc)
	}
	slices.SortFunc(ordered, func(a, b *bucketAcc) int {
		if c := a.start.Compare(b.start); c != 0 {
			return c
		}
		return strings.Compare(a.label, b.label)
	})

	points := make([]Point, 0, len(ordered))
	uncalibrated := false
	for _, acc := range ordered {
		points = append(points, Point{Period: acc.label, Price: acc.sum / float64(acc.count)})
		uncalibrated = uncalibrated || acc.uncalibrated
	}
	return points, uncalibrated
}
