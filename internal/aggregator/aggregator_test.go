package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/convert"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// obsStore is an in-memory datastore for comparison queries.
type obsStore struct {
	datastore.Interface
	mu sync.Mutex

	products     map[string]datastore.GlobalProduct
	countries    map[string]datastore.GlobalCountry
	stages       map[string]datastore.GlobalPriceStage
	observations map[string][]datastore.PriceObservation // keyed by provider/countryID

	currencies []datastore.Currency
	units      []datastore.Unit

	queryCalls   int
	failFor      map[string]int // provider -> number of calls that fail
	lastFilter   datastore.SeriesFilter
	queryBlocked chan struct{} // when set, QueryObservations blocks until closed
}

func obsKey(provider string, countryID uint) string {
	return fmt.Sprintf("%s/%d", provider, countryID)
}

func (s *obsStore) GetProductBySlugOrCode(key string) (*datastore.GlobalProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[key]; ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *obsStore) GetCountryByCode(code string) (*datastore.GlobalCountry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.countries[code]; ok {
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *obsStore) GetPriceStageByCode(code string) (*datastore.GlobalPriceStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stages[code]; ok {
		return &st, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *obsStore) QueryObservations(filter datastore.SeriesFilter, _ datastore.TimeWindow) ([]datastore.PriceObservation, error) {
	s.mu.Lock()
	s.queryCalls++
	s.lastFilter = filter
	fail := s.failFor[filter.Provider] > 0
	if fail {
		s.failFor[filter.Provider]--
	}
	blocked := s.queryBlocked
	out := append([]datastore.PriceObservation(nil), s.observations[obsKey(filter.Provider, filter.GlobalCountryID)]...)
	s.mu.Unlock()

	if blocked != nil {
		<-blocked
	}
	if fail {
		return nil, errors.New("storage unavailable")
	}
	return out, nil
}

func (s *obsStore) GetCurrencies() ([]datastore.Currency, error) { return s.currencies, nil }
func (s *obsStore) GetUnits() ([]datastore.Unit, error)          { return s.units, nil }

func newObsStore() *obsStore {
	return &obsStore{
		products: map[string]datastore.GlobalProduct{
			"wheat": {ID: 1, Slug: "wheat", Name: "Wheat"},
		},
		countries: map[string]datastore.GlobalCountry{
			"AZ": {ID: 1, ISO2: "AZ", Name: "Azerbaijan"},
			"DE": {ID: 2, ISO2: "DE", Name: "Germany"},
		},
		stages: map[string]datastore.GlobalPriceStage{
			"producer": {ID: 1, Code: "producer", Name: "Producer price"},
		},
		observations: map[string][]datastore.PriceObservation{},
		failFor:      map[string]int{},
		currencies: []datastore.Currency{
			{Code: "USD", RateToBase: 1},
			{Code: "EUR", RateToBase: 1.08},
			{Code: "AZN", RateToBase: 0.59},
		},
		units: []datastore.Unit{
			{Code: "kg", RateToBase: 1, BaseUnit: "kg"},
			{Code: "100kg", RateToBase: 100, BaseUnit: "kg"},
			{Code: "t", RateToBase: 1000, BaseUnit: "kg"},
		},
	}
}

func aggSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Conversion.BaseCurrency = "USD"
	s.Conversion.BaseUnit = "kg"
	s.Comparison.SelectionTimeout = 5
	s.Comparison.MaxSelections = 10
	return s
}

func newTestAggregator(t *testing.T, store *obsStore) *Aggregator {
	t.Helper()
	settings := aggSettings()
	rates := convert.NewCache(store, settings)
	require.NoError(t, rates.Refresh(context.Background()))
	a := New(store, settings, rates)
	a.retryWait = time.Millisecond
	return a
}

func yearsWindow(from, to int) datastore.TimeWindow {
	return datastore.TimeWindow{
		Start: day(from, time.January, 1),
		End:   day(to, time.December, 31),
	}
}

func annualObs(year int, price float64, currency, unit string) datastore.PriceObservation {
	return datastore.PriceObservation{
		Year: year, PeriodType: datastore.PeriodAnnual,
		PriceAvg: price, Currency: currency, Unit: unit,
	}
}

func baseRequest(selections ...Selection) Request {
	return Request{
		ProductSlug: "wheat",
		Selections:  selections,
		Granularity: GranularityAnnual,
		Window:      yearsWindow(2020, 2024),
		Currency:    "USD",
		Unit:        "kg",
	}
}

func TestCompareReturnsOneSeriesPerSelection(t *testing.T) {
	store := newObsStore()
	store.observations[obsKey("agro", 1)] = []datastore.PriceObservation{
		annualObs(2023, 0.55, "AZN", "kg"),
	}
	a := newTestAggregator(t, store)

	resp, err := a.Compare(context.Background(), baseRequest(
		Selection{CountryCode: "AZ", SourceID: "agro"},
		Selection{CountryCode: "DE", SourceID: "eurostat"},
		Selection{CountryCode: "XX", SourceID: "agro"},
	))
	require.NoError(t, err)
	require.Len(t, resp.Series, 3)

	assert.False(t, resp.Series[0].NoData)
	assert.Equal(t, "Azerbaijan", resp.Series[0].CountryName)

	// No observations is an explicit empty series, never an omission.
	assert.True(t, resp.Series[1].NoData)
	assert.Empty(t, resp.Series[1].Data)
	assert.Empty(t, resp.Series[1].DropReason)

	// Malformed selection keeps its slot and carries a reason.
	assert.True(t, resp.Series[2].NoData)
	assert.Contains(t, resp.Series[2].DropReason, "unknown country code XX")

	assert.False(t, resp.NoData)
}

func TestCompareNormalizesToTargetCurrencyAndUnit(t *testing.T) {
	store := newObsStore()
	store.observations[obsKey("eurostat", 2)] = []datastore.PriceObservation{
		annualObs(2023, 24.50, "EUR", "100kg"),
	}
	a := newTestAggregator(t, store)

	resp, err := a.Compare(context.Background(), baseRequest(
		Selection{CountryCode: "DE", SourceID: "eurostat"},
	))
	require.NoError(t, err)

	series := resp.Series[0]
	require.Len(t, series.Data, 1)
	assert.Equal(t, "2023", series.Data[0].Period)
	assert.InDelta(t, 0.2646, series.Data[0].Price, 1e-9)
	assert.False(t, series.Uncalibrated)
	assert.Equal(t, "USD", series.Currency)
	assert.Equal(t, "kg", series.Unit)
}

// Several markets reporting the same year collapse into one averaged point.
func TestCompareAveragesSameBucket(t *testing.T) {
	store := newObsStore()
	store.observations[obsKey("agro", 1)] = []datastore.PriceObservation{
		annualObs(2023, 1.00, "USD", "kg"),
		annualObs(2023, 3.00, "USD", "kg"),
	}
	a := newTestAggregator(t, store)

	resp, err := a.Compare(context.Background(), baseRequest(
		Selection{CountryCode: "AZ", SourceID: "agro"},
	))
	require.NoError(t, err)

	require.Len(t, resp.Series[0].Data, 1)
	assert.InDelta(t, 2.00, resp.Series[0].Data[0].Price, 1e-12)
}

func TestCompareAggregatesFinerIntoCoarser(t *testing.T) {
	store := newObsStore()
	d1, d2 := day(2023, time.May, 10), day(2023, time.May, 20)
	store.observations[obsKey("agro", 1)] = []datastore.PriceObservation{
		{Year: 2023, Period: 130, PeriodType: datastore.PeriodDaily, Date: &d1, PriceAvg: 2, Currency: "USD", Unit: "kg"},
		{Year: 2023, Period: 140, PeriodType: datastore.PeriodDaily, Date: &d2, PriceAvg: 4, Currency: "USD", Unit: "kg"},
	}
	a := newTestAggregator(t, store)

	req := baseRequest(Selection{CountryCode: "AZ", SourceID: "agro"})
	req.Granularity = GranularityMonthly
	resp, err := a.Compare(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Series[0].Data, 1)
	assert.Equal(t, "2023-05", resp.Series[0].Data[0].Period)
	assert.InDelta(t, 3, resp.Series[0].Data[0].Price, 1e-12)
}

// An annual value on a monthly axis fills every month of that year inside the
// window, unchanged.
func TestCompareProjectsCoarserIntoFiner(t *testing.T) {
	store := newObsStore()
	store.observations[obsKey("faostat", 1)] = []datastore.PriceObservation{
		annualObs(2023, 5, "USD", "kg"),
	}
	a := newTestAggregator(t, store)

	req := baseRequest(Selection{CountryCode: "AZ", SourceID: "faostat"})
	req.Granularity = GranularityMonthly
	req.Window = datastore.TimeWindow{
		Start: day(2023, time.March, 1),
		End:   day(2023, time.May, 31),
	}
	resp, err := a.Compare(context.Background(), req)
	require.NoError(t, err)

	data := resp.Series[0].Data
	require.Len(t, data, 3)
	assert.Equal(t, "2023-03", data[0].Period)
	assert.Equal(t, "2023-04", data[1].Period)
	assert.Equal(t, "2023-05", data[2].Period)
	for _, p := range data {
		assert.InDelta(t, 5, p.Price, 1e-12)
	}
}

func TestCompareOrdersPointsChronologically(t *testing.T) {
	store := newObsStore()
	store.observations[obsKey("agro", 1)] = []datastore.PriceObservation{
		annualObs(2024, 3, "USD", "kg"),
		annualObs(2021, 1, "USD", "kg"),
		annualObs(2023, 2, "USD", "kg"),
	}
	a := newTestAggregator(t, store)

	resp, err := a.Compare(context.Background(), baseRequest(
		Selection{CountryCode: "AZ", SourceID: "agro"},
	))
	require.NoError(t, err)

	data := resp.Series[0].Data
	require.Len(t, data, 3)
	assert.Equal(t, []string{"2021", "2023", "2024"}, []string{data[0].Period, data[1].Period, data[2].Period})
}

func TestCompareObservationsOutsideWindowExcluded(t *testing.T) {
	store := newObsStore()
	store.observations[obsKey("agro", 1)] = []datastore.PriceObservation{
		annualObs(2019, 9, "USD", "kg"),
		annualObs(2022, 1, "USD", "kg"),
	}
	a := newTestAggregator(t, store)

	resp, err := a.Compare(context.Background(), baseRequest(
		Selection{CountryCode: "AZ", SourceID: "agro"},
	))
	require.NoError(t, err)

	require.Len(t, resp.Series[0].Data, 1)
	assert.Equal(t, "2022", resp.Series[0].Data[0].Period)
}

// A weekly value whose ISO week runs May 29 to June 4 belongs to the May
// bucket on a monthly axis. With the window covering June only, that bucket
// is outside the window and no May point may surface.
func TestCompareStraddlingObservationStaysInsideWindow(t *testing.T) {
	store := newObsStore()
	store.observations[obsKey("agro", 1)] = []datastore.PriceObservation{
		{Year: 2023, Period: 22, PeriodType: datastore.PeriodWeekly, PriceAvg: 2, Currency: "USD", Unit: "kg"},
	}
	a := newTestAggregator(t, store)

	req := baseRequest(Selection{CountryCode: "AZ", SourceID: "agro"})
	req.Granularity = GranularityMonthly
	req.Window = datastore.TimeWindow{
		Start: day(2023, time.June, 1),
		End:   day(2023, time.June, 30),
	}
	resp, err := a.Compare(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.Series[0].NoData)
	assert.Empty(t, resp.Series[0].Data)

	// Widening the window to cover May brings the point back, in May.
	req.Window.Start = day(2023, time.May, 1)
	resp, err = a.Compare(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Series[0].Data, 1)
	assert.Equal(t, "2023-05", resp.Series[0].Data[0].Period)
}

func TestCompareMissingRateFlagsUncalibrated(t *testing.T) {
	store := newObsStore()
	store.observations[obsKey("agro", 1)] = []datastore.PriceObservation{
		annualObs(2023, 7, "GEL", "kg"),
	}
	a := newTestAggregator(t, store)

	resp, err := a.Compare(context.Background(), baseRequest(
		Selection{CountryCode: "AZ", SourceID: "agro"},
	))
	require.NoError(t, err)

	series := resp.Series[0]
	assert.True(t, series.Uncalibrated)
	require.Len(t, series.Data, 1)
	assert.InDelta(t, 7, series.Data[0].Price, 1e-12)
}

func TestCompareUnknownProductFails(t *testing.T) {
	a := newTestAggregator(t, newObsStore())

	req := baseRequest(Selection{CountryCode: "AZ", SourceID: "agro"})
	req.ProductSlug = "unobtainium"
	_, err := a.Compare(context.Background(), req)
	assert.ErrorContains(t, err, "unknown product")
}

func TestCompareUnknownSourceDroppedWithReason(t *testing.T) {
	a := newTestAggregator(t, newObsStore())

	resp, err := a.Compare(context.Background(), baseRequest(
		Selection{CountryCode: "AZ", SourceID: "bloomberg"},
	))
	require.NoError(t, err)
	require.Len(t, resp.Series, 1)
	assert.True(t, resp.Series[0].NoData)
	assert.Contains(t, resp.Series[0].DropReason, "unknown source")
	assert.True(t, resp.NoData)
}

// The first read fails, the retry succeeds; the series still comes back.
func TestCompareRetriesFailedFetchOnce(t *testing.T) {
	store := newObsStore()
	store.failFor["agro"] = 1
	store.observations[obsKey("agro", 1)] = []datastore.PriceObservation{
		annualObs(2023, 1, "USD", "kg"),
	}
	a := newTestAggregator(t, store)

	resp, err := a.Compare(context.Background(), baseRequest(
		Selection{CountryCode: "AZ", SourceID: "agro"},
	))
	require.NoError(t, err)
	assert.False(t, resp.Series[0].NoData)
	assert.Equal(t, 2, store.queryCalls)
}

// Both attempts fail; the selection degrades to noData, the request succeeds.
func TestComparePersistentFetchFailureDegradesToNoData(t *testing.T) {
	store := newObsStore()
	store.failFor["agro"] = 2
	store.observations[obsKey("agro", 1)] = []datastore.PriceObservation{
		annualObs(2023, 1, "USD", "kg"),
	}
	a := newTestAggregator(t, store)

	resp, err := a.Compare(context.Background(), baseRequest(
		Selection{CountryCode: "AZ", SourceID: "agro"},
		Selection{CountryCode: "DE", SourceID: "eurostat"},
	))
	require.NoError(t, err)
	require.Len(t, resp.Series, 2)
	assert.True(t, resp.Series[0].NoData)
	assert.Empty(t, resp.Series[0].DropReason)
}

func TestCompareHonorsCancellation(t *testing.T) {
	store := newObsStore()
	blocked := make(chan struct{})
	store.queryBlocked = blocked
	defer close(blocked)
	a := newTestAggregator(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := a.Compare(ctx, baseRequest(
		Selection{CountryCode: "AZ", SourceID: "agro"},
	))
	assert.Error(t, err)
}

func TestComparePriceStageFilterPropagates(t *testing.T) {
	store := newObsStore()
	a := newTestAggregator(t, store)

	req := baseRequest(Selection{CountryCode: "AZ", SourceID: "agro"})
	req.PriceStage = "producer"
	_, err := a.Compare(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, store.lastFilter.GlobalPriceStageID)
	assert.Equal(t, uint(1), *store.lastFilter.GlobalPriceStageID)

	req.PriceStage = "retail"
	_, err = a.Compare(context.Background(), req)
	assert.ErrorContains(t, err, "unknown price stage")
}

func TestCompareValidatesInput(t *testing.T) {
	a := newTestAggregator(t, newObsStore())

	req := baseRequest(Selection{CountryCode: "AZ", SourceID: "agro"})
	req.Granularity = "quarterly"
	_, err := a.Compare(context.Background(), req)
	assert.ErrorContains(t, err, "granularity")

	req = baseRequest(Selection{CountryCode: "AZ", SourceID: "agro"})
	req.Window = datastore.TimeWindow{Start: day(2024, time.January, 1), End: day(2020, time.January, 1)}
	_, err = a.Compare(context.Background(), req)
	assert.ErrorContains(t, err, "window")

	req = baseRequest()
	req.ProductSlug = ""
	_, err = a.Compare(context.Background(), req)
	assert.ErrorContains(t, err, "product")
}

func TestCompareTooManySelections(t *testing.T) {
	store := newObsStore()
	a := newTestAggregator(t, store)
	a.settings.Comparison.MaxSelections = 2

	_, err := a.Compare(context.Background(), baseRequest(
		Selection{CountryCode: "AZ", SourceID: "agro"},
		Selection{CountryCode: "DE", SourceID: "eurostat"},
		Selection{CountryCode: "AZ", SourceID: "faostat"},
	))
	assert.ErrorContains(t, err, "too many selections")
}

// Identical requests yield identical responses even with concurrent fetches.
func TestCompareIsDeterministic(t *testing.T) {
	store := newObsStore()
	store.observations[obsKey("agro", 1)] = []datastore.PriceObservation{
		annualObs(2021, 1.37, "AZN", "kg"),
		annualObs(2022, 1.41, "AZN", "kg"),
		annualObs(2023, 1.58, "AZN", "kg"),
	}
	store.observations[obsKey("eurostat", 2)] = []datastore.PriceObservation{
		annualObs(2022, 28.4, "EUR", "100kg"),
		annualObs(2023, 24.5, "EUR", "100kg"),
	}
	a := newTestAggregator(t, store)

	req := baseRequest(
		Selection{CountryCode: "AZ", SourceID: "agro"},
		Selection{CountryCode: "DE", SourceID: "eurostat"},
	)
	first, err := a.Compare(context.Background(), req)
	require.NoError(t, err)
	for range 10 {
		again, err := a.Compare(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
