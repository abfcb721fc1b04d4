// internal/api/v2/api_test.go
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/agropanel/agriprice-go/internal/aggregator"
	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/convert"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/observability"
	"github.com/agropanel/agriprice-go/internal/resolver"
)

// testSettings returns a minimal valid configuration for handler tests.
func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Conversion.BaseCurrency = "USD"
	s.Conversion.BaseUnit = "kg"
	s.Comparison.SelectionTimeout = 5
	s.Comparison.MaxSelections = 10
	s.Comparison.CacheTTL = 60
	return s
}

// setupTestEnvironment builds a controller wired to the mock store with a
// refreshed conversion snapshot.
func setupTestEnvironment(t *testing.T) (*echo.Echo, *MockDataStore, *Controller) {
	t.Helper()

	e := echo.New()
	mockDS := new(MockDataStore)
	settings := testSettings()

	mockDS.On("GetCurrencies").Return([]datastore.Currency{
		{Code: "USD", RateToBase: 1, Symbol: "$"},
		{Code: "EUR", RateToBase: 1.08, Symbol: "€"},
	}, nil).Maybe()
	mockDS.On("GetUnits").Return([]datastore.Unit{
		{Code: "kg", RateToBase: 1, BaseUnit: "kg"},
		{Code: "100kg", RateToBase: 100, BaseUnit: "kg"},
	}, nil).Maybe()

	rates := convert.NewCache(mockDS, settings)
	require.NoError(t, rates.Refresh(context.Background()))

	agg := aggregator.New(mockDS, settings, rates)
	res, err := resolver.New(mockDS, settings)
	require.NoError(t, err)

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	controller := New(e, mockDS, settings, rates, agg, res, metrics, nil)
	return e, mockDS, controller
}

// doRequest performs a request against the echo instance and returns the
// recorder.
func doRequest(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, http.NoBody)
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	e, _, _ := setupTestEnvironment(t)

	rec := doRequest(e, http.MethodGet, "/api/v2/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}
