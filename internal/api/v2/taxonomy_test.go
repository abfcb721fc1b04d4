// internal/api/v2/taxonomy_test.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agropanel/agriprice-go/internal/datastore"
)

func TestGetProducts(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("GetAllProducts").Return([]datastore.GlobalProduct{
		{ID: 1, Slug: "wheat", Name: "Wheat", DefaultUnit: "kg", Active: true},
		{ID: 2, Slug: "beef", Name: "Beef", Active: false},
	}, nil)

	rec := doRequest(e, http.MethodGet, "/api/v2/products")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []productEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "wheat", entries[0].Slug)
	assert.True(t, entries[0].Active)
	assert.False(t, entries[1].Active)
}

func TestGetCountries(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("GetAllCountries").Return([]datastore.GlobalCountry{
		{ID: 1, ISO2: "AZ", ISO3: "AZE", Name: "Azerbaijan", Region: "Asia", Featured: true},
	}, nil)

	rec := doRequest(e, http.MethodGet, "/api/v2/countries")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []countryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "AZE", entries[0].ISO3)
	assert.True(t, entries[0].Featured)
}

func TestGetProductsStorageFailureReturns500(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("GetAllProducts").Return(nil, errors.New("database gone"))

	rec := doRequest(e, http.MethodGet, "/api/v2/products")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.CorrelationID)
}
