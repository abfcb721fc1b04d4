// internal/api/v2/resolver_run_test.go
package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/resolver"
)

func TestRunResolverEndpointReturnsReports(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)
	controller.Settings.Resolver.Providers = []string{"agro"}
	controller.Settings.Resolver.Workers = 2

	mockDS.On("GetUnlinkedSourceProducts", "agro").Return([]datastore.SourceProduct{}, nil)
	mockDS.On("GetUnlinkedSourceCountries", "agro").Return([]datastore.SourceCountry{}, nil)
	mockDS.On("GetAllProducts").Return([]datastore.GlobalProduct{}, nil)
	mockDS.On("GetAllCountries").Return([]datastore.GlobalCountry{}, nil)

	rec := doRequest(e, http.MethodPost, "/api/v2/resolver/run")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Reports []resolver.RunReport `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Reports, 2)
	assert.Equal(t, "agro", resp.Reports[0].Provider)
	assert.Equal(t, "products", resp.Reports[0].Kind)
	assert.Equal(t, "countries", resp.Reports[1].Kind)
	mockDS.AssertExpectations(t)
}
