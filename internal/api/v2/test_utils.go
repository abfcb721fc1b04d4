// internal/api/v2/test_utils.go
package api

import (
	"github.com/stretchr/testify/mock"

	"github.com/agropanel/agriprice-go/internal/datastore"
)

// MockDataStore implements datastore.Interface for handler tests.
type MockDataStore struct {
	mock.Mock
}

func (m *MockDataStore) Open() error  { return m.Called().Error(0) }
func (m *MockDataStore) Close() error { return m.Called().Error(0) }

func (m *MockDataStore) GetAllProducts() ([]datastore.GlobalProduct, error) {
	args := m.Called()
	products, _ := args.Get(0).([]datastore.GlobalProduct)
	return products, args.Error(1)
}

func (m *MockDataStore) GetAllCountries() ([]datastore.GlobalCountry, error) {
	args := m.Called()
	countries, _ := args.Get(0).([]datastore.GlobalCountry)
	return countries, args.Error(1)
}

func (m *MockDataStore) GetProductBySlug(slug string) (*datastore.GlobalProduct, error) {
	args := m.Called(slug)
	product, _ := args.Get(0).(*datastore.GlobalProduct)
	return product, args.Error(1)
}

func (m *MockDataStore) GetProductBySlugOrCode(key string) (*datastore.GlobalProduct, error) {
	args := m.Called(key)
	product, _ := args.Get(0).(*datastore.GlobalProduct)
	return product, args.Error(1)
}

func (m *MockDataStore) GetOrCreateProduct(product *datastore.GlobalProduct) (*datastore.GlobalProduct, bool, error) {
	args := m.Called(product)
	created, _ := args.Get(0).(*datastore.GlobalProduct)
	return created, args.Bool(1), args.Error(2)
}

func (m *MockDataStore) GetCountryByCode(code string) (*datastore.GlobalCountry, error) {
	args := m.Called(code)
	country, _ := args.Get(0).(*datastore.GlobalCountry)
	return country, args.Error(1)
}

func (m *MockDataStore) GetPriceStageByCode(code string) (*datastore.GlobalPriceStage, error) {
	args := m.Called(code)
	stage, _ := args.Get(0).(*datastore.GlobalPriceStage)
	return stage, args.Error(1)
}

func (m *MockDataStore) GetUnlinkedSourceProducts(provider string) ([]datastore.SourceProduct, error) {
	args := m.Called(provider)
	products, _ := args.Get(0).([]datastore.SourceProduct)
	return products, args.Error(1)
}

func (m *MockDataStore) GetUnlinkedSourceCountries(provider string) ([]datastore.SourceCountry, error) {
	args := m.Called(provider)
	countries, _ := args.Get(0).([]datastore.SourceCountry)
	return countries, args.Error(1)
}

func (m *MockDataStore) LinkSourceProduct(sourceID uint, productID *uint) error {
	return m.Called(sourceID, productID).Error(0)
}

func (m *MockDataStore) LinkSourceCountry(sourceID uint, countryID *uint) error {
	return m.Called(sourceID, countryID).Error(0)
}

func (m *MockDataStore) SaveObservation(obs *datastore.PriceObservation) error {
	return m.Called(obs).Error(0)
}

func (m *MockDataStore) QueryObservations(filter datastore.SeriesFilter, window datastore.TimeWindow) ([]datastore.PriceObservation, error) {
	args := m.Called(filter, window)
	observations, _ := args.Get(0).([]datastore.PriceObservation)
	return observations, args.Error(1)
}

func (m *MockDataStore) GetCurrencies() ([]datastore.Currency, error) {
	args := m.Called()
	currencies, _ := args.Get(0).([]datastore.Currency)
	return currencies, args.Error(1)
}

func (m *MockDataStore) GetUnits() ([]datastore.Unit, error) {
	args := m.Called()
	units, _ := args.Get(0).([]datastore.Unit)
	return units, args.Error(1)
}

func (m *MockDataStore) UpsertCurrency(currency *datastore.Currency) error {
	return m.Called(currency).Error(0)
}

func (m *MockDataStore) UpsertUnit(unit *datastore.Unit) error {
	return m.Called(unit).Error(0)
}
