// taxonomy.go: canonical entity lookups and source-record link mutations
package datastore

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetAllProducts retrieves all canonical products ordered by slug.
func (ds *DataStore) GetAllProducts() ([]GlobalProduct, error) {
	var products []GlobalProduct
	if err := ds.DB.Order("slug ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("error getting all products: %w", err)
	}
	return products, nil
}

// GetAllCountries retrieves all canonical countries ordered by ISO2 code.
func (ds *DataStore) GetAllCountries() ([]GlobalCountry, error) {
	var countries []GlobalCountry
	if err := ds.DB.Order("iso2 ASC").Find(&countries).Error; err != nil {
		return nil, fmt.Errorf("error getting all countries: %w", err)
	}
	return countries, nil
}

// GetProductBySlug retrieves a canonical product by its unique slug.
func (ds *DataStore) GetProductBySlug(slug string) (*GlobalProduct, error) {
	var product GlobalProduct
	if err := ds.DB.Where("slug = ?", slug).First(&product).Error; err != nil {
		return nil, fmt.Errorf("getting product with slug %q: %w", slug, err)
	}
	return &product, nil
}

// GetProductBySlugOrCode retrieves a canonical product by slug or by any of
// its provider-code columns. The slug takes precedence when a code collides
// with another product's slug.
func (ds *DataStore) GetProductBySlugOrCode(key string) (*GlobalProduct, error) {
	var product GlobalProduct
	err := ds.DB.Where("slug = ?", key).First(&product).Error
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("getting product with slug or code %q: %w", key, err)
	}

	err = ds.DB.
		Where("hs_code = ? OR fao_item_code = ? OR eurostat_code = ? OR provider_code = ?",
			key, key, key, key).
		First(&product).Error
	if err != nil {
		return nil, fmt.Errorf("getting product with slug or code %q: %w", key, err)
	}
	return &product, nil
}

// GetOrCreateProduct returns the canonical product with the given slug,
// creating it if absent. The boolean result reports whether a row was created.
// Creation relies on the slug unique index plus ON CONFLICT DO NOTHING so
// concurrent resolver workers cannot produce duplicate canonical rows.
func (ds *DataStore) GetOrCreateProduct(product *GlobalProduct) (*GlobalProduct, bool, error) {
	if product.Slug == "" {
		return nil, false, fmt.Errorf("cannot create product without slug")
	}

	result := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(product)
	if result.Error != nil {
		return nil, false, fmt.Errorf("creating product %q: %w", product.Slug, result.Error)
	}
	created := result.RowsAffected > 0

	// Re-read so the caller always sees the stored row, whichever goroutine won.
	var stored GlobalProduct
	if err := ds.DB.Where("slug = ?", product.Slug).First(&stored).Error; err != nil {
		return nil, false, fmt.Errorf("reading back product %q: %w", product.Slug, err)
	}
	return &stored, created, nil
}

// GetCountryByCode retrieves a canonical country by ISO2, ISO3 or numeric code.
func (ds *DataStore) GetCountryByCode(code string) (*GlobalCountry, error) {
	var country GlobalCountry
	err := ds.DB.
		Where("iso2 = ? OR iso3 = ? OR numeric_code = ?", code, code, code).
		First(&country).Error
	if err != nil {
		return nil, fmt.Errorf("getting country with code %q: %w", code, err)
	}
	return &country, nil
}

// GetPriceStageByCode retrieves a canonical price stage by its unique code.
func (ds *DataStore) GetPriceStageByCode(code string) (*GlobalPriceStage, error) {
	var stage GlobalPriceStage
	if err := ds.DB.Where("code = ?", code).First(&stage).Error; err != nil {
		return nil, fmt.Errorf("getting price stage with code %q: %w", code, err)
	}
	return &stage, nil
}

// GetUnlinkedSourceProducts retrieves a provider's source products that carry
// no canonical link yet, in insertion order for deterministic batch runs.
func (ds *DataStore) GetUnlinkedSourceProducts(provider string) ([]SourceProduct, error) {
	var records []SourceProduct
	err := ds.DB.
		Where("provider = ? AND global_product_id IS NULL", provider).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error getting unlinked source products for %s: %w", provider, err)
	}
	return records, nil
}

// GetUnlinkedSourceCountries retrieves a provider's source countries that carry
// no canonical link yet.
func (ds *DataStore) GetUnlinkedSourceCountries(provider string) ([]SourceCountry, error) {
	var records []SourceCountry
	err := ds.DB.
		Where("provider = ? AND global_country_id IS NULL", provider).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error getting unlinked source countries for %s: %w", provider, err)
	}
	return records, nil
}

// LinkSourceProduct sets or clears the canonical link of a source product.
// Passing nil clears the link. The update touches the single link column only.
func (ds *DataStore) LinkSourceProduct(sourceID uint, productID *uint) error {
	result := ds.DB.Model(&SourceProduct{}).
		Where("id = ?", sourceID).
		Update("global_product_id", productID)
	if result.Error != nil {
		return fmt.Errorf("linking source product %d: %w", sourceID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("source product %d: %w", sourceID, gorm.ErrRecordNotFound)
	}
	return nil
}

// LinkSourceCountry sets or clears the canonical link of a source country.
func (ds *DataStore) LinkSourceCountry(sourceID uint, countryID *uint) error {
	result := ds.DB.Model(&SourceCountry{}).
		Where("id = ?", sourceID).
		Update("global_country_id", countryID)
	if result.Error != nil {
		return fmt.Errorf("linking source country %d: %w", sourceID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("source country %d: %w", sourceID, gorm.ErrRecordNotFound)
	}
	return nil
}
