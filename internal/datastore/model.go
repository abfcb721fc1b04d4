// model.go this code defines the data model for the application
package datastore

import "time"

// Data providers whose records are ingested and linked.
const (
	ProviderAgro     = "agro"     // national ministry feed
	ProviderEurostat = "eurostat" // EU statistical office
	ProviderFaostat  = "faostat"  // UN agricultural statistics service
	ProviderFPMA     = "fpma"     // UN food price monitoring service
)

// Period types carried by price observations.
const (
	PeriodAnnual  = "annual"
	PeriodMonthly = "monthly"
	PeriodWeekly  = "weekly"
	PeriodDaily   = "daily"
)

// GlobalCategory groups canonical products for display ordering
type GlobalCategory struct {
	ID        uint   `gorm:"primaryKey"`
	Slug      string `gorm:"uniqueIndex;size:64;not null"`
	Name      string
	NameLocal string
	SortOrder int
}

// GlobalProduct is the canonical, provider-independent product record that all
// source products are linked onto
type GlobalProduct struct {
	ID               uint   `gorm:"primaryKey"`
	Slug             string `gorm:"uniqueIndex;size:64;not null"`
	Name             string
	NameLocal        string
	HSCode           string `gorm:"index;size:16"` // harmonized system code
	FAOItemCode      string `gorm:"index;size:16"`
	EurostatCode     string `gorm:"index;size:16"`
	ProviderCode     string `gorm:"index;size:32"` // ministry-specific code
	DefaultUnit      string `gorm:"size:16"`
	Active           bool
	GlobalCategoryID *uint           `gorm:"index"`
	Category         *GlobalCategory `gorm:"foreignKey:GlobalCategoryID"`
}

// GlobalProductVariety represents a cultivar or sub-type of a canonical product,
// e.g. a "Golden" apple
type GlobalProductVariety struct {
	ID              uint   `gorm:"primaryKey"`
	Slug            string `gorm:"size:64;not null;uniqueIndex:idx_variety_product_slug"`
	GlobalProductID uint   `gorm:"not null;uniqueIndex:idx_variety_product_slug;index"`
	Name            string
	NameLocal       string
}

// GlobalCountry is the canonical country record
type GlobalCountry struct {
	ID          uint   `gorm:"primaryKey"`
	ISO2        string `gorm:"uniqueIndex;size:2;not null"`
	ISO3        string `gorm:"uniqueIndex;size:3;not null"`
	NumericCode string `gorm:"uniqueIndex;size:3;not null"`
	Name        string
	NameLocal   string
	Region      string `gorm:"size:64"`
	SubRegion   string `gorm:"size:64"`
	Featured    bool   // true for countries surfaced by default in the UI layer
}

// GlobalMarket is a named physical or statistical market inside a country
type GlobalMarket struct {
	ID              uint `gorm:"primaryKey"`
	GlobalCountryID uint `gorm:"index;not null"`
	Name            string
	NameLocal       string
	MarketType      string `gorm:"size:32"` // bazaar, wholesale-hub, statistical
}

// GlobalPriceStage is the canonical price-stage taxonomy: producer, wholesale,
// retail, farmgate
type GlobalPriceStage struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex;size:32;not null"`
	Name string
}

// SourceProduct is a provider-native product or commodity record. Provider+Code
// is the provider-side identity; GlobalProductID is the canonical link set by
// the resolver, nil while unlinked.
type SourceProduct struct {
	ID              uint   `gorm:"primaryKey"`
	Provider        string `gorm:"size:16;not null;uniqueIndex:idx_srcproduct_provider_code"`
	Code            string `gorm:"size:32;not null;uniqueIndex:idx_srcproduct_provider_code"`
	Name            string
	GlobalProductID *uint          `gorm:"index"`
	GlobalProduct   *GlobalProduct `gorm:"foreignKey:GlobalProductID"`
}

// SourceCountry is a provider-native country record
type SourceCountry struct {
	ID              uint   `gorm:"primaryKey"`
	Provider        string `gorm:"size:16;not null;uniqueIndex:idx_srccountry_provider_code"`
	Code            string `gorm:"size:32;not null;uniqueIndex:idx_srccountry_provider_code"`
	Name            string
	GlobalCountryID *uint          `gorm:"index"`
	GlobalCountry   *GlobalCountry `gorm:"foreignKey:GlobalCountryID"`
}

// SourceSeries groups price observations by product, country, market,
// price-stage, unit and currency within one provider
type SourceSeries struct {
	ID                     uint   `gorm:"primaryKey"`
	Provider               string `gorm:"size:16;not null;index"`
	SourceProductID        uint   `gorm:"not null;index"`
	SourceProduct          *SourceProduct `gorm:"foreignKey:SourceProductID"`
	SourceCountryID        uint           `gorm:"not null;index"`
	SourceCountry          *SourceCountry `gorm:"foreignKey:SourceCountryID"`
	GlobalMarketID         *uint          `gorm:"index"`
	GlobalPriceStageID     *uint          `gorm:"index"`
	GlobalProductVarietyID *uint          `gorm:"index"`
	Currency               string         `gorm:"size:8;not null"`
	Unit                   string         `gorm:"size:16;not null"`
	ExternalID             string         `gorm:"size:64;index"` // provider-side series identifier
}

// PriceObservation is a single price data point inside a series. The natural
// key (series, year, period, period type) backs upsert semantics: re-ingesting
// the same period replaces the stored value.
type PriceObservation struct {
	ID             uint   `gorm:"primaryKey"`
	SourceSeriesID uint   `gorm:"not null;uniqueIndex:idx_obs_natural_key"`
	Year           int    `gorm:"not null;uniqueIndex:idx_obs_natural_key;index"`
	Period         int    `gorm:"not null;uniqueIndex:idx_obs_natural_key"` // month, ISO week or day-of-year depending on PeriodType; 0 for annual
	PeriodType     string `gorm:"size:8;not null;uniqueIndex:idx_obs_natural_key"`
	Date           *time.Time
	PriceMin       *float64
	PriceAvg       float64
	PriceMax       *float64
	Currency       string `gorm:"size:8;not null"`
	Unit           string `gorm:"size:16;not null"`
	ExternalID     string `gorm:"size:64"`
}

// Currency holds a currency's conversion rate against the configured base
// currency: RateToBase is how many base-currency units one unit of this
// currency is worth.
type Currency struct {
	ID         uint   `gorm:"primaryKey"`
	Code       string `gorm:"uniqueIndex;size:8;not null"`
	Name       string
	Symbol     string  `gorm:"size:8"`
	RateToBase float64 `gorm:"not null"`
	UpdatedAt  time.Time
}

// Unit holds a measurement unit's conversion rate against the base unit:
// RateToBase is how many base units (kilograms) one unit equals.
type Unit struct {
	ID         uint   `gorm:"primaryKey"`
	Code       string `gorm:"uniqueIndex;size:16;not null"`
	Name       string
	BaseUnit   string  `gorm:"size:16"`
	RateToBase float64 `gorm:"not null"`
}

// SeriesFilter narrows the observation query to series matching the canonical
// product/country links plus optional discriminators.
type SeriesFilter struct {
	Provider           string
	GlobalProductID    uint
	GlobalCountryID    uint
	GlobalPriceStageID *uint
	GlobalMarketID     *uint
	VarietyID          *uint
	MarketType         string
}

// TimeWindow bounds the observation query in time. Both bounds are inclusive.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
