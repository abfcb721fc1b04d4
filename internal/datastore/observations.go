// observations.go: price observation upsert and the comparison query
package datastore

import (
	"fmt"

	"gorm.io/gorm/clause"
)

// ValidateObservation checks the invariants every stored observation must
// satisfy: explicit currency and unit, and an ordered min/avg/max triple when
// a range is present.
func ValidateObservation(obs *PriceObservation) error {
	if obs.Currency == "" {
		return fmt.Errorf("observation has no currency")
	}
	if obs.Unit == "" {
		return fmt.Errorf("observation has no unit")
	}
	switch obs.PeriodType {
	case PeriodAnnual, PeriodMonthly, PeriodWeekly, PeriodDaily:
	default:
		return fmt.Errorf("observation has unknown period type %q", obs.PeriodType)
	}
	if obs.PriceMin != nil && *obs.PriceMin > obs.PriceAvg {
		return fmt.Errorf("observation range invalid: min %.4f > avg %.4f", *obs.PriceMin, obs.PriceAvg)
	}
	if obs.PriceMax != nil && obs.PriceAvg > *obs.PriceMax {
		return fmt.Errorf("observation range invalid: avg %.4f > max %.4f", obs.PriceAvg, *obs.PriceMax)
	}
	return nil
}

// SaveObservation stores a price observation, replacing an existing row with
// the same natural key (series, year, period, period type).
func (ds *DataStore) SaveObservation(obs *PriceObservation) error {
	if err := ValidateObservation(obs); err != nil {
		return err
	}

	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source_series_id"},
			{Name: "year"},
			{Name: "period"},
			{Name: "period_type"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"date", "price_min", "price_avg", "price_max", "currency", "unit", "external_id",
		}),
	}).Create(obs).Error
	if err != nil {
		return fmt.Errorf("saving observation for series %d: %w", obs.SourceSeriesID, err)
	}
	return nil
}

// QueryObservations retrieves observations for all series matching the filter,
// inside the time window. The filter matches through the canonical links: only
// series whose source product and source country are linked to the requested
// canonical IDs qualify. Results are ordered by year then period so callers
// see a stable chronological sequence.
func (ds *DataStore) QueryObservations(filter SeriesFilter, window TimeWindow) ([]PriceObservation, error) {
	query := ds.DB.Model(&PriceObservation{}).
		Joins("JOIN source_series ON source_series.id = price_observations.source_series_id").
		Joins("JOIN source_products ON source_products.id = source_series.source_product_id").
		Joins("JOIN source_countries ON source_countries.id = source_series.source_country_id").
		Where("source_series.provider = ?", filter.Provider).
		Where("source_products.global_product_id = ?", filter.GlobalProductID).
		Where("source_countries.global_country_id = ?", filter.GlobalCountryID)

	if filter.GlobalPriceStageID != nil {
		query = query.Where("source_series.global_price_stage_id = ?", *filter.GlobalPriceStageID)
	}
	if filter.GlobalMarketID != nil {
		query = query.Where("source_series.global_market_id = ?", *filter.GlobalMarketID)
	}
	if filter.VarietyID != nil {
		query = query.Where("source_series.global_product_variety_id = ?", *filter.VarietyID)
	}
	if filter.MarketType != "" {
		query = query.
			Joins("LEFT JOIN global_markets ON global_markets.id = source_series.global_market_id").
			Where("global_markets.market_type = ?", filter.MarketType)
	}

	query = query.
		Where("price_observations.year >= ? AND price_observations.year <= ?",
			window.Start.Year(), window.End.Year()).
		Order("price_observations.year ASC, price_observations.period ASC, price_observations.id ASC")

	var observations []PriceObservation
	if err := query.Find(&observations).Error; err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	return observations, nil
}

// GetCurrencies retrieves the full currency conversion table.
func (ds *DataStore) GetCurrencies() ([]Currency, error) {
	var currencies []Currency
	if err := ds.DB.Order("code ASC").Find(&currencies).Error; err != nil {
		return nil, fmt.Errorf("error getting currencies: %w", err)
	}
	return currencies, nil
}

// GetUnits retrieves the full unit conversion table.
func (ds *DataStore) GetUnits() ([]Unit, error) {
	var units []Unit
	if err := ds.DB.Order("code ASC").Find(&units).Error; err != nil {
		return nil, fmt.Errorf("error getting units: %w", err)
	}
	return units, nil
}

// UpsertCurrency inserts or updates a currency rate by its unique code.
func (ds *DataStore) UpsertCurrency(currency *Currency) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "symbol", "rate_to_base", "updated_at"}),
	}).Create(currency).Error
	if err != nil {
		return fmt.Errorf("upserting currency %s: %w", currency.Code, err)
	}
	return nil
}

// UpsertUnit inserts or updates a unit rate by its unique code.
func (ds *DataStore) UpsertUnit(unit *Unit) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "base_unit", "rate_to_base"}),
	}).Create(unit).Error
	if err != nil {
		return fmt.Errorf("upserting unit %s: %w", unit.Code, err)
	}
	return nil
}
