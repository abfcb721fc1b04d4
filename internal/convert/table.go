// Package convert implements price normalization across currencies and units.
//
// Rate convention: every stored rate is a to-base factor. For a currency,
// RateToBase is how many base-currency units (USD by default) one unit of the
// currency is worth, so RateToBase(USD) = 1 and RateToBase(EUR) ~ 1.08. For a
// unit, RateToBase is how many base units (kilograms) one unit equals, so
// RateToBase(kg) = 1 and RateToBase(100kg) = 100. A price converts to the
// base pair by multiplying with the currency factor and dividing by the unit
// factor, and from the base pair to a target by the inverse. Converting
// A -> B -> A therefore returns the original value up to floating point.
package convert

import (
	"github.com/agropanel/agriprice-go/internal/datastore"
)

// CurrencyRate is one currency's entry in the conversion table.
type CurrencyRate struct {
	RateToBase float64 `json:"rateToBase"`
	Symbol     string  `json:"symbol"`
}

// UnitRate is one measurement unit's entry in the conversion table.
type UnitRate struct {
	RateToBase float64 `json:"rateToBase"`
	BaseUnit   string  `json:"baseUnit"`
}

// Table is an immutable snapshot of the conversion tables. Lookups never
// mutate it, so a single snapshot is safe for unlimited concurrent use.
type Table struct {
	BaseCurrency string                  `json:"baseCurrency"`
	BaseUnit     string                  `json:"baseUnit"`
	Currencies   map[string]CurrencyRate `json:"currencies"`
	Units        map[string]UnitRate     `json:"units"`
}

// NewTable builds a snapshot from datastore rows.
func NewTable(baseCurrency, baseUnit string, currencies []datastore.Currency, units []datastore.Unit) *Table {
	t := &Table{
		BaseCurrency: baseCurrency,
		BaseUnit:     baseUnit,
		Currencies:   make(map[string]CurrencyRate, len(currencies)),
		Units:        make(map[string]UnitRate, len(units)),
	}
	for i := range currencies {
		c := &currencies[i]
		t.Currencies[c.Code] = CurrencyRate{RateToBase: c.RateToBase, Symbol: c.Symbol}
	}
	for i := range units {
		u := &units[i]
		t.Units[u.Code] = UnitRate{RateToBase: u.RateToBase, BaseUnit: u.BaseUnit}
	}
	return t
}

// EmptyTable returns a snapshot with no entries. Every conversion through it
// is an identity conversion flagged uncalibrated.
func EmptyTable(baseCurrency, baseUnit string) *Table {
	return &Table{
		BaseCurrency: baseCurrency,
		BaseUnit:     baseUnit,
		Currencies:   map[string]CurrencyRate{},
		Units:        map[string]UnitRate{},
	}
}

// Result carries a normalized price value. Uncalibrated is set when any
// involved currency or unit had no table entry and an identity rate was used
// instead.
type Result struct {
	Value        float64
	Uncalibrated bool
}

// currencyRate returns the to-base factor for a currency code, defaulting to
// identity for unknown codes. The base currency is always identity even when
// the table has no explicit row for it.
func (t *Table) currencyRate(code string) (rate float64, known bool) {
	if code == t.BaseCurrency {
		return 1, true
	}
	if entry, ok := t.Currencies[code]; ok && entry.RateToBase > 0 {
		return entry.RateToBase, true
	}
	return 1, false
}

// unitRate returns the to-base factor for a unit code, defaulting to identity
// for unknown codes.
func (t *Table) unitRate(code string) (rate float64, known bool) {
	if code == t.BaseUnit {
		return 1, true
	}
	if entry, ok := t.Units[code]; ok && entry.RateToBase > 0 {
		return entry.RateToBase, true
	}
	return 1, false
}

// Normalize converts a price from its native currency/unit pair to the target
// pair. Missing rates degrade to identity and flag the result uncalibrated
// rather than failing. Pure function, safe for concurrent use.
func (t *Table) Normalize(price float64, fromCurrency, fromUnit, toCurrency, toUnit string) Result {
	fromCur, fromCurKnown := t.currencyRate(fromCurrency)
	toCur, toCurKnown := t.currencyRate(toCurrency)
	fromU, fromUnitKnown := t.unitRate(fromUnit)
	toU, toUnitKnown := t.unitRate(toUnit)

	// To base pair: base currency per base unit.
	inBase := price * fromCur / fromU
	// From base pair to the target pair.
	value := inBase / toCur * toU

	return Result{
		Value:        value,
		Uncalibrated: !(fromCurKnown && toCurKnown && fromUnitKnown && toUnitKnown),
	}
}
