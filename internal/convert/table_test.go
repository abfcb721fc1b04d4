package convert

import (
	"testing"

	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/stretchr/testify/assert"
)

func testTable() *Table {
	return NewTable("USD", "kg",
		[]datastore.Currency{
			{Code: "USD", RateToBase: 1},
			{Code: "EUR", RateToBase: 1.08},
			{Code: "AZN", RateToBase: 0.59},
		},
		[]datastore.Unit{
			{Code: "kg", RateToBase: 1, BaseUnit: "kg"},
			{Code: "100kg", RateToBase: 100, BaseUnit: "kg"},
			{Code: "t", RateToBase: 1000, BaseUnit: "kg"},
			{Code: "lb", RateToBase: 0.45359237, BaseUnit: "kg"},
		},
	)
}

// A Eurostat observation of 24.50 EUR per 100kg at EUR->USD 1.08 is
// 24.50 * 1.08 / 100 = 0.2646 USD per kg.
func TestNormalizeWorkedExample(t *testing.T) {
	t.Parallel()

	got := testTable().Normalize(24.50, "EUR", "100kg", "USD", "kg")
	assert.False(t, got.Uncalibrated)
	assert.InDelta(t, 0.2646, got.Value, 1e-9)
}

func TestNormalizeIdentity(t *testing.T) {
	t.Parallel()

	got := testTable().Normalize(3.14, "AZN", "kg", "AZN", "kg")
	assert.False(t, got.Uncalibrated)
	assert.InDelta(t, 3.14, got.Value, 1e-12)
}

// Converting A -> B -> A must return the original value within floating-point
// tolerance for every currency/unit combination in the table.
func TestNormalizeRoundTrip(t *testing.T) {
	t.Parallel()

	table := testTable()
	currencies := []string{"USD", "EUR", "AZN"}
	units := []string{"kg", "100kg", "t", "lb"}
	prices := []float64{0.01, 1, 24.50, 999.99, 123456.789}

	for _, price := range prices {
		for _, fromCur := range currencies {
			for _, toCur := range currencies {
				for _, fromUnit := range units {
					for _, toUnit := range units {
						forward := table.Normalize(price, fromCur, fromUnit, toCur, toUnit)
						back := table.Normalize(forward.Value, toCur, toUnit, fromCur, fromUnit)
						assert.False(t, back.Uncalibrated)
						assert.InEpsilon(t, price, back.Value, 1e-9,
							"%s/%s -> %s/%s round trip", fromCur, fromUnit, toCur, toUnit)
					}
				}
			}
		}
	}
}

func TestNormalizeMissingRateDegradesToIdentity(t *testing.T) {
	t.Parallel()

	table := testTable()

	// Unknown currency: identity rate, flagged uncalibrated.
	got := table.Normalize(10, "GEL", "kg", "USD", "kg")
	assert.True(t, got.Uncalibrated)
	assert.InDelta(t, 10, got.Value, 1e-12)

	// Unknown unit: same degradation.
	got = table.Normalize(10, "USD", "bushel", "USD", "kg")
	assert.True(t, got.Uncalibrated)
	assert.InDelta(t, 10, got.Value, 1e-12)
}

func TestNormalizeBaseCodesAlwaysKnown(t *testing.T) {
	t.Parallel()

	// Even an empty table treats the base currency and base unit as calibrated.
	table := EmptyTable("USD", "kg")
	got := table.Normalize(5, "USD", "kg", "USD", "kg")
	assert.False(t, got.Uncalibrated)
	assert.InDelta(t, 5, got.Value, 1e-12)
}

func TestNormalizeNonPositiveStoredRateIsIgnored(t *testing.T) {
	t.Parallel()

	table := NewTable("USD", "kg",
		[]datastore.Currency{{Code: "XXX", RateToBase: 0}},
		nil,
	)
	got := table.Normalize(7, "XXX", "kg", "USD", "kg")
	assert.True(t, got.Uncalibrated)
	assert.InDelta(t, 7, got.Value, 1e-12)
}
