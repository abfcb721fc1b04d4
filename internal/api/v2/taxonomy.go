// internal/api/v2/taxonomy.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agropanel/agriprice-go/internal/datastore"
)

// productEntry is the list representation of a canonical product.
type productEntry struct {
	ID          uint   `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	NameLocal   string `json:"nameLocal,omitempty"`
	DefaultUnit string `json:"defaultUnit,omitempty"`
	Active      bool   `json:"active"`
}

// countryEntry is the list representation of a canonical country.
type countryEntry struct {
	ID       uint   `json:"id"`
	ISO2     string `json:"iso2"`
	ISO3     string `json:"iso3"`
	Name     string `json:"name"`
	Region   string `json:"region,omitempty"`
	Featured bool   `json:"featured"`
}

// GetProducts handles GET /api/v2/products.
func (c *Controller) GetProducts(ctx echo.Context) error {
	products, err := c.DS.GetAllProducts()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load products", http.StatusInternalServerError)
	}

	entries := make([]productEntry, 0, len(products))
	for i := range products {
		p := &products[i]
		entries = append(entries, productEntry{
			ID:          p.ID,
			Slug:        p.Slug,
			Name:        p.Name,
			NameLocal:   p.NameLocal,
			DefaultUnit: p.DefaultUnit,
			Active:      p.Active,
		})
	}
	return ctx.JSON(http.StatusOK, entries)
}

// GetCountries handles GET /api/v2/countries.
func (c *Controller) GetCountries(ctx echo.Context) error {
	countries, err := c.DS.GetAllCountries()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load countries", http.StatusInternalServerError)
	}

	entries := make([]countryEntry, 0, len(countries))
	for i := range countries {
		entries = append(entries, toCountryEntry(&countries[i]))
	}
	return ctx.JSON(http.StatusOK, entries)
}

func toCountryEntry(c *datastore.GlobalCountry) countryEntry {
	return countryEntry{
		ID:       c.ID,
		ISO2:     c.ISO2,
		ISO3:     c.ISO3,
		Name:     c.Name,
		Region:   c.Region,
		Featured: c.Featured,
	}
}
