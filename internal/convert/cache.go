package convert

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/errors"
	"github.com/agropanel/agriprice-go/internal/logging"
)

// Cache holds the current conversion table snapshot behind an atomic pointer.
// Readers call Current and never block; Refresh builds a fresh immutable
// snapshot from the datastore and swaps it in.
type Cache struct {
	ds       datastore.Interface
	settings *conf.Settings
	logger   *slog.Logger
	current  atomic.Pointer[Table]
}

// NewCache creates a conversion table cache seeded with an empty snapshot so
// Current never returns nil.
func NewCache(ds datastore.Interface, settings *conf.Settings) *Cache {
	c := &Cache{
		ds:       ds,
		settings: settings,
		logger:   logging.ForService("convert"),
	}
	c.current.Store(EmptyTable(settings.Conversion.BaseCurrency, settings.Conversion.BaseUnit))
	return c
}

// Current returns the active snapshot. The returned table is immutable.
func (c *Cache) Current() *Table {
	return c.current.Load()
}

// Refresh rebuilds the snapshot from the datastore and swaps it in. On error
// the previous snapshot stays active.
func (c *Cache) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	currencies, err := c.ds.GetCurrencies()
	if err != nil {
		return errors.New(err).
			Component("convert").
			Category(errors.CategoryDatabase).
			Build()
	}
	units, err := c.ds.GetUnits()
	if err != nil {
		return errors.New(err).
			Component("convert").
			Category(errors.CategoryDatabase).
			Build()
	}

	table := NewTable(c.settings.Conversion.BaseCurrency, c.settings.Conversion.BaseUnit, currencies, units)
	c.current.Store(table)

	c.logger.Info("conversion tables refreshed",
		"currencies", len(table.Currencies),
		"units", len(table.Units),
		"elapsed", time.Since(start))
	return nil
}
