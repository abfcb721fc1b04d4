// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"log"
	"os"
	"time"

	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Interface abstracts the underlying database implementation and defines the
// narrow read/write contract consumed by the resolver and the aggregator.
type Interface interface {
	Open() error
	Close() error

	// canonical taxonomy
	GetAllProducts() ([]GlobalProduct, error)
	GetAllCountries() ([]GlobalCountry, error)
	GetProductBySlug(slug string) (*GlobalProduct, error)
	GetProductBySlugOrCode(key string) (*GlobalProduct, error)
	GetOrCreateProduct(product *GlobalProduct) (*GlobalProduct, bool, error)
	GetCountryByCode(code string) (*GlobalCountry, error)
	GetPriceStageByCode(code string) (*GlobalPriceStage, error)

	// source entities
	GetUnlinkedSourceProducts(provider string) ([]SourceProduct, error)
	GetUnlinkedSourceCountries(provider string) ([]SourceCountry, error)
	LinkSourceProduct(sourceID uint, productID *uint) error
	LinkSourceCountry(sourceID uint, countryID *uint) error

	// price observations
	SaveObservation(obs *PriceObservation) error
	QueryObservations(filter SeriesFilter, window TimeWindow) ([]PriceObservation, error)

	// conversion reference tables
	GetCurrencies() ([]Currency, error)
	GetUnits() ([]Unit, error)
	UpsertCurrency(currency *Currency) error
	UpsertUnit(unit *Unit) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&GlobalCategory{},
		&GlobalProduct{},
		&GlobalProductVariety{},
		&GlobalCountry{},
		&GlobalMarket{},
		&GlobalPriceStage{},
		&SourceProduct{},
		&SourceCountry{},
		&SourceSeries{},
		&PriceObservation{},
		&Currency{},
		&Unit{},
	); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %w", dbType, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
