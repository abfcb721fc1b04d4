// config.go: This file contains the configuration for the agriprice application. It defines the settings struct and functions to load the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// WebServerSettings contains settings for the HTTP API server.
type WebServerSettings struct {
	Enabled bool   // true to enable the web server
	Debug   bool   // true to enable debug mode
	Port    string // port for the web server
}

// SQLiteSettings contains settings for the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite
	Path    string // path to the SQLite database file
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings selects the database backend.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// RatesProviderSettings contains settings for the external exchange-rate feed.
type RatesProviderSettings struct {
	Enabled  bool   // true to pull currency rates from an external endpoint
	Endpoint string // rates endpoint URL
	APIKey   string // API key for the rates endpoint, if required
	Timeout  int    // request timeout in seconds
}

// ConversionSettings contains settings for price normalization.
type ConversionSettings struct {
	BaseCurrency string                // reference currency all rates are stored against
	BaseUnit     string                // reference unit, kilograms
	RefreshCron  string                // cron expression for conversion table refresh
	Provider     RatesProviderSettings // external rates feed settings
}

// ResolverSettings contains settings for the entity resolver batch job.
type ResolverSettings struct {
	Providers  []string // provider batch order, processed sequentially
	Workers    int      // worker count for per-record linking within a batch
	Schedule   string   // cron expression for scheduled resolver runs, empty to disable
	LazyCreate bool     // create canonical products for code-mapped records that have none
}

// ComparisonSettings contains settings for the comparison aggregator.
type ComparisonSettings struct {
	SelectionTimeout int // per-selection fetch timeout in seconds
	MaxSelections    int // upper bound on selections per request
	CacheTTL         int // comparison response cache TTL in seconds, 0 to disable
}

// Settings contains all configuration options for the agriprice service.
type Settings struct {
	Debug bool // true to enable debug behavior globally

	Main struct {
		Name    string // node name, used to identify the instance in logs
		LogPath string // directory for rotated service log files
	}

	WebServer  WebServerSettings
	Output     OutputSettings
	Conversion ConversionSettings
	Resolver   ResolverSettings
	Comparison ComparisonSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}
