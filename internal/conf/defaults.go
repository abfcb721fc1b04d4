// defaults.go: default values for the viper-backed configuration
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for all configuration parameters.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main settings
	viper.SetDefault("main.name", "agriprice")
	viper.SetDefault("main.logpath", "logs/")

	// Web server settings
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.port", "8080")

	// Database settings
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "agriprice.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "agriprice")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "agriprice")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	// Conversion settings
	viper.SetDefault("conversion.basecurrency", "USD")
	viper.SetDefault("conversion.baseunit", "kg")
	viper.SetDefault("conversion.refreshcron", "0 * * * *") // hourly
	viper.SetDefault("conversion.provider.enabled", false)
	viper.SetDefault("conversion.provider.endpoint", "")
	viper.SetDefault("conversion.provider.apikey", "")
	viper.SetDefault("conversion.provider.timeout", 10)

	// Resolver settings
	viper.SetDefault("resolver.providers", []string{"agro", "eurostat", "faostat", "fpma"})
	viper.SetDefault("resolver.workers", 4)
	viper.SetDefault("resolver.schedule", "30 2 * * *") // nightly
	viper.SetDefault("resolver.lazycreate", true)

	// Comparison settings
	viper.SetDefault("comparison.selectiontimeout", 10)
	viper.SetDefault("comparison.maxselections", 20)
	viper.SetDefault("comparison.cachettl", 60)
}
