// validate.go: validation of loaded settings
package conf

import (
	"errors"
	"fmt"
	"strconv"
)

// ValidateSettings checks the loaded settings for inconsistencies that would
// only surface later at runtime.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		errs = append(errs, err)
	}
	if err := validateOutputSettings(&settings.Output); err != nil {
		errs = append(errs, err)
	}
	if err := validateConversionSettings(&settings.Conversion); err != nil {
		errs = append(errs, err)
	}
	if err := validateResolverSettings(&settings.Resolver); err != nil {
		errs = append(errs, err)
	}
	if err := validateComparisonSettings(&settings.Comparison); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateWebServerSettings(ws *WebServerSettings) error {
	if !ws.Enabled {
		return nil
	}
	port, err := strconv.Atoi(ws.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver.port must be a valid port number, got %q", ws.Port)
	}
	return nil
}

func validateOutputSettings(out *OutputSettings) error {
	if !out.SQLite.Enabled && !out.MySQL.Enabled {
		return errors.New("no database backend enabled, enable output.sqlite or output.mysql")
	}
	if out.SQLite.Enabled && out.SQLite.Path == "" {
		return errors.New("output.sqlite.path must not be empty")
	}
	if out.MySQL.Enabled && out.MySQL.Database == "" {
		return errors.New("output.mysql.database must not be empty")
	}
	return nil
}

func validateConversionSettings(conv *ConversionSettings) error {
	if conv.BaseCurrency == "" {
		return errors.New("conversion.basecurrency must not be empty")
	}
	if conv.BaseUnit == "" {
		return errors.New("conversion.baseunit must not be empty")
	}
	if conv.Provider.Enabled && conv.Provider.Endpoint == "" {
		return errors.New("conversion.provider.endpoint must be set when the rates provider is enabled")
	}
	return nil
}

func validateResolverSettings(res *ResolverSettings) error {
	if len(res.Providers) == 0 {
		return errors.New("resolver.providers must list at least one provider")
	}
	if res.Workers < 1 {
		return fmt.Errorf("resolver.workers must be at least 1, got %d", res.Workers)
	}
	return nil
}

func validateComparisonSettings(cmp *ComparisonSettings) error {
	if cmp.SelectionTimeout < 1 {
		return fmt.Errorf("comparison.selectiontimeout must be at least 1 second, got %d", cmp.SelectionTimeout)
	}
	if cmp.MaxSelections < 1 {
		return fmt.Errorf("comparison.maxselections must be at least 1, got %d", cmp.MaxSelections)
	}
	return nil
}
