// Package rates implements the rates command: inspecting and refreshing the
// conversion tables from the command line.
package rates

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/convert"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/observability"
	"github.com/agropanel/agriprice-go/internal/resolver"
	"github.com/agropanel/agriprice-go/internal/scheduler"
)

// Command returns the rates subcommand with its show and refresh actions.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Inspect or refresh the currency and unit conversion tables",
	}
	cmd.AddCommand(showCommand(settings), refreshCommand(settings))
	return cmd
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored conversion tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openStore(settings)
			if err != nil {
				return err
			}
			defer ds.Close() //nolint:errcheck // read-only command

			currencies, err := ds.GetCurrencies()
			if err != nil {
				return err
			}
			units, err := ds.GetUnits()
			if err != nil {
				return err
			}
			sort.Slice(currencies, func(i, j int) bool { return currencies[i].Code < currencies[j].Code })
			sort.Slice(units, func(i, j int) bool { return units[i].Code < units[j].Code })

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "base currency: %s, base unit: %s\n\n",
				settings.Conversion.BaseCurrency, settings.Conversion.BaseUnit)
			fmt.Fprintf(out, "%-8s %14s\n", "CURRENCY", "RATE TO BASE")
			for _, c := range currencies {
				fmt.Fprintf(out, "%-8s %14.6f\n", c.Code, c.RateToBase)
			}
			fmt.Fprintf(out, "\n%-8s %14s %10s\n", "UNIT", "RATE TO BASE", "BASE UNIT")
			for _, u := range units {
				fmt.Fprintf(out, "%-8s %14.6f %10s\n", u.Code, u.RateToBase, u.BaseUnit)
			}
			return nil
		},
	}
}

func refreshCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch currency rates from the configured provider and reload the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openStore(settings)
			if err != nil {
				return err
			}
			defer ds.Close() //nolint:errcheck // one-shot command

			cache := convert.NewCache(ds, settings)
			var fetcher *convert.Fetcher
			if settings.Conversion.Provider.Enabled {
				fetcher = convert.NewFetcher(ds, settings)
			}
			res, err := resolver.New(ds, settings)
			if err != nil {
				return err
			}
			metrics, err := observability.NewMetrics()
			if err != nil {
				return err
			}

			scheduler.New(settings, cache, fetcher, res, metrics).RefreshRatesNow(cmd.Context())

			table := cache.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot: %d currencies, %d units\n",
				len(table.Currencies), len(table.Units))
			return nil
		},
	}
}

func openStore(settings *conf.Settings) (datastore.Interface, error) {
	ds := datastore.New(settings)
	if ds == nil {
		return nil, fmt.Errorf("no database backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return nil, fmt.Errorf("opening datastore: %w", err)
	}
	return ds, nil
}
