// Package resolve implements the resolve command: one full entity resolver
// pass from the command line.
package resolve

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/resolver"
)

// Command returns the resolve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var providers []string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Link unlinked source records to the canonical taxonomy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(providers) > 0 {
				settings.Resolver.Providers = providers
			}
			return run(cmd, settings)
		},
	}

	cmd.Flags().StringSliceVar(&providers, "providers", nil,
		"providers to process (default: configured provider list)")
	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close() //nolint:errcheck // read-mostly batch run, close error is uninteresting

	res, err := resolver.New(ds, settings)
	if err != nil {
		return err
	}

	reports, err := res.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-10s %8s %8s %9s %7s %10s\n",
		"PROVIDER", "KIND", "LINKED", "CREATED", "UNLINKED", "FAILED", "ELAPSED")
	for _, r := range reports {
		fmt.Fprintf(out, "%-10s %-10s %8d %8d %9d %7d %10s\n",
			r.Provider, r.Kind, r.Linked, r.Created, r.Unlinked, r.Failed, r.Elapsed.Round(time.Millisecond))
	}
	return nil
}
