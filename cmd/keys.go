package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bustrack/core/store"
	infstore "github.com/kilianp07/bustrack/infra/store"
)

var (
	keysLine string
	keysMeta bool
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List trajectory buckets of the store",
	RunE:  runKeys,
}

func init() {
	keysCmd.Flags().StringVar(&keysLine, "line", "", "only list keys of this line")
	keysCmd.Flags().BoolVar(&keysMeta, "meta", false, "load and print bucket metadata")
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := infstore.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	lister, ok := st.(store.KeyLister)
	if !ok {
		return fmt.Errorf("store driver %q cannot list keys", cfg.Store.Driver)
	}
	raw, err := lister.RawKeys(ctx)
	if err != nil {
		return err
	}

	scope := store.Scope{Line: keysLine}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if keysMeta {
		fmt.Fprintf(tw, "LINE\tTOWARDS\tDATE\tVEHICLE\tJOURNEY\tNAME\tROUTE\tSAMPLES\n")
	} else {
		fmt.Fprintf(tw, "LINE\tTOWARDS\tDATE\tVEHICLE\tJOURNEY\n")
	}
	var bad int
	for _, s := range raw {
		k, err := store.ParseKey(s)
		if err != nil {
			var fe *store.FormatError
			if !errors.As(err, &fe) {
				return err
			}
			bad++
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", fe)
			continue
		}
		if !scope.Matches(k) {
			continue
		}
		row := fmt.Sprintf("%s\t%d\t%s\t%s\t%s", k.Line, k.EndStation, k.Date.Format(time.DateOnly), k.VehicleID, k.JourneyID)
		if keysMeta {
			b, err := st.Load(ctx, k)
			if err != nil {
				return fmt.Errorf("load %s: %w", k, err)
			}
			row += fmt.Sprintf("\t%s\t%s -> %s\t%d", b.Meta.Name, b.Meta.StartName, b.Meta.EndName, len(b.Samples))
		}
		fmt.Fprintln(tw, row)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if bad > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d unrecognized keys\n", bad)
	}
	return nil
}
