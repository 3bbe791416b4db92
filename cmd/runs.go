package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vehicle-catalog/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored catalog runs",
	Long:  "Commands for listing and viewing runs saved with run --store or through the API.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full result of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs vehicles --

var runsVehiclesCmd = &cobra.Command{
	Use:   "vehicles",
	Short: "List stored vehicles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		brand, _ := cmd.Flags().GetString("brand")
		limit, _ := cmd.Flags().GetInt("limit")
		recs, err := st.ListVehicles(ctx, store.VehicleFilter{Brand: brand, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs vehicles")
		}
		formatVehicleList(os.Stdout, recs)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsVehiclesCmd.Flags().String("brand", "", "filter by brand")
	runsVehiclesCmd.Flags().Int("limit", 100, "max number of vehicles to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsVehiclesCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []store.RunRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tVEHICLES\tVARIANTS\tISSUES\tCOST_USD\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t--------\t--------\t------\t--------\t-------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.4f\t%s\n",
			truncateID(r.ID),
			r.VehicleCount,
			r.VariantCount,
			r.IssueCount,
			r.TotalCost,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatVehicleList writes one line per stored vehicle with its cheapest
// variant price.
func formatVehicleList(out io.Writer, recs []store.VehicleRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tBRAND\tMODEL\tVARIANTS\tFROM_PRICE\tUPDATED")

	for _, r := range recs {
		from := "-"
		var low int64
		for _, vr := range r.Vehicle.Variants {
			if vr.Price != nil && (low == 0 || *vr.Price < low) {
				low = *vr.Price
			}
		}
		if low > 0 {
			from = fmt.Sprintf("%d kr", low)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Key,
			r.Vehicle.Brand,
			r.Vehicle.Title,
			len(r.Vehicle.Variants),
			from,
			r.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
