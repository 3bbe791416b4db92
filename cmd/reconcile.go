package main

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/reconcile"
)

var (
	reconcileThreshold float64
	reconcileExport    string
	reconcileOut       string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <vehicles.json>...",
	Short: "Merge previously extracted vehicles into one catalog",
	Long:  "Reads vehicle lists or run results written by run/extract, merges duplicate vehicles and variants, and writes the combined result.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("reconcile"); err != nil {
			return eris.Wrap(err, "config: validation failed")
		}
		r, err := newReconciler(cfg)
		if err != nil {
			return err
		}

		threshold := reconcileThreshold
		if threshold <= 0 {
			threshold = cfg.Reconcile.Threshold
		}

		merged := &model.ReconciliationResult{}
		for _, path := range args {
			res, err := readResult(path)
			if err != nil {
				return err
			}
			merged.Vehicles = append(merged.Vehicles, res.Vehicles...)
			merged.Issues = append(merged.Issues, res.Issues...)
			merged.Attempts = append(merged.Attempts, res.Attempts...)
			merged.TotalCost += res.TotalCost
		}

		result := reconcileResult(r, merged, threshold)
		zap.L().Info("reconciled",
			zap.Int("inputs", len(args)),
			zap.Int("vehicles", len(result.Vehicles)),
			zap.Int("variants", result.VariantCount()),
		)

		env := &catalogEnv{}
		return finish(cmd.Context(), env, result, sinkOptions{Export: reconcileExport, Out: reconcileOut})
	},
}

// reconcileResult merges the vehicles of in and keeps everything else.
func reconcileResult(r *reconcile.Reconciler, in *model.ReconciliationResult, threshold float64) *model.ReconciliationResult {
	out := *in
	out.Vehicles = r.Vehicles(in.Vehicles, threshold)
	if out.Vehicles == nil {
		out.Vehicles = []model.Vehicle{}
	}
	if out.Issues == nil {
		out.Issues = []model.Issue{}
	}
	return &out
}

// readResult accepts a run result object or a bare array of vehicles.
func readResult(path string) (*model.ReconciliationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: read %s", path)
	}
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '[' {
		var vs []model.Vehicle
		if err := json.Unmarshal(data, &vs); err != nil {
			return nil, eris.Wrapf(err, "reconcile: decode %s", path)
		}
		return &model.ReconciliationResult{Vehicles: vs}, nil
	}

	var res model.ReconciliationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, eris.Wrapf(err, "reconcile: decode %s", path)
	}
	return &res, nil
}

func init() {
	reconcileCmd.Flags().Float64Var(&reconcileThreshold, "threshold", 0, "variant merge threshold (default from config)")
	reconcileCmd.Flags().StringVar(&reconcileExport, "export", "", "write the catalog to this xlsx file")
	reconcileCmd.Flags().StringVar(&reconcileOut, "out", "", "write the result JSON to this file (default stdout)")
	rootCmd.AddCommand(reconcileCmd)
}
