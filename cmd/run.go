package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-catalog/internal/export"
	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/pipeline"
	"github.com/sells-group/vehicle-catalog/internal/publish"
	"github.com/sells-group/vehicle-catalog/internal/store"
)

var (
	runURLs    []string
	runBrand   string
	runExport  string
	runOut     string
	runStore   bool
	runPublish bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape pages and build the vehicle catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		urls := append(append([]string{}, runURLs...), args...)
		if len(urls) == 0 {
			return eris.New("run: at least one --url is required")
		}

		env, err := initPipeline(ctx, envOptions{Mode: "run", Store: runStore})
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, pipeline.Input{URLs: urls, Brand: runBrand})
		if err != nil {
			return eris.Wrap(err, "run: pipeline")
		}

		return finish(ctx, env, result, sinkOptions{
			Export:  runExport,
			Out:     runOut,
			Publish: runPublish,
		})
	},
}

// sinkOptions selects where a finished result goes besides the store.
type sinkOptions struct {
	Export  string // xlsx path
	Out     string // json path, "-" or "" for stdout
	Publish bool
}

// finish hands a result to every configured sink. Store and CMS failures
// are logged and reported after the JSON output is written.
func finish(ctx context.Context, env *catalogEnv, result *model.ReconciliationResult, opts sinkOptions) error {
	var errs []error

	if env.Store != nil {
		id, err := persist(ctx, env.Store, result)
		if err != nil {
			errs = append(errs, err)
		} else {
			zap.L().Info("run stored", zap.String("run_id", id))
		}
	}

	if opts.Publish {
		if env.Publisher == nil {
			errs = append(errs, eris.New("publish: notion token or vehicle database not configured"))
		} else {
			sum, err := env.Publisher.PublishAll(ctx, result.Vehicles)
			logPublish(sum)
			if err != nil {
				errs = append(errs, err)
			}
		}
	}

	if opts.Export != "" {
		if err := export.SaveXLSX(opts.Export, result); err != nil {
			errs = append(errs, err)
		} else {
			zap.L().Info("catalog exported", zap.String("path", opts.Export))
		}
	}

	if err := writeResult(opts.Out, result); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return eris.Wrapf(errs[0], "run: %d sink(s) failed", len(errs))
	}
	return nil
}

// persist upserts every vehicle and records the run. It stops at the
// first failed vehicle so a broken database is not hammered.
func persist(ctx context.Context, st store.Store, result *model.ReconciliationResult) (string, error) {
	created := 0
	for _, v := range result.Vehicles {
		_, isNew, err := st.UpsertVehicle(ctx, v)
		if err != nil {
			return "", eris.Wrapf(err, "store vehicle %s %s", v.Brand, v.Title)
		}
		if isNew {
			created++
		}
	}
	id, err := st.SaveRun(ctx, result)
	if err != nil {
		return "", err
	}
	zap.L().Info("vehicles stored",
		zap.Int("vehicles", len(result.Vehicles)),
		zap.Int("created", created),
	)
	return id, nil
}

func logPublish(sum publish.Summary) {
	zap.L().Info("catalog published",
		zap.Int("created", sum.Created),
		zap.Int("updated", sum.Updated),
		zap.Int("failed", sum.Failed),
	)
}

func writeResult(path string, result *model.ReconciliationResult) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	return encodeResult(w, result)
}

func encodeResult(w io.Writer, result *model.ReconciliationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(result), "encode result")
}

func init() {
	runCmd.Flags().StringSliceVar(&runURLs, "url", nil, "page to scrape (repeatable)")
	runCmd.Flags().StringVar(&runBrand, "brand", "", "brand applied to documents that do not name one")
	runCmd.Flags().StringVar(&runExport, "export", "", "write the catalog to this xlsx file")
	runCmd.Flags().StringVar(&runOut, "out", "", "write the result JSON to this file (default stdout)")
	runCmd.Flags().BoolVar(&runStore, "store", false, "persist vehicles and the run to the configured store")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "publish vehicles to the Notion catalog database")
	rootCmd.AddCommand(runCmd)
}
